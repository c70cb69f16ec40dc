package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks blacklisted words in user message content before the
// broadcaster persists it. Matching runs on a normalized view of the text
// (lowercased, leet-speak folded, punctuation stripped) while masking is
// applied to the original runes, so spacing and casing are preserved.
type Moderator struct {
	matcher  *goahocorasick.Machine
	maskChar rune
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the Aho-Corasick automaton over the normalized
// forms of the provided blacklist.
func NewModerator(words []string, maskChar rune) (*Moderator, error) {
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalizeRunes([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, maskChar: maskChar}, nil
}

// Mask replaces every character of each matched span with the mask rune
// and returns the matched normalized words alongside the masked text.
func (m *Moderator) Mask(original string) (string, []string) {
	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var matched []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.origIdx) {
			continue
		}
		matched = append(matched, string(span.Word))

		origStart := mapping.origIdx[normStart]
		origEnd := mapping.origIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.maskChar
		}
	}
	return string(origRunes), matched
}

// normalize produces the searchable view of the input and keeps the
// original index of every retained rune for masking.
func normalize(input string) textMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	for i, r := range origRunes {
		clean := foldRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return textMapping{normalized: norm, origIdx: origIdx}
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := foldRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// foldRune maps common leet-speak characters back to their standard
// alphabet counterparts.
func foldRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters ignored during pattern matching.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
