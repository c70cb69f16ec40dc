package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	"roomcast/errors"
)

//go:embed wordlists/*
var wordlistsFolder embed.FS

// Blacklist carries the result of the loading process including
// metadata for logging.
type Blacklist struct {
	Words     []string
	Languages []string
}

// LoadBlacklist scans the embedded wordlists directory, treating each
// .txt file as a language dictionary, and parses its contents into a
// unique list of words.
func LoadBlacklist() (*Blacklist, error) {
	entries, err := fs.ReadDir(wordlistsFolder, "wordlists")
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		// Track the language based on the filename (e.g., "fr.txt" -> "fr")
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := wordlistsFolder.ReadFile("wordlists/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// A scanner handles both \n and \r\n line endings correctly
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				uniqueWords[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}

	return &Blacklist{Words: words, Languages: languages}, nil
}
