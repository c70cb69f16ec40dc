package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"roomcast/domain"
	"roomcast/domain/event"
)

func newTestIndex(t *testing.T) *MessageIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewMessageIndex(writer, slog.Default())
}

func posted(room domain.RoomID, author, content string) event.MessagePosted {
	return event.MessagePosted{
		ID:      uuid.New(),
		Room:    room,
		Author:  author,
		Content: content,
		Type:    domain.MessageTypeUser,
		At:      time.Now().UTC(),
	}
}

func Test_Index_And_Search_By_Room(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newTestIndex(t)

	req.NoError(index.Consume(ctx, posted("r1", "Alice", "deploy finished on staging")))
	req.NoError(index.Consume(ctx, posted("r1", "Bob", "lunch anyone?")))
	req.NoError(index.Consume(ctx, posted("r2", "Clara", "deploy broke production")))

	hits, err := index.Search(ctx, "r1", "deploy", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal("Alice", hits[0].Author)
	req.Equal("r1", hits[0].Room)
	req.Equal("deploy finished on staging", hits[0].Content)
	req.False(hits[0].At.IsZero())
}

func Test_Search_No_Match(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newTestIndex(t)

	req.NoError(index.Consume(ctx, posted("r1", "Alice", "hello world")))

	hits, err := index.Search(ctx, "r1", "kubernetes", 10)
	req.NoError(err)
	req.Empty(hits)
}

func Test_Consume_Ignores_Ephemeral_Events(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newTestIndex(t)

	req.NoError(index.Consume(ctx, event.TypingStarted{Room: "r1", Name: "Alice"}))
	req.NoError(index.Consume(ctx, event.UserJoined{Room: "r1", Name: "Alice"}))

	hits, err := index.Search(ctx, "r1", "alice", 10)
	req.NoError(err)
	req.Empty(hits)
}
