// Package search maintains a Bluge full-text index over persisted
// messages and serves per-room match queries for the read surface.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"

	"roomcast/domain"
	"roomcast/domain/event"
)

// Hit is one search result, rebuilt from stored fields.
type Hit struct {
	ID      string    `json:"id"`
	Room    string    `json:"chatRoomId"`
	Author  string    `json:"userName"`
	Content string    `json:"content"`
	Type    string    `json:"messageType"`
	At      time.Time `json:"timestamp"`
}

// MessageIndex indexes every persisted message. It is wired into the
// broadcaster as a permanent sink, so index order follows log order.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Consume indexes MessagePosted events; other event kinds are ignored.
func (i *MessageIndex) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}
	doc := bluge.NewDocument(posted.ID.String()).
		AddField(bluge.NewTextField("content", posted.Content).StoreValue()).
		AddField(bluge.NewKeywordField("room", string(posted.Room)).StoreValue()).
		AddField(bluge.NewKeywordField("author", posted.Author).StoreValue()).
		AddField(bluge.NewKeywordField("type", string(posted.Type)).StoreValue()).
		AddField(bluge.NewStoredOnlyField("at", []byte(posted.At.Format(time.RFC3339Nano))))
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("indexing message %s: %w", posted.ID, err)
	}
	return nil
}

// Search returns up to limit messages of a room matching the terms,
// best score first.
func (i *MessageIndex) Search(ctx context.Context, room domain.RoomID, terms string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(string(room)).SetField("room"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	match, err := iterator.Next()
	for err == nil && match != nil {
		var hit Hit
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.ID = string(value)
			case "room":
				hit.Room = string(value)
			case "author":
				hit.Author = string(value)
			case "content":
				hit.Content = string(value)
			case "type":
				hit.Type = string(value)
			case "at":
				if at, parseErr := time.Parse(time.RFC3339Nano, string(value)); parseErr == nil {
					hit.At = at
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}
