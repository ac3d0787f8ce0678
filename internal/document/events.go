package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const changeChannel = "articles:changes"

// ChangeKind identifies what happened to a collection record.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is broadcast after every committed remote write so that open
// readers converge on the committed state. Record is nil for deletes.
type ChangeEvent struct {
	Kind   ChangeKind `json:"kind"`
	ID     string     `json:"id"`
	Record *Record    `json:"record,omitempty"`
}

// Feed carries collection change events between writers and live readers.
type Feed interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	Subscribe(ctx context.Context) (<-chan ChangeEvent, func(), error)
}

// RedisFeed implements Feed over a redis pub/sub channel.
type RedisFeed struct {
	client *redis.Client
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

func (f *RedisFeed) Publish(ctx context.Context, ev ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := f.client.Publish(ctx, changeChannel, data).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan ChangeEvent, func(), error) {
	sub := f.client.Subscribe(ctx, changeChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", changeChannel, err)
	}

	out := make(chan ChangeEvent, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("dropping malformed change event", "error", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { sub.Close() }, nil
}
