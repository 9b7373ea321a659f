// Package realtime fans row changes out to open dashboards. Writers publish
// a Change on a Redis channel and every SSE subscriber forwards the ones for
// the tables it watches.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel carrying changes.
const Channel = "changes"

// Operations.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
)

// Tables that publish changes.
const (
	TableClients       = "clients"
	TablePolicies      = "policies"
	TableNotifications = "notifications"
)

// Change describes a mutated row.
type Change struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Feed publishes and subscribes through Redis.
type Feed struct {
	client *redis.Client
	logger *slog.Logger
}

// NewFeed constructs a Feed.
func NewFeed(client *redis.Client, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{client: client, logger: logger}
}

// Publish sends the change to every subscriber.
func (f *Feed) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("realtime: publish: %w", err)
	}
	return nil
}

// Subscribe returns a channel of decoded changes for the given tables (all
// tables when empty). The channel closes when ctx is done.
func (f *Feed) Subscribe(ctx context.Context, tables []string) (<-chan Change, error) {
	sub := f.client.Subscribe(ctx, Channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("realtime: subscribe: %w", err)
	}

	filter := make(map[string]struct{}, len(tables))
	for _, table := range tables {
		filter[table] = struct{}{}
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					f.logger.Warn("realtime decode", slog.Any("error", err))
					continue
				}
				if len(filter) > 0 {
					if _, watched := filter[change.Table]; !watched {
						continue
					}
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// PublishQuietly publishes and logs a failure instead of returning it. A
// missed change only delays a dashboard refresh, so writers never fail on it.
func PublishQuietly(ctx context.Context, publisher Publisher, logger *slog.Logger, change Change) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, change); err != nil && logger != nil {
		logger.Warn("publish change", slog.String("table", change.Table), slog.String("op", change.Op), slog.Any("error", err))
	}
}

var _ Publisher = (*Feed)(nil)
