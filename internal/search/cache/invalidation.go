package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/kafka"
)

// ChangeEvent is published by the post and category editors whenever a
// row changes.
type ChangeEvent struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Action string `json:"action"`
}

const (
	EntityPost     = "post"
	EntityCategory = "category"
)

// Refresher reloads a derived view after its source table changed.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// InvalidationHandler returns the consumer callback for the change topic.
// Every change drops the cached pages; category changes also reload the
// category directory first so new names resolve before pages are rebuilt.
func InvalidationHandler(c *PageCache, categories Refresher) kafka.MessageHandler {
	logger := slog.Default().With("component", "cache-invalidator")
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[ChangeEvent](value)
		if err != nil {
			logger.Warn("dropping undecodable change event", "key", string(key), "error", err)
			return nil
		}
		if event.Entity == EntityCategory && categories != nil {
			if err := categories.Refresh(ctx); err != nil {
				return fmt.Errorf("refreshing categories after %s %s: %w", event.Action, event.ID, err)
			}
		}
		if c == nil {
			return nil
		}
		deleted, err := c.Invalidate(ctx)
		if err != nil {
			return err
		}
		logger.Debug("change applied", "entity", event.Entity, "id", event.ID, "action", event.Action, "keys_deleted", deleted)
		return nil
	}
}
