// Package cache provides a short-TTL Redis cache for item ledger snapshots.
// The status endpoint is polled every few seconds by every open checkout, so
// even a small TTL absorbs most of the read load. Only the raw (sold,
// reserved_until) pair is cached; the tri-state is re-derived per read.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Hyllekvist/dripdrops/internal/domain"
)

const defaultTTL = 2 * time.Second

type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewSnapshotCache(client *redis.Client, logger *slog.Logger, opts ...Option) *SnapshotCache {
	c := &SnapshotCache{
		client: client,
		ttl:    defaultTTL,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Option func(*SnapshotCache)

func WithTTL(d time.Duration) Option {
	return func(c *SnapshotCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

type snapshot struct {
	Sold          bool       `json:"sold"`
	ReservedUntil *time.Time `json:"reserved_until"`
}

// GetItem returns a cached ledger snapshot. Any cache trouble reads as a
// miss; the caller falls through to the ledger.
func (c *SnapshotCache) GetItem(ctx context.Context, itemID string) (domain.Item, bool) {
	raw, err := c.client.Get(ctx, key(itemID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("status cache read failed", slog.String("item_id", itemID), slog.String("error", err.Error()))
		}
		return domain.Item{}, false
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.Item{}, false
	}
	return domain.Item{
		ID:            itemID,
		Sold:          snap.Sold,
		ReservedUntil: snap.ReservedUntil,
	}, true
}

func (c *SnapshotCache) SetItem(ctx context.Context, itemID string, item domain.Item) {
	raw, err := json.Marshal(snapshot{
		Sold:          item.Sold,
		ReservedUntil: item.ReservedUntil,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(itemID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("status cache write failed", slog.String("item_id", itemID), slog.String("error", err.Error()))
	}
}

func key(itemID string) string {
	return "item_status:" + itemID
}
