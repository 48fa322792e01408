package redis

import (
	"context"
	"encoding/json"
	"time"

	"garment-studio/internal/domain/ports/adapter"
	"garment-studio/internal/infra/metrics"
	"garment-studio/internal/usecase"
)

var _ usecase.TryOnStatusCache = (*TryOnStatusCache)(nil)

// TryOnStatusCache stores terminal poll results for raw provider
// handles. Direct try-ons have no job row, so this cache is what makes
// their repeated polls idempotent after completion.
type TryOnStatusCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewTryOnStatusCache(client RedisClient, ttl time.Duration) *TryOnStatusCache {
	return &TryOnStatusCache{client: client, ttl: ttl}
}

func (c *TryOnStatusCache) Get(ctx context.Context, providerJobID string) (*adapter.TryOnPoll, error) {
	data, err := c.client.Get(ctx, key(providerJobID))
	if err != nil {
		if IsMiss(err) {
			return nil, nil
		}
		return nil, err
	}
	var poll adapter.TryOnPoll
	if err := json.Unmarshal([]byte(data), &poll); err != nil {
		return nil, err
	}
	metrics.IncStatusPoll("cache")
	return &poll, nil
}

func (c *TryOnStatusCache) Put(ctx context.Context, providerJobID string, poll *adapter.TryOnPoll) error {
	data, err := json.Marshal(poll)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(providerJobID), data, c.ttl)
}

func key(providerJobID string) string { return "tryon_status:" + providerJobID }
