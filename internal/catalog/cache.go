package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

// SnapshotCache holds individual snapshot entries for a short time so that
// bursts of compositions against the same products do not hammer postgres.
type SnapshotCache interface {
	Get(ctx context.Context, ref domain.ProductRef) (*domain.PriceSnapshotEntry, error)
	Set(ctx context.Context, entry domain.PriceSnapshotEntry) error
}

var ErrCacheMiss = errors.New("snapshot cache miss")

type RedisSnapshotCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisSnapshotCache(client *redis.Client) *RedisSnapshotCache {
	return &RedisSnapshotCache{
		client:  client,
		baseTTL: 30 * time.Second,
	}
}

func (r *RedisSnapshotCache) Get(ctx context.Context, ref domain.ProductRef) (*domain.PriceSnapshotEntry, error) {
	data, err := r.client.Get(ctx, cacheKey(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var entry domain.PriceSnapshotEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot entry failed: %w", err)
	}
	return &entry, nil
}

func (r *RedisSnapshotCache) Set(ctx context.Context, entry domain.PriceSnapshotEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal snapshot entry failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(10)) * time.Second
	if err := r.client.Set(ctx, cacheKey(domain.ProductRef{SupplierID: entry.SupplierID, ProductID: entry.ProductID}), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cacheKey(ref domain.ProductRef) string {
	return fmt.Sprintf("snapshot:%d:%d", ref.SupplierID, ref.ProductID)
}
