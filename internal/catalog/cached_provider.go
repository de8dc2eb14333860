package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

// CachedProvider is a read-through cache in front of another Provider.
// Cache errors are logged and treated as misses; the commit-time stock
// recheck never goes through this path, so a slightly stale entry can only
// cause a recomposition, not an oversell.
type CachedProvider struct {
	inner Provider
	cache SnapshotCache
	sfg   singleflight.Group // Prevents snapshot stampede on hot products
}

func NewCachedProvider(inner Provider, cache SnapshotCache) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache}
}

func (c *CachedProvider) Snapshot(ctx context.Context, refs []domain.ProductRef) (map[domain.ProductRef]domain.PriceSnapshotEntry, error) {
	result := make(map[domain.ProductRef]domain.PriceSnapshotEntry, len(refs))

	var misses []domain.ProductRef
	for _, ref := range refs {
		entry, err := c.cache.Get(ctx, ref)
		if err != nil {
			if !errors.Is(err, ErrCacheMiss) {
				log.Printf("snapshot cache get error: %v", err)
			}
			misses = append(misses, ref)
			continue
		}
		result[ref] = *entry
	}

	if len(misses) == 0 {
		return result, nil
	}

	v, err, _ := c.sfg.Do(missKey(misses), func() (interface{}, error) {
		return c.inner.Snapshot(ctx, misses)
	})
	if err != nil {
		return nil, err
	}

	fetched := v.(map[domain.ProductRef]domain.PriceSnapshotEntry)
	for ref, entry := range fetched {
		result[ref] = entry
		if err := c.cache.Set(ctx, entry); err != nil {
			log.Printf("snapshot cache set error: %v", err)
		}
	}

	return result, nil
}

// missKey builds a deterministic singleflight key for a set of refs.
func missKey(refs []domain.ProductRef) string {
	parts := make([]string, len(refs))
	for i, ref := range refs {
		parts[i] = fmt.Sprintf("%d:%d", ref.SupplierID, ref.ProductID)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
