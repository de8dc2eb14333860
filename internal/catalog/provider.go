package catalog

import (
	"context"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

// Provider exposes a point-in-time view of supplier pricing and
// availability. Implementations are read-only; a requested pair that no
// longer exists is simply omitted from the result.
type Provider interface {
	Snapshot(ctx context.Context, refs []domain.ProductRef) (map[domain.ProductRef]domain.PriceSnapshotEntry, error)
}
