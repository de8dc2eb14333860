package compose

import (
	"context"
	"fmt"
	"time"

	"github.com/jkeevk/diploma-shop/internal/catalog"
	"github.com/jkeevk/diploma-shop/internal/domain"
)

// Composer validates a cart against a live catalog snapshot and produces
// an immutable order draft. It has no side effects: given the same cart
// and snapshot it always yields the same draft.
type Composer struct {
	provider catalog.Provider
	now      func() time.Time
}

func NewComposer(provider catalog.Provider) *Composer {
	return &Composer{provider: provider, now: time.Now}
}

// Compose merges duplicate cart lines, fetches a snapshot for every
// distinct (supplier, product) pair and prices the cart. Violations are
// reported in cart line order: the first failing line wins when several
// lines are invalid at once.
func (c *Composer) Compose(ctx context.Context, cart []domain.CartLine, principal domain.Principal) (*domain.OrderDraft, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	// Checked before merging: a zero or negative line must fail on its
	// own position, not hide inside a merged sum.
	for _, line := range cart {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("supplier %d product %d: %w", line.SupplierID, line.ProductID, ErrInvalidQuantity)
		}
	}

	merged := mergeLines(cart)

	refs := make([]domain.ProductRef, len(merged))
	for i, line := range merged {
		refs[i] = line.Ref()
	}

	snapshot, err := c.provider.Snapshot(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog snapshot: %w", err)
	}

	draft := &domain.OrderDraft{
		CustomerID:    principal.UserID,
		CustomerEmail: principal.Email,
		CreatedAt:     c.now(),
	}

	// Group by supplier preserving the cart's relative ordering, both of
	// the suppliers themselves and of the lines within each group.
	subIndex := make(map[int64]int)
	for _, line := range merged {
		entry, ok := snapshot[line.Ref()]
		if !ok {
			return nil, fmt.Errorf("supplier %d product %d: %w", line.SupplierID, line.ProductID, ErrUnknownProduct)
		}
		if !entry.InStock(line.Quantity) {
			return nil, fmt.Errorf("supplier %d product %d: %w", line.SupplierID, line.ProductID, ErrOutOfStock)
		}
		if !entry.SupplierAccepting {
			return nil, fmt.Errorf("supplier %d: %w", line.SupplierID, ErrSupplierNotAccepting)
		}

		orderLine := domain.OrderLine{
			ProductID:   line.ProductID,
			ProductName: entry.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   entry.UnitPrice,
		}

		idx, ok := subIndex[line.SupplierID]
		if !ok {
			idx = len(draft.SubOrders)
			subIndex[line.SupplierID] = idx
			draft.SubOrders = append(draft.SubOrders, domain.SubOrderDraft{SupplierID: line.SupplierID})
		}
		draft.SubOrders[idx].Lines = append(draft.SubOrders[idx].Lines, orderLine)
		draft.SubOrders[idx].Subtotal += orderLine.Cost()
	}

	for _, sub := range draft.SubOrders {
		draft.GrandTotal += sub.Subtotal
	}

	return draft, nil
}

// mergeLines sums quantities of duplicate (supplier, product) lines,
// keeping the position of the first occurrence.
func mergeLines(cart []domain.CartLine) []domain.CartLine {
	merged := make([]domain.CartLine, 0, len(cart))
	index := make(map[domain.ProductRef]int, len(cart))

	for _, line := range cart {
		if i, ok := index[line.Ref()]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.Ref()] = len(merged)
		merged = append(merged, line)
	}

	return merged
}
