package compose

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

type mockProvider struct {
	entries map[domain.ProductRef]domain.PriceSnapshotEntry
	err     error
	refs    []domain.ProductRef // last requested refs
}

func (m *mockProvider) Snapshot(_ context.Context, refs []domain.ProductRef) (map[domain.ProductRef]domain.PriceSnapshotEntry, error) {
	m.refs = refs
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[domain.ProductRef]domain.PriceSnapshotEntry)
	for _, ref := range refs {
		if e, ok := m.entries[ref]; ok {
			out[ref] = e
		}
	}
	return out, nil
}

func entry(supplierID, productID int64, price float64, stock int, accepting bool) domain.PriceSnapshotEntry {
	return domain.PriceSnapshotEntry{
		SupplierID:        supplierID,
		ProductID:         productID,
		ProductName:       fmt.Sprintf("product-%d", productID),
		UnitPrice:         price,
		Stock:             stock,
		SupplierAccepting: accepting,
	}
}

func providerWith(entries ...domain.PriceSnapshotEntry) *mockProvider {
	m := &mockProvider{entries: make(map[domain.ProductRef]domain.PriceSnapshotEntry)}
	for _, e := range entries {
		m.entries[domain.ProductRef{SupplierID: e.SupplierID, ProductID: e.ProductID}] = e
	}
	return m
}

var alice = domain.Principal{UserID: "42", Email: "alice@example.com", Role: domain.RoleCustomer}

func TestCompose_GroupsBySupplierAndPrices(t *testing.T) {
	provider := providerWith(
		entry(1, 100, 10.0, 50, true),
		entry(1, 101, 10.0, 50, true),
		entry(2, 200, 5.0, 50, true),
	)
	sut := NewComposer(provider)

	draft, err := sut.Compose(context.Background(), []domain.CartLine{
		{SupplierID: 1, ProductID: 100, Quantity: 2},
		{SupplierID: 2, ProductID: 200, Quantity: 1},
		{SupplierID: 1, ProductID: 101, Quantity: 1},
	}, alice)
	require.NoError(t, err)

	require.Len(t, draft.SubOrders, 2)

	// Suppliers keep the order of their first appearance in the cart.
	assert.Equal(t, int64(1), draft.SubOrders[0].SupplierID)
	assert.Equal(t, int64(2), draft.SubOrders[1].SupplierID)

	require.Len(t, draft.SubOrders[0].Lines, 2)
	assert.Equal(t, int64(100), draft.SubOrders[0].Lines[0].ProductID)
	assert.Equal(t, int64(101), draft.SubOrders[0].Lines[1].ProductID)

	assert.Equal(t, 30.0, draft.SubOrders[0].Subtotal)
	assert.Equal(t, 5.0, draft.SubOrders[1].Subtotal)
	assert.Equal(t, 35.0, draft.GrandTotal)

	assert.Equal(t, "42", draft.CustomerID)
	assert.Equal(t, "alice@example.com", draft.CustomerEmail)
	assert.False(t, draft.CreatedAt.IsZero())
}

func TestCompose_MergesDuplicateLines(t *testing.T) {
	provider := providerWith(entry(1, 100, 10.0, 50, true))
	sut := NewComposer(provider)

	draft, err := sut.Compose(context.Background(), []domain.CartLine{
		{SupplierID: 1, ProductID: 100, Quantity: 2},
		{SupplierID: 1, ProductID: 100, Quantity: 3},
	}, alice)
	require.NoError(t, err)

	require.Len(t, draft.SubOrders, 1)
	require.Len(t, draft.SubOrders[0].Lines, 1)
	assert.Equal(t, 5, draft.SubOrders[0].Lines[0].Quantity)
	assert.Equal(t, 50.0, draft.GrandTotal)

	// Only one snapshot ref is requested for the merged pair.
	assert.Len(t, provider.refs, 1)
}

func TestCompose_RejectsNonPositiveQuantity(t *testing.T) {
	provider := providerWith(entry(1, 100, 10.0, 50, true))
	sut := NewComposer(provider)

	for _, quantity := range []int{0, -3} {
		_, err := sut.Compose(context.Background(), []domain.CartLine{
			{SupplierID: 1, ProductID: 100, Quantity: quantity},
		}, alice)
		require.ErrorIs(t, err, ErrInvalidQuantity, "quantity %d", quantity)
		assert.ErrorContains(t, err, "product 100")
	}
}

func TestCompose_NegativeLineNotMaskedByMerge(t *testing.T) {
	// -1 and 3 would merge to a stock-satisfying 2; the negative line
	// must still be rejected on its own.
	provider := providerWith(entry(1, 100, 10.0, 50, true))
	sut := NewComposer(provider)

	_, err := sut.Compose(context.Background(), []domain.CartLine{
		{SupplierID: 1, ProductID: 100, Quantity: -1},
		{SupplierID: 1, ProductID: 100, Quantity: 3},
	}, alice)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCompose_MergedQuantityCheckedAgainstStock(t *testing.T) {
	// Each line fits the stock of 4, their sum does not.
	provider := providerWith(entry(1, 100, 10.0, 4, true))
	sut := NewComposer(provider)

	_, err := sut.Compose(context.Background(), []domain.CartLine{
		{SupplierID: 1, ProductID: 100, Quantity: 3},
		{SupplierID: 1, ProductID: 100, Quantity: 2},
	}, alice)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestCompose_EmptyCart(t *testing.T) {
	sut := NewComposer(providerWith())

	_, err := sut.Compose(context.Background(), nil, alice)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCompose_UnknownProduct(t *testing.T) {
	provider := providerWith(entry(1, 100, 10.0, 50, true))
	sut := NewComposer(provider)

	_, err := sut.Compose(context.Background(), []domain.CartLine{
		{SupplierID: 1, ProductID: 999, Quantity: 1},
	}, alice)
	require.ErrorIs(t, err, ErrUnknownProduct)
	assert.ErrorContains(t, err, "product 999")
}

func TestCompose_OutOfStock(t *testing.T) {
	provider := providerWith(entry(1, 100, 10.0, 1, true))
	sut := NewComposer(provider)

	_, err := sut.Compose(context.Background(), []domain.CartLine{
		{SupplierID: 1, ProductID: 100, Quantity: 2},
	}, alice)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestCompose_SupplierNotAccepting(t *testing.T) {
	provider := providerWith(entry(1, 100, 10.0, 50, false))
	sut := NewComposer(provider)

	_, err := sut.Compose(context.Background(), []domain.CartLine{
		{SupplierID: 1, ProductID: 100, Quantity: 1},
	}, alice)
	assert.ErrorIs(t, err, ErrSupplierNotAccepting)
}

func TestCompose_FirstViolationInCartOrderWins(t *testing.T) {
	// Line 1 is out of stock, line 2 references an unknown product; the
	// earlier cart line determines the error.
	provider := providerWith(entry(1, 100, 10.0, 0, true))
	sut := NewComposer(provider)

	_, err := sut.Compose(context.Background(), []domain.CartLine{
		{SupplierID: 1, ProductID: 100, Quantity: 1},
		{SupplierID: 2, ProductID: 999, Quantity: 1},
	}, alice)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestCompose_ProviderError(t *testing.T) {
	provider := &mockProvider{err: fmt.Errorf("connection refused")}
	sut := NewComposer(provider)

	_, err := sut.Compose(context.Background(), []domain.CartLine{
		{SupplierID: 1, ProductID: 100, Quantity: 1},
	}, alice)
	require.ErrorContains(t, err, "connection refused")
}

func TestCompose_IsPureGivenSameSnapshot(t *testing.T) {
	provider := providerWith(
		entry(1, 100, 10.0, 50, true),
		entry(2, 200, 5.0, 50, true),
	)
	sut := NewComposer(provider)
	cart := []domain.CartLine{
		{SupplierID: 1, ProductID: 100, Quantity: 2},
		{SupplierID: 2, ProductID: 200, Quantity: 1},
	}

	first, err := sut.Compose(context.Background(), cart, alice)
	require.NoError(t, err)
	second, err := sut.Compose(context.Background(), cart, alice)
	require.NoError(t, err)

	assert.Equal(t, first.SubOrders, second.SubOrders)
	assert.Equal(t, first.GrandTotal, second.GrandTotal)
}
