package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) (Repository, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)

	mongoRepo := repo.(*mongoRepository)
	err = mongoRepo.CreateIndexes(ctx)
	require.NoError(t, err)

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestGetCart_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	cart, err := repo.GetCart(ctx, "nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestAddItem_NewCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	userID := "user123"
	ctx := context.Background()
	item := Item{
		SupplierID: 1,
		ProductID:  100,
		Quantity:   3,
	}
	err := repo.AddItem(ctx, userID, item)
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, cart.UserID)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, int64(1), cart.Items[0].SupplierID)
	assert.Equal(t, int64(100), cart.Items[0].ProductID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestAddItem_ExistingItem_UpdatesQuantity(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := "user123"

	// Add item first time
	err := repo.AddItem(ctx, userID, Item{SupplierID: 1, ProductID: 100, Quantity: 2})
	require.NoError(t, err)

	// Add the same supplier/product pair again with a different quantity
	err = repo.AddItem(ctx, userID, Item{SupplierID: 1, ProductID: 100, Quantity: 5})
	require.NoError(t, err)

	// Verify quantity was replaced, not added
	cart, err := repo.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestAddItem_SameProductDifferentSupplier(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := "user123"

	err := repo.AddItem(ctx, userID, Item{SupplierID: 1, ProductID: 100, Quantity: 2})
	require.NoError(t, err)
	err = repo.AddItem(ctx, userID, Item{SupplierID: 2, ProductID: 100, Quantity: 4})
	require.NoError(t, err)

	// The same product offered by two suppliers is two distinct lines
	cart, err := repo.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 4, cart.Items[1].Quantity)
}

func TestUpdateItemQuantity(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := "user123"

	err := repo.AddItem(ctx, userID, Item{SupplierID: 1, ProductID: 100, Quantity: 2})
	require.NoError(t, err)

	err = repo.UpdateItemQuantity(ctx, userID, 1, 100, 10)
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 10, cart.Items[0].Quantity)
}

func TestUpdateItemQuantity_ItemNotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := "user123"

	err := repo.AddItem(ctx, userID, Item{SupplierID: 1, ProductID: 100, Quantity: 2})
	require.NoError(t, err)

	// Right product, wrong supplier
	err = repo.UpdateItemQuantity(ctx, userID, 2, 100, 10)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveItem(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := "user123"

	err := repo.AddItem(ctx, userID, Item{SupplierID: 1, ProductID: 100, Quantity: 2})
	require.NoError(t, err)
	err = repo.AddItem(ctx, userID, Item{SupplierID: 2, ProductID: 200, Quantity: 3})
	require.NoError(t, err)

	err = repo.RemoveItem(ctx, userID, 1, 100)
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, int64(200), cart.Items[0].ProductID)
}

func TestRemoveItem_CartNotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.RemoveItem(context.Background(), "nonexistent", 1, 100)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestDeleteCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := "user123"

	err := repo.AddItem(ctx, userID, Item{SupplierID: 1, ProductID: 100, Quantity: 2})
	require.NoError(t, err)

	err = repo.DeleteCart(ctx, userID)
	require.NoError(t, err)

	_, err = repo.GetCart(ctx, userID)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestDeleteCart_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.DeleteCart(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond) // Ensure context is cancelled

	_, err := repo.GetCart(ctx, "user123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
