package cart

import (
	"context"
	"errors"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

type Repository interface {
	GetCart(ctx context.Context, userID string) (*Cart, error)
	AddItem(ctx context.Context, userID string, item Item) error
	UpdateItemQuantity(ctx context.Context, userID string, supplierID, productID int64, quantity int) error
	RemoveItem(ctx context.Context, userID string, supplierID, productID int64) error
	DeleteCart(ctx context.Context, userID string) error
}
