package compose

import "errors"

// Validation errors. None of these are retryable; the caller needs a new
// cart or a fresh snapshot.
var (
	ErrEmptyCart            = errors.New("cart is empty, nothing to compose")
	ErrInvalidQuantity      = errors.New("line quantity must be positive")
	ErrUnknownProduct       = errors.New("product is not offered by this supplier")
	ErrOutOfStock           = errors.New("not enough stock for requested quantity")
	ErrSupplierNotAccepting = errors.New("supplier is not accepting orders")
)
