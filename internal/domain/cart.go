package domain

// CartLine is a single position in a customer's cart: a quantity of one
// product offered by one supplier. Carts are assembled by the cart service
// and handed to the composer whole; the core never stores them.
type CartLine struct {
	SupplierID int64 `json:"supplier_id"`
	ProductID  int64 `json:"product_id"`
	Quantity   int   `json:"quantity"`
}

// Ref returns the catalog key for this line.
func (l CartLine) Ref() ProductRef {
	return ProductRef{SupplierID: l.SupplierID, ProductID: l.ProductID}
}
