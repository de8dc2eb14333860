package domain

// ProductRef identifies a product offer within one supplier's catalog.
type ProductRef struct {
	SupplierID int64
	ProductID  int64
}

// PriceSnapshotEntry is a point-in-time view of one catalog offer, used for
// cart validation and pricing. Stock is exposed as a quantity rather than a
// boolean so the commit-time recheck can decrement it conditionally.
type PriceSnapshotEntry struct {
	SupplierID        int64   `json:"supplier_id"`
	ProductID         int64   `json:"product_id"`
	ProductName       string  `json:"product_name"`
	UnitPrice         float64 `json:"unit_price"`
	Stock             int     `json:"stock"`
	SupplierAccepting bool    `json:"supplier_accepting"`
}

// InStock reports whether the offer can cover the requested quantity.
func (e PriceSnapshotEntry) InStock(quantity int) bool {
	return e.Stock >= quantity
}

// Supplier is the directory record for a shop that sells through the
// platform. Accepting mirrors the shop owner's order-intake toggle.
type Supplier struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Accepting bool   `json:"accepting"`
}
