package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderLine is a priced position inside a sub-order. UnitPrice is copied
// from the catalog at commit time and never recomputed, so historical
// orders are immune to later price-list updates.
type OrderLine struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Cost returns quantity times the captured unit price.
func (l OrderLine) Cost() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

// SubOrderDraft is the per-supplier slice of an order draft.
type SubOrderDraft struct {
	SupplierID int64       `json:"supplier_id"`
	Lines      []OrderLine `json:"lines"`
	Subtotal   float64     `json:"subtotal"`
}

// OrderDraft is a fully validated, priced order that has not been
// persisted yet. It is produced by the composer, consumed once by the
// coordinator and then discarded.
type OrderDraft struct {
	CustomerID    string          `json:"customer_id"`
	CustomerEmail string          `json:"customer_email"`
	CreatedAt     time.Time       `json:"created_at"`
	SubOrders     []SubOrderDraft `json:"sub_orders"`
	GrandTotal    float64         `json:"grand_total"`
}

// SubOrder is the persisted portion of an order attributable to a single
// supplier. Its status advances independently of its siblings.
type SubOrder struct {
	ID         uuid.UUID   `json:"id"`
	OrderID    uuid.UUID   `json:"order_id"`
	SupplierID int64       `json:"supplier_id"`
	Lines      []OrderLine `json:"lines"`
	Status     Status      `json:"status"`
	Subtotal   float64     `json:"subtotal"`
}

// Order is the persisted customer order. Status is derived from the
// sub-order statuses and only changes through the transition service.
type Order struct {
	ID            uuid.UUID  `json:"id"`
	CustomerID    string     `json:"customer_id"`
	CustomerEmail string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	Status        Status     `json:"status"`
	SubOrders     []SubOrder `json:"sub_orders"`
	GrandTotal    float64    `json:"grand_total"`
}
