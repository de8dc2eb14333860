package cart

import (
	"time"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

// Cart is the stored basket of one customer. Items are keyed by
// (supplier, product); re-adding the same pair replaces the quantity.
type Cart struct {
	ID        string    `bson:"_id,omitempty" json:"-"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Items     []Item    `bson:"items" json:"items"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type Item struct {
	SupplierID int64     `bson:"supplier_id" json:"supplier_id"`
	ProductID  int64     `bson:"product_id" json:"product_id"`
	Quantity   int       `bson:"quantity" json:"quantity"`
	AddedAt    time.Time `bson:"added_at" json:"added_at"`
}

// Lines converts the stored cart into the form the composer consumes,
// preserving item order.
func (c *Cart) Lines() []domain.CartLine {
	lines := make([]domain.CartLine, len(c.Items))
	for i, item := range c.Items {
		lines[i] = domain.CartLine{
			SupplierID: item.SupplierID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
		}
	}
	return lines
}
