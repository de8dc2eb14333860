package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names what happened.
type EventKind string

const (
	EventOrderPlaced   EventKind = "ORDER_PLACED"
	EventStatusChanged EventKind = "STATUS_CHANGED"
)

// TargetKind names who should be notified.
type TargetKind string

const (
	TargetCustomer TargetKind = "customer"
	TargetSupplier TargetKind = "supplier"
)

// EventStatus tracks an event through the outbox and delivery pipeline.
type EventStatus string

const (
	EventStatusPending   EventStatus = "PENDING"
	EventStatusPublished EventStatus = "PUBLISHED"
	EventStatusDelivered EventStatus = "DELIVERED"
	EventStatusFailed    EventStatus = "FAILED"
)

// NotificationEvent is written to the outbox in the same transaction as the
// state change that caused it, published to the broker by the poller and
// delivered as email by the dispatcher.
type NotificationEvent struct {
	ID         uuid.UUID       `json:"id"`
	Kind       EventKind       `json:"kind"`
	Target     TargetKind      `json:"target"`
	TargetID   string          `json:"target_id"`
	OrderID    uuid.UUID       `json:"order_id"`
	SubOrderID *uuid.UUID      `json:"sub_order_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Status     EventStatus     `json:"status"`
	Attempts   int             `json:"attempts"`
	CreatedAt  time.Time       `json:"created_at"`
}

// PartitionKey groups events into per-target ordered streams. Events with
// the same key land on the same broker partition.
func (e NotificationEvent) PartitionKey() string {
	return fmt.Sprintf("%s:%s", e.Target, e.TargetID)
}

// OrderPlacedItem is one purchased position as it appears in a
// notification payload.
type OrderPlacedItem struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// OrderPlacedSupplierBlock is the per-shop section of a customer
// confirmation email.
type OrderPlacedSupplierBlock struct {
	SupplierID   int64             `json:"supplier_id"`
	SupplierName string            `json:"supplier_name"`
	Items        []OrderPlacedItem `json:"items"`
	Subtotal     float64           `json:"subtotal"`
}

// OrderPlacedPayload carries everything the mailer needs to render an
// order confirmation. Customer events include all supplier blocks;
// supplier events are limited to that supplier's own block.
type OrderPlacedPayload struct {
	OrderID        uuid.UUID                  `json:"order_id"`
	CustomerID     string                     `json:"customer_id"`
	RecipientEmail string                     `json:"recipient_email"`
	Suppliers      []OrderPlacedSupplierBlock `json:"suppliers"`
	GrandTotal     float64                    `json:"grand_total"`
	PlacedAt       time.Time                  `json:"placed_at"`
}

// StatusChangedPayload describes a single sub-order transition.
type StatusChangedPayload struct {
	OrderID        uuid.UUID `json:"order_id"`
	SubOrderID     uuid.UUID `json:"sub_order_id"`
	SupplierID     int64     `json:"supplier_id"`
	SupplierName   string    `json:"supplier_name"`
	RecipientEmail string    `json:"recipient_email"`
	OldStatus      Status    `json:"old_status"`
	NewStatus      Status    `json:"new_status"`
	ChangedAt      time.Time `json:"changed_at"`
}
