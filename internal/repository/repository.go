package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrSubOrderNotFound = errors.New("sub-order not found")
	ErrEventNotFound    = errors.New("notification event not found")
	ErrSupplierNotFound = errors.New("supplier not found")
	ErrDuplicateCommit  = errors.New("order for this idempotency key already exists")
	ErrStockConflict    = errors.New("stock changed since composition")
	ErrSupplierStopped  = errors.New("supplier stopped accepting orders")
	ErrStatusConflict   = errors.New("sub-order status changed concurrently")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OrderRepository is the persistence boundary of the order pipeline. The
// commit and transition operations are transactional: either everything
// they name exists afterwards, or nothing does.
type OrderRepository interface {
	// CreateOrder persists the order, its sub-orders, lines and the
	// OrderPlaced outbox events as one transaction. Inside the same
	// transaction it re-checks supplier acceptance and conditionally
	// decrements stock, returning ErrStockConflict or ErrSupplierStopped
	// when the catalog moved since composition. ErrDuplicateCommit means
	// the idempotency key was already used.
	CreateOrder(ctx context.Context, order *domain.Order, idempotencyKey string, events []domain.NotificationEvent) error

	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	GetCustomerEmail(ctx context.Context, orderID uuid.UUID) (string, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)

	// GetSubOrderByID returns the sub-order with its lines plus the
	// owning order's customer id for authority checks.
	GetSubOrderByID(ctx context.Context, id uuid.UUID) (*domain.SubOrder, string, error)
	ListSubOrdersBySupplier(ctx context.Context, supplierID int64) ([]*domain.SubOrder, error)

	// TransitionSubOrder performs a compare-and-set status update, then
	// recomputes the parent order status and writes the StatusChanged
	// outbox events, all in one transaction. ErrStatusConflict means the
	// sub-order was no longer in the expected status.
	TransitionSubOrder(ctx context.Context, subOrderID uuid.UUID, from, to domain.Status, events []domain.NotificationEvent) error

	ListSuppliers(ctx context.Context, ids []int64) (map[int64]domain.Supplier, error)
	SetSupplierAccepting(ctx context.Context, supplierID int64, accepting bool) error
	UpsertPriceEntries(ctx context.Context, supplierID int64, entries []domain.PriceSnapshotEntry) error

	EventStore

	RunMigrations(*Credentials) error
	Close() error
}

// EventStore is the slice of the repository the notification pipeline
// needs: the poller drains pending events, the dispatcher marks outcomes.
type EventStore interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*domain.NotificationEvent, error)
	MarkEventPublished(ctx context.Context, id uuid.UUID) error
	MarkEventDelivered(ctx context.Context, id uuid.UUID) error
	MarkEventFailed(ctx context.Context, id uuid.UUID, attempts int) error
	GetEventByID(ctx context.Context, id uuid.UUID) (*domain.NotificationEvent, error)
}
