package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jkeevk/diploma-shop/internal/domain"
	"github.com/jkeevk/diploma-shop/internal/repository"
)

var (
	// ErrConcurrentStockChange means the catalog moved between composition
	// and commit: stock ran out or a supplier stopped accepting. The
	// caller should recompose against a fresh snapshot.
	ErrConcurrentStockChange = errors.New("catalog changed since composition, recompose the cart")

	// ErrPersistence wraps storage-layer failures. Safe to retry with the
	// same idempotency key.
	ErrPersistence = errors.New("order commit failed on storage")

	ErrNilDraft           = errors.New("order draft is nil or has no sub-orders")
	ErrMissingIdempotency = errors.New("idempotency key is required")
)

// Repo is the slice of the order repository the coordinator needs.
type Repo interface {
	CreateOrder(ctx context.Context, order *domain.Order, idempotencyKey string, events []domain.NotificationEvent) error
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	ListSuppliers(ctx context.Context, ids []int64) (map[int64]domain.Supplier, error)
}

// Coordinator turns a validated draft into a persisted order. The entire
// commit, including the OrderPlaced notification events, happens in one
// repository transaction.
type Coordinator struct {
	repo Repo
	now  func() time.Time
}

func NewCoordinator(repo Repo) *Coordinator {
	return &Coordinator{repo: repo, now: time.Now}
}

// Commit persists the draft under the given idempotency key. Retrying a
// commit with the same key returns the already-persisted order instead of
// creating a second one.
func (c *Coordinator) Commit(ctx context.Context, draft *domain.OrderDraft, idempotencyKey string) (*domain.Order, error) {
	if draft == nil || len(draft.SubOrders) == 0 {
		return nil, ErrNilDraft
	}
	if idempotencyKey == "" {
		return nil, ErrMissingIdempotency
	}

	order := buildOrder(draft, c.now())

	supplierIDs := make([]int64, len(order.SubOrders))
	for i, sub := range order.SubOrders {
		supplierIDs[i] = sub.SupplierID
	}
	suppliers, err := c.repo.ListSuppliers(ctx, supplierIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	events := buildOrderPlacedEvents(order, draft.CustomerEmail, suppliers)

	err = c.repo.CreateOrder(ctx, order, idempotencyKey, events)
	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, repository.ErrDuplicateCommit):
		existing, getErr := c.repo.GetOrderByIdempotencyKey(ctx, idempotencyKey)
		if getErr != nil {
			return nil, fmt.Errorf("%w: fetch existing order: %v", ErrPersistence, getErr)
		}
		log.Printf("duplicate commit for key %q, returning existing order %s", idempotencyKey, existing.ID)
		return existing, nil
	case errors.Is(err, repository.ErrStockConflict),
		errors.Is(err, repository.ErrSupplierStopped),
		errors.Is(err, repository.ErrSupplierNotFound):
		// A supplier deleted between compose and commit is catalog
		// movement, same as stock running out: recompose, don't retry.
		return nil, fmt.Errorf("%w: %v", ErrConcurrentStockChange, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}

func buildOrder(draft *domain.OrderDraft, now time.Time) *domain.Order {
	order := &domain.Order{
		ID:            uuid.New(),
		CustomerID:    draft.CustomerID,
		CustomerEmail: draft.CustomerEmail,
		CreatedAt:     now,
		Status:        domain.StatusPending,
		GrandTotal:    draft.GrandTotal,
		SubOrders:     make([]domain.SubOrder, len(draft.SubOrders)),
	}
	for i, sub := range draft.SubOrders {
		order.SubOrders[i] = domain.SubOrder{
			ID:         uuid.New(),
			OrderID:    order.ID,
			SupplierID: sub.SupplierID,
			Lines:      sub.Lines,
			Status:     domain.StatusPending,
			Subtotal:   sub.Subtotal,
		}
	}
	return order
}

// buildOrderPlacedEvents produces one aggregate event for the customer and
// one per-supplier event covering only that supplier's lines.
func buildOrderPlacedEvents(order *domain.Order, customerEmail string, suppliers map[int64]domain.Supplier) []domain.NotificationEvent {
	blocks := make([]domain.OrderPlacedSupplierBlock, len(order.SubOrders))
	for i, sub := range order.SubOrders {
		items := make([]domain.OrderPlacedItem, len(sub.Lines))
		for j, line := range sub.Lines {
			items[j] = domain.OrderPlacedItem{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
			}
		}
		blocks[i] = domain.OrderPlacedSupplierBlock{
			SupplierID:   sub.SupplierID,
			SupplierName: suppliers[sub.SupplierID].Name,
			Items:        items,
			Subtotal:     sub.Subtotal,
		}
	}

	events := make([]domain.NotificationEvent, 0, len(order.SubOrders)+1)

	customerPayload := domain.OrderPlacedPayload{
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		RecipientEmail: customerEmail,
		Suppliers:      blocks,
		GrandTotal:     order.GrandTotal,
		PlacedAt:       order.CreatedAt,
	}
	events = append(events, newEvent(domain.TargetCustomer, order.CustomerID, order, nil, customerPayload))

	for i, sub := range order.SubOrders {
		supplierPayload := domain.OrderPlacedPayload{
			OrderID:        order.ID,
			CustomerID:     order.CustomerID,
			RecipientEmail: suppliers[sub.SupplierID].Email,
			Suppliers:      []domain.OrderPlacedSupplierBlock{blocks[i]},
			GrandTotal:     sub.Subtotal,
			PlacedAt:       order.CreatedAt,
		}
		subID := sub.ID
		events = append(events, newEvent(domain.TargetSupplier, strconv.FormatInt(sub.SupplierID, 10), order, &subID, supplierPayload))
	}

	return events
}

func newEvent(target domain.TargetKind, targetID string, order *domain.Order, subOrderID *uuid.UUID, payload domain.OrderPlacedPayload) domain.NotificationEvent {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload structs marshal cleanly; keep the event with an empty
		// payload rather than dropping the notification.
		log.Printf("marshal order placed payload for order %s: %v", order.ID, err)
		data = []byte("{}")
	}
	return domain.NotificationEvent{
		ID:         uuid.New(),
		Kind:       domain.EventOrderPlaced,
		Target:     target,
		TargetID:   targetID,
		OrderID:    order.ID,
		SubOrderID: subOrderID,
		Payload:    data,
		Status:     domain.EventStatusPending,
		CreatedAt:  order.CreatedAt,
	}
}
