package status

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
	// ErrInvalidTransition covers both illegal status moves and
	// principals acting outside their authority. Terminal for the
	// request; no retry will help.
	ErrInvalidTransition = errors.New("transition not allowed")

	// ErrTransitionConflict means a concurrent transition won the race.
	// The caller should re-read the sub-order and decide again.
	ErrTransitionConflict = errors.New("sub-order changed concurrently, re-read and retry")

	ErrSubOrderNotFound = errors.New("sub-order not found")
)

// Repo is the slice of the order repository the transition service needs.
type Repo interface {
	GetSubOrderByID(ctx context.Context, id uuid.UUID) (*domain.SubOrder, string, error)
	TransitionSubOrder(ctx context.Context, subOrderID uuid.UUID, from, to domain.Status, events []domain.NotificationEvent) error
	ListSuppliers(ctx context.Context, ids []int64) (map[int64]domain.Supplier, error)
	GetCustomerEmail(ctx context.Context, orderID uuid.UUID) (string, error)
}

// Service drives sub-order status transitions: authority check, validity
// check, compare-and-set update and StatusChanged event emission.
type Service struct {
	repo Repo
	now  func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Transition moves one sub-order to target on behalf of principal. On
// success both the customer and the affected supplier get a StatusChanged
// notification, written in the same transaction as the update.
func (s *Service) Transition(ctx context.Context, subOrderID uuid.UUID, target domain.Status, principal domain.Principal) (*domain.SubOrder, error) {
	sub, customerID, err := s.repo.GetSubOrderByID(ctx, subOrderID)
	if errors.Is(err, repository.ErrSubOrderNotFound) {
		return nil, ErrSubOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load sub-order: %w", err)
	}

	if !allowed(principal, sub, customerID, target) {
		return nil, fmt.Errorf("%s -> %s by %s: %w", sub.Status, target, principal.Role, ErrInvalidTransition)
	}

	events, err := s.buildEvents(ctx, sub, customerID, target)
	if err != nil {
		return nil, err
	}

	err = s.repo.TransitionSubOrder(ctx, subOrderID, sub.Status, target, events)
	switch {
	case err == nil:
		updated := *sub
		updated.Status = target
		return &updated, nil
	case errors.Is(err, repository.ErrStatusConflict):
		return nil, ErrTransitionConflict
	case errors.Is(err, repository.ErrSubOrderNotFound):
		return nil, ErrSubOrderNotFound
	default:
		return nil, fmt.Errorf("persist transition: %w", err)
	}
}

func (s *Service) buildEvents(ctx context.Context, sub *domain.SubOrder, customerID string, target domain.Status) ([]domain.NotificationEvent, error) {
	suppliers, err := s.repo.ListSuppliers(ctx, []int64{sub.SupplierID})
	if err != nil {
		return nil, fmt.Errorf("load supplier: %w", err)
	}
	supplier := suppliers[sub.SupplierID]

	customerEmail, err := s.repo.GetCustomerEmail(ctx, sub.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load customer email: %w", err)
	}

	now := s.now()
	base := domain.StatusChangedPayload{
		OrderID:      sub.OrderID,
		SubOrderID:   sub.ID,
		SupplierID:   sub.SupplierID,
		SupplierName: supplier.Name,
		OldStatus:    sub.Status,
		NewStatus:    target,
		ChangedAt:    now,
	}

	customerPayload := base
	customerPayload.RecipientEmail = customerEmail
	supplierPayload := base
	supplierPayload.RecipientEmail = supplier.Email

	return []domain.NotificationEvent{
		s.newEvent(domain.TargetCustomer, customerID, sub, customerPayload, now),
		s.newEvent(domain.TargetSupplier, strconv.FormatInt(sub.SupplierID, 10), sub, supplierPayload, now),
	}, nil
}

func (s *Service) newEvent(target domain.TargetKind, targetID string, sub *domain.SubOrder, payload domain.StatusChangedPayload, now time.Time) domain.NotificationEvent {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal status changed payload for sub-order %s: %v", sub.ID, err)
		data = []byte("{}")
	}
	subID := sub.ID
	return domain.NotificationEvent{
		ID:         uuid.New(),
		Kind:       domain.EventStatusChanged,
		Target:     target,
		TargetID:   targetID,
		OrderID:    sub.OrderID,
		SubOrderID: &subID,
		Payload:    data,
		Status:     domain.EventStatusPending,
		CreatedAt:  now,
	}
}
