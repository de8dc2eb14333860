package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jkeevk/diploma-shop/internal/domain"
	"github.com/jkeevk/diploma-shop/internal/repository"
	"github.com/jkeevk/diploma-shop/internal/status"
)

type orderReader interface {
	GetOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)
}

type statusTransitioner interface {
	Transition(ctx context.Context, subOrderID uuid.UUID, target domain.Status, principal domain.Principal) (*domain.SubOrder, error)
}

type OrdersHandler struct {
	orders      orderReader
	transitions statusTransitioner
	timeout     time.Duration
}

func NewOrdersHandler(orders orderReader, transitions statusTransitioner, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:      orders,
		transitions: transitions,
		timeout:     timeout,
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := principalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrdersByCustomer(ctx, principal.UserID)
	if err != nil {
		log.Printf("orders: list failed for user %s: %v", principal.UserID, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list orders")
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := principalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	order, err := h.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if err != nil {
		log.Printf("orders: get %s failed: %v", orderID, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load order")
		return
	}

	if order.CustomerID != principal.UserID && principal.Role != domain.RoleAdmin {
		// Hide existence from other customers.
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}

	respondJSON(w, http.StatusOK, order)
}

type TransitionRequestDTO struct {
	Status string `json:"status"`
}

// POST /api/v1/suborders/{suborder_id}/status
func (h *OrdersHandler) TransitionSubOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := principalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	subOrderID, err := uuid.Parse(chi.URLParam(r, "suborder_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_suborder_id", "suborder_id must be a UUID")
		return
	}

	var req TransitionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	target := domain.Status(req.Status)
	if !target.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_status", "unknown status value")
		return
	}

	sub, err := h.transitions.Transition(ctx, subOrderID, target, principal)
	if err != nil {
		handleTransitionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sub)
}

func handleTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, status.ErrSubOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", "sub-order not found")
	case errors.Is(err, status.ErrInvalidTransition):
		respondError(w, http.StatusForbidden, "invalid_transition", err.Error())
	case errors.Is(err, status.ErrTransitionConflict):
		respondError(w, http.StatusConflict, "transition_conflict",
			"sub-order status changed concurrently, reload and retry")
	default:
		log.Printf("orders: transition failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update status")
	}
}
