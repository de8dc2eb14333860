package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jkeevk/diploma-shop/internal/cart"
	"github.com/jkeevk/diploma-shop/internal/compose"
	"github.com/jkeevk/diploma-shop/internal/coordinator"
	"github.com/jkeevk/diploma-shop/internal/domain"
)

type orderComposer interface {
	Compose(ctx context.Context, lines []domain.CartLine, principal domain.Principal) (*domain.OrderDraft, error)
}

type orderCommitter interface {
	Commit(ctx context.Context, draft *domain.OrderDraft, idempotencyKey string) (*domain.Order, error)
}

type cartReader interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

type CheckoutHandler struct {
	composer  orderComposer
	committer orderCommitter
	carts     cartReader
	timeout   time.Duration
}

func NewCheckoutHandler(composer orderComposer, committer orderCommitter, carts cartReader, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		composer:  composer,
		committer: committer,
		carts:     carts,
		timeout:   timeout,
	}
}

// POST /api/v1/checkout
//
// Composes the caller's stored cart into an order and commits it. The
// Idempotency-Key header makes retries safe: a repeated key returns the
// already-committed order instead of placing a second one.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := principalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		respondError(w, http.StatusBadRequest, "missing_idempotency_key",
			"Idempotency-Key header is required")
		return
	}

	stored, err := h.carts.GetCart(ctx, principal.UserID)
	if err != nil {
		log.Printf("checkout [%s]: cart load failed for user %s: %v",
			getRequestID(r.Context()), principal.UserID, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	draft, err := h.composer.Compose(ctx, stored.Lines(), principal)
	if err != nil {
		handleComposeError(w, err)
		return
	}

	order, err := h.committer.Commit(ctx, draft, idempotencyKey)
	if err != nil {
		handleCommitError(w, err)
		return
	}

	if err := h.carts.ClearCart(ctx, principal.UserID); err != nil {
		// Order is committed; a stale cart is an inconvenience, not a failure.
		log.Printf("checkout [%s]: cart clear failed for user %s: %v",
			getRequestID(r.Context()), principal.UserID, err)
	}

	respondJSON(w, http.StatusCreated, order)
}

func handleComposeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, compose.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart has no items")
	case errors.Is(err, compose.ErrInvalidQuantity):
		respondError(w, http.StatusUnprocessableEntity, "invalid_quantity", err.Error())
	case errors.Is(err, compose.ErrUnknownProduct):
		respondError(w, http.StatusUnprocessableEntity, "unknown_product", err.Error())
	case errors.Is(err, compose.ErrOutOfStock):
		respondError(w, http.StatusUnprocessableEntity, "out_of_stock", err.Error())
	case errors.Is(err, compose.ErrSupplierNotAccepting):
		respondError(w, http.StatusUnprocessableEntity, "supplier_not_accepting", err.Error())
	default:
		log.Printf("checkout: compose failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to compose order")
	}
}

func handleCommitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coordinator.ErrConcurrentStockChange):
		respondError(w, http.StatusConflict, "stock_conflict",
			"stock or supplier availability changed, re-check the cart and retry")
	case errors.Is(err, coordinator.ErrMissingIdempotency), errors.Is(err, coordinator.ErrNilDraft):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		log.Printf("checkout: commit failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to commit order")
	}
}
