package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jkeevk/diploma-shop/internal/cart"
)

type cartService interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	AddItem(ctx context.Context, userID string, item cart.Item) error
	UpdateQuantity(ctx context.Context, userID string, supplierID, productID int64, quantity int) error
	RemoveItem(ctx context.Context, userID string, supplierID, productID int64) error
	ClearCart(ctx context.Context, userID string) error
}

type CartHandler struct {
	carts   cartService
	timeout time.Duration
}

func NewCartHandler(carts cartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	SupplierID int64 `json:"supplier_id"`
	ProductID  int64 `json:"product_id"`
	Quantity   int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := principalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	stored, err := h.carts.GetCart(ctx, principal.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	respondJSON(w, http.StatusOK, stored)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := principalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.SupplierID <= 0 || req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product",
			"supplier_id and product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	err := h.carts.AddItem(ctx, principal.UserID, cart.Item{
		SupplierID: req.SupplierID,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to add item")
		return
	}

	respondCart(ctx, w, h.carts, principal.UserID, http.StatusCreated)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := principalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	supplierID, productID, ok := itemIDsFromURL(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	err := h.carts.UpdateQuantity(ctx, principal.UserID, supplierID, productID, req.Quantity)
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondCart(ctx, w, h.carts, principal.UserID, http.StatusOK)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := principalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	supplierID, productID, ok := itemIDsFromURL(w, r)
	if !ok {
		return
	}

	if err := h.carts.RemoveItem(ctx, principal.UserID, supplierID, productID); err != nil {
		handleCartError(w, err)
		return
	}

	respondCart(ctx, w, h.carts, principal.UserID, http.StatusOK)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := principalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	if err := h.carts.ClearCart(ctx, principal.UserID); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to clear cart")
		return
	}

	respondCart(ctx, w, h.carts, principal.UserID, http.StatusOK)
}

func itemIDsFromURL(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	supplierID, err := strconv.ParseInt(chi.URLParam(r, "supplier_id"), 10, 64)
	if err != nil || supplierID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_supplier_id", "supplier_id must be a positive integer")
		return 0, 0, false
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, 0, false
	}
	return supplierID, productID, true
}

func handleCartError(w http.ResponseWriter, err error) {
	switch err {
	case cart.ErrCartNotFound, cart.ErrItemNotFound:
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "cart operation failed")
	}
}

func respondCart(ctx context.Context, w http.ResponseWriter, carts cartService, userID string, status int) {
	stored, err := carts.GetCart(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}
	respondJSON(w, status, stored)
}
