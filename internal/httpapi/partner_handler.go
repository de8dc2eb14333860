package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jkeevk/diploma-shop/internal/domain"
	"github.com/jkeevk/diploma-shop/internal/repository"
)

type partnerStore interface {
	SetSupplierAccepting(ctx context.Context, supplierID int64, accepting bool) error
	UpsertPriceEntries(ctx context.Context, supplierID int64, entries []domain.PriceSnapshotEntry) error
	ListSubOrdersBySupplier(ctx context.Context, supplierID int64) ([]*domain.SubOrder, error)
}

// PartnerHandler serves the supplier side of the shop: toggling order
// intake, publishing price lists and reviewing incoming sub-orders.
type PartnerHandler struct {
	store   partnerStore
	timeout time.Duration
}

func NewPartnerHandler(store partnerStore, timeout time.Duration) *PartnerHandler {
	return &PartnerHandler{
		store:   store,
		timeout: timeout,
	}
}

func (h *PartnerHandler) supplierFromRequest(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return domain.Principal{}, false
	}
	if principal.Role != domain.RoleSupplier || principal.SupplierID == 0 {
		respondError(w, http.StatusForbidden, "forbidden", "supplier role required")
		return domain.Principal{}, false
	}
	return principal, true
}

type AcceptingRequestDTO struct {
	Accepting *bool `json:"accepting"`
}

// POST /api/v1/partner/state
func (h *PartnerHandler) SetAccepting(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := h.supplierFromRequest(w, r)
	if !ok {
		return
	}

	var req AcceptingRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Accepting == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "accepting (bool) is required")
		return
	}

	err := h.store.SetSupplierAccepting(ctx, principal.SupplierID, *req.Accepting)
	if errors.Is(err, repository.ErrSupplierNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "supplier not found")
		return
	}
	if err != nil {
		log.Printf("partner: set accepting failed for supplier %d: %v", principal.SupplierID, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update supplier state")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"accepting": *req.Accepting})
}

type PriceEntryDTO struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Stock       int     `json:"stock"`
}

type PriceUploadRequestDTO struct {
	Entries []PriceEntryDTO `json:"entries"`
}

// POST /api/v1/partner/prices
func (h *PartnerHandler) UploadPrices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := h.supplierFromRequest(w, r)
	if !ok {
		return
	}

	var req PriceUploadRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if len(req.Entries) == 0 {
		respondError(w, http.StatusBadRequest, "empty_price_list", "entries must not be empty")
		return
	}

	entries := make([]domain.PriceSnapshotEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		if e.ProductID <= 0 || e.UnitPrice <= 0 || e.Stock < 0 {
			respondError(w, http.StatusBadRequest, "invalid_entry",
				"product_id and unit_price must be positive, stock non-negative")
			return
		}
		entries = append(entries, domain.PriceSnapshotEntry{
			SupplierID:  principal.SupplierID,
			ProductID:   e.ProductID,
			ProductName: e.ProductName,
			UnitPrice:   e.UnitPrice,
			Stock:       e.Stock,
		})
	}

	if err := h.store.UpsertPriceEntries(ctx, principal.SupplierID, entries); err != nil {
		log.Printf("partner: price upload failed for supplier %d: %v", principal.SupplierID, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to store price list")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"updated": len(entries)})
}

// GET /api/v1/partner/orders
func (h *PartnerHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := h.supplierFromRequest(w, r)
	if !ok {
		return
	}

	subs, err := h.store.ListSubOrdersBySupplier(ctx, principal.SupplierID)
	if err != nil {
		log.Printf("partner: list orders failed for supplier %d: %v", principal.SupplierID, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list sub-orders")
		return
	}

	respondJSON(w, http.StatusOK, subs)
}
