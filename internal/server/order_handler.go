package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ranntharath/ecomerce-backend/internal/auth"
	"github.com/ranntharath/ecomerce-backend/internal/checkout"
	"github.com/ranntharath/ecomerce-backend/internal/domain"
	"github.com/ranntharath/ecomerce-backend/internal/repository"
)

type OrderHandler struct {
	checkout *checkout.Service
	orders   repository.OrderStore
}

func NewOrderHandler(checkoutSvc *checkout.Service, orders repository.OrderStore) *OrderHandler {
	return &OrderHandler{checkout: checkoutSvc, orders: orders}
}

type CheckoutRequestDTO struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
}

type UpdateOrderStatusDTO struct {
	Status string `json:"status"`
}

type OrderListResponse struct {
	Orders []domain.Order `json:"orders"`
	Total  int64          `json:"total"`
	Limit  int64          `json:"limit"`
	Offset int64          `json:"offset"`
}

// Checkout converts the caller's cart into a pending order.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.checkout.Checkout(r.Context(), id.UserID, req.ShippingAddress)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	limit, offset := pagination(r)
	orders, total, err := h.orders.FindByUser(r.Context(), id.UserID, limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderListResponse{
		Orders: orders,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetOrder returns one order. Owners see their own orders; admins see all.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	order, err := h.orders.FindByID(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		handleError(w, err)
		return
	}
	if order.UserID != id.UserID && !id.Admin() {
		respondError(w, http.StatusForbidden, "forbidden", "not your order")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// UpdateStatus moves fulfilment forward (admin only). Payment status is
// never writable here; it belongs to settlement.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	next := domain.OrderStatus(req.Status)
	if !next.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_status", "unknown order status: "+req.Status)
		return
	}

	orderID := chi.URLParam(r, "orderID")
	order, err := h.orders.FindByID(r.Context(), orderID)
	if err != nil {
		handleError(w, err)
		return
	}
	if !order.Status.CanTransitionTo(next) {
		respondError(w, http.StatusConflict, "invalid_transition",
			"cannot move order from "+order.Status.String()+" to "+next.String())
		return
	}

	if err := h.orders.Update(r.Context(), orderID, domain.OrderStatusUpdate{Status: &next}); err != nil {
		handleError(w, err)
		return
	}

	updated, err := h.orders.FindByID(r.Context(), orderID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func pagination(r *http.Request) (limit, offset int64) {
	limit = 20
	if v, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
