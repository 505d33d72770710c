package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ranntharath/ecomerce-backend/internal/auth"
	"github.com/ranntharath/ecomerce-backend/internal/bakong"
	"github.com/ranntharath/ecomerce-backend/internal/settlement"
)

// maxWebhookBody bounds inbound webhook payloads.
const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	reconciler *settlement.Reconciler
}

func NewPaymentHandler(reconciler *settlement.Reconciler) *PaymentHandler {
	return &PaymentHandler{reconciler: reconciler}
}

type CreatePaymentDTO struct {
	OrderID       string `json:"orderId"`
	Currency      string `json:"currency"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
}

type RefundRequestDTO struct {
	Reason string `json:"reason"`
}

// CreatePayment starts a gateway payment for one of the caller's orders.
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CreatePaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "orderId is required")
		return
	}
	if req.Currency == "" {
		req.Currency = string(bakong.CurrencyUSD)
	}

	payment, err := h.reconciler.InitiatePayment(r.Context(), settlement.InitiateRequest{
		OrderID:       req.OrderID,
		UserID:        id.UserID,
		Currency:      bakong.Currency(req.Currency),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"paymentId":  payment.PaymentID,
		"paymentUrl": payment.PaymentURL,
		"qrCode":     payment.QRCode,
	})
}

// CheckStatus polls the gateway and reconciles a completion the stored
// order does not yet reflect.
func (h *PaymentHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	paymentID := chi.URLParam(r, "paymentID")
	result, err := h.reconciler.CheckPayment(r.Context(), paymentID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"payment": result.Payment,
		"order":   result.Order,
	})
}

// Webhook receives gateway status callbacks. Unauthenticated by design; the
// X-Signature header is the credential.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}

	err = h.reconciler.HandleWebhook(r.Context(), payload, r.Header.Get("X-Signature"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Refund reverses a completed payment (admin only).
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Reason == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "reason is required")
		return
	}

	order, err := h.reconciler.Refund(r.Context(), chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
