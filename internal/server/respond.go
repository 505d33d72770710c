// Package server exposes the checkout pipeline over HTTP with chi.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ranntharath/ecomerce-backend/internal/bakong"
	"github.com/ranntharath/ecomerce-backend/internal/cart"
	"github.com/ranntharath/ecomerce-backend/internal/checkout"
	"github.com/ranntharath/ecomerce-backend/internal/domain"
	"github.com/ranntharath/ecomerce-backend/internal/repository"
	"github.com/ranntharath/ecomerce-backend/internal/settlement"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps service errors onto HTTP statuses. Anything unrecognized
// is an internal error; the raw message is never leaked for those.
func handleError(w http.ResponseWriter, err error) {
	var fieldErr *domain.FieldError
	var gatewayErr *bakong.GatewayError

	switch {
	case errors.As(err, &fieldErr):
		respondError(w, http.StatusBadRequest, "invalid_request", fieldErr.Error())
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, settlement.ErrMalformedPayload):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrCartNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, repository.ErrInsufficientStock),
		errors.Is(err, cart.ErrItemAlreadyInCart),
		errors.Is(err, settlement.ErrAlreadyPaid),
		errors.Is(err, settlement.ErrPaymentNotCompleted):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, settlement.ErrInvalidSignature):
		respondError(w, http.StatusUnauthorized, "invalid_signature", err.Error())
	case errors.Is(err, settlement.ErrNotOrderOwner):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.As(err, &gatewayErr):
		respondError(w, http.StatusBadRequest, "payment_declined", gatewayErr.Error())
	case errors.Is(err, bakong.ErrGatewayUnavailable):
		respondError(w, http.StatusBadGateway, "gateway_unavailable", "payment gateway unavailable")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
