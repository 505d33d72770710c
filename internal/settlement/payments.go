package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ranntharath/ecomerce-backend/internal/bakong"
	"github.com/ranntharath/ecomerce-backend/internal/domain"
)

var (
	ErrAlreadyPaid   = errors.New("order already paid")
	ErrNotOrderOwner = errors.New("order does not belong to user")
)

// InitiateRequest starts a payment attempt for an existing order.
type InitiateRequest struct {
	OrderID       string
	UserID        string
	Currency      bakong.Currency
	CustomerName  string
	CustomerEmail string
}

// InitiatePayment creates a gateway payment for the order and stores the
// returned payment id, linking future webhook and poll reports back to it.
// Retrying a failed attempt issues a new payment id; a completed order is
// rejected.
func (r *Reconciler) InitiatePayment(ctx context.Context, req InitiateRequest) (*bakong.PaymentResponse, error) {
	if !req.Currency.Valid() {
		return nil, &domain.FieldError{Field: "currency"}
	}

	unlock := r.locks.Lock("settlement:" + req.OrderID)
	defer unlock()

	order, err := r.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if req.UserID != "" && order.UserID != req.UserID {
		return nil, ErrNotOrderOwner
	}
	if order.PaymentStatus == domain.PaymentStatusCompleted {
		return nil, ErrAlreadyPaid
	}

	payment, err := r.gateway.CreatePayment(ctx, bakong.PaymentRequest{
		OrderID:       order.ID,
		Amount:        order.TotalAmount,
		Currency:      req.Currency,
		Description:   fmt.Sprintf("Order #%s", order.ID),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		ReturnURL:     fmt.Sprintf("%s/orders/%s/payment-success", r.appURL, order.ID),
		CallbackURL:   fmt.Sprintf("%s/api/v1/payments/webhook", r.appURL),
	})
	if err != nil {
		return nil, err
	}

	update := domain.OrderStatusUpdate{PaymentID: &payment.PaymentID}
	if err := r.orders.Update(ctx, order.ID, update); err != nil {
		return nil, fmt.Errorf("failed to store payment id: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"payment_id": payment.PaymentID,
	}).Info("payment initiated")

	return payment, nil
}
