// Package settlement merges externally reported payment status into an
// order's authoritative status. Gateway reports arrive over two channels,
// webhook push and explicit polling, possibly out of order, duplicated, or
// not at all; the reconciler applies them under a per-order critical
// section with a monotonic merge rule so replays and stragglers can never
// downgrade a settled order.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ranntharath/ecomerce-backend/internal/bakong"
	"github.com/ranntharath/ecomerce-backend/internal/domain"
	"github.com/ranntharath/ecomerce-backend/internal/events"
	"github.com/ranntharath/ecomerce-backend/internal/inventory"
	"github.com/ranntharath/ecomerce-backend/internal/lock"
	"github.com/ranntharath/ecomerce-backend/internal/repository"
)

var (
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMalformedPayload    = errors.New("malformed webhook payload")
	ErrPaymentNotCompleted = errors.New("order payment not completed")
)

// Gateway is the slice of the payment client the reconciler depends on.
type Gateway interface {
	CreatePayment(ctx context.Context, req bakong.PaymentRequest) (*bakong.PaymentResponse, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*bakong.PaymentStatus, error)
	VerifyWebhookSignature(payload []byte, signature string) bool
}

// WebhookEvent is the raw inbound webhook payload.
type WebhookEvent struct {
	PaymentID     string  `json:"payment_id"`
	OrderID       string  `json:"order_id"`
	Status        string  `json:"status"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

// PollResult pairs the gateway's view of a payment with the order after
// reconciliation.
type PollResult struct {
	Payment *bakong.PaymentStatus
	Order   *domain.Order
}

type Reconciler struct {
	orders    repository.OrderStore
	processed repository.SettlementEventStore
	ledger    *inventory.Ledger
	gateway   Gateway
	publisher events.Publisher
	locks     *lock.Keyed
	appURL    string
	log       *logrus.Logger
}

func NewReconciler(
	orders repository.OrderStore,
	processed repository.SettlementEventStore,
	ledger *inventory.Ledger,
	gateway Gateway,
	publisher events.Publisher,
	locks *lock.Keyed,
	appURL string,
	log *logrus.Logger,
) *Reconciler {
	return &Reconciler{
		orders:    orders,
		processed: processed,
		ledger:    ledger,
		gateway:   gateway,
		publisher: publisher,
		locks:     locks,
		appURL:    appURL,
		log:       log,
	}
}

// resolution is the internal effect of one gateway status report.
type resolution struct {
	payment   domain.PaymentStatus
	process   bool // promote order status pending → processing
	cancel    bool // set order status cancelled and restore stock
	eventType string
}

// resolveGatewayStatus maps the gateway vocabulary onto internal statuses.
// The mapping is total: anything unrecognized reports ok=false and is
// logged, not applied.
func resolveGatewayStatus(status string) (resolution, bool) {
	switch status {
	case "completed", "success":
		return resolution{payment: domain.PaymentStatusCompleted, process: true, eventType: events.TypePaymentCompleted}, true
	case "failed", "error":
		return resolution{payment: domain.PaymentStatusFailed, eventType: events.TypePaymentFailed}, true
	case "cancelled":
		return resolution{payment: domain.PaymentStatusFailed, cancel: true, eventType: events.TypePaymentFailed}, true
	case "refunded":
		return resolution{payment: domain.PaymentStatusRefunded, cancel: true, eventType: events.TypeOrderRefunded}, true
	default:
		return resolution{}, false
	}
}

// HandleWebhook verifies, parses, and applies one inbound webhook delivery.
// No state is touched on signature rejection. A nil return means the
// delivery may be acknowledged: either the event was applied or it was a
// deliberate no-op (duplicate or out-of-order report).
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !r.gateway.VerifyWebhookSignature(payload, signature) {
		return ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if event.PaymentID == "" && event.OrderID == "" {
		return ErrMalformedPayload
	}

	order, err := r.orders.FindByPaymentOrOrderID(ctx, event.PaymentID, event.OrderID)
	if err != nil {
		// Redelivery is the gateway's responsibility; log and surface.
		r.log.WithFields(logrus.Fields{
			"payment_id": event.PaymentID,
			"order_id":   event.OrderID,
		}).Warn("webhook for unknown order")
		return err
	}

	res, ok := resolveGatewayStatus(event.Status)
	if !ok {
		r.log.WithFields(logrus.Fields{
			"order_id": order.ID,
			"status":   event.Status,
		}).Warn("unknown gateway payment status")
		return nil
	}

	return r.apply(ctx, order.ID, res, event.PaymentID, event.TransactionID)
}

// CheckPayment polls the gateway for a payment and reconciles a reported
// completion the stored order does not yet show. Gateway failures leave
// the order untouched.
func (r *Reconciler) CheckPayment(ctx context.Context, paymentID string) (*PollResult, error) {
	order, err := r.orders.FindByPaymentOrOrderID(ctx, paymentID, "")
	if err != nil {
		return nil, err
	}

	status, err := r.gateway.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if res, ok := resolveGatewayStatus(status.Status); ok &&
		res.payment == domain.PaymentStatusCompleted &&
		order.PaymentStatus != domain.PaymentStatusCompleted {
		if err := r.apply(ctx, order.ID, res, paymentID, status.TransactionID); err != nil {
			return nil, err
		}
	}

	refreshed, err := r.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &PollResult{Payment: status, Order: refreshed}, nil
}

// Refund reverses a completed payment: the order is cancelled, the payment
// marked refunded, and the reserved stock restored. Admin-initiated; the
// gateway refund call itself is out of scope.
func (r *Reconciler) Refund(ctx context.Context, orderID, reason string) (*domain.Order, error) {
	unlock := r.locks.Lock("settlement:" + orderID)
	defer unlock()

	order, err := r.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != domain.PaymentStatusCompleted {
		return nil, ErrPaymentNotCompleted
	}

	now := time.Now()
	cancelled := domain.OrderStatusCancelled
	refunded := domain.PaymentStatusRefunded
	update := domain.OrderStatusUpdate{
		Status:        &cancelled,
		PaymentStatus: &refunded,
		RefundReason:  &reason,
		RefundedAt:    &now,
	}
	if err := r.orders.Update(ctx, order.ID, update); err != nil {
		return nil, err
	}

	r.ledger.Restore(ctx, orderLines(order))
	r.publishOnce(ctx, order, events.TypeOrderRefunded, refunded, order.PaymentID, order.TransactionID)

	r.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Info("order refunded")

	return r.orders.FindByID(ctx, order.ID)
}

// apply merges one resolved gateway report into the order under its
// critical section. The order is re-read inside the lock so concurrent
// webhook and poll deliveries serialize against fresh state.
func (r *Reconciler) apply(ctx context.Context, orderID string, res resolution, paymentID, transactionID string) error {
	unlock := r.locks.Lock("settlement:" + orderID)
	defer unlock()

	order, err := r.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	current := order.PaymentStatus
	if current == res.payment {
		r.log.WithFields(logrus.Fields{
			"order_id": order.ID,
			"status":   current,
		}).Debug("duplicate settlement event, no-op")
		return nil
	}
	if !current.CanTransitionTo(res.payment) {
		// Late or out-of-order report; dropping it preserves monotonicity.
		r.log.WithFields(logrus.Fields{
			"order_id": order.ID,
			"current":  current,
			"reported": res.payment,
		}).Warn("dropping out-of-order settlement event")
		return nil
	}

	payment := res.payment
	update := domain.OrderStatusUpdate{PaymentStatus: &payment}
	if transactionID != "" {
		update.TransactionID = &transactionID
	}
	if res.process && order.Status == domain.OrderStatusPending {
		processing := domain.OrderStatusProcessing
		update.Status = &processing
	}
	if res.cancel {
		cancelled := domain.OrderStatusCancelled
		update.Status = &cancelled
	}

	if err := r.orders.Update(ctx, order.ID, update); err != nil {
		return fmt.Errorf("failed to apply settlement update: %w", err)
	}

	if res.cancel {
		r.ledger.Restore(ctx, orderLines(order))
	}

	r.publishOnce(ctx, order, res.eventType, payment, paymentID, transactionID)

	r.log.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"payment_status": payment,
	}).Info("settlement event applied")
	return nil
}

// publishOnce records the event in the dedup ledger and publishes only on
// first application, so externally visible side effects fire once even
// when webhook and poll race or the gateway redelivers.
func (r *Reconciler) publishOnce(ctx context.Context, order *domain.Order, eventType string, payment domain.PaymentStatus, paymentID, transactionID string) {
	if paymentID == "" {
		paymentID = order.PaymentID
	}
	key := fmt.Sprintf("%s|%s|%s|%s", order.ID, paymentID, transactionID, payment)

	first, err := r.processed.Record(ctx, key)
	if err != nil {
		r.log.WithField("key", key).WithError(err).Error("failed to record settlement event")
		return
	}
	if !first {
		return
	}

	event := events.OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentID:     paymentID,
		TransactionID: transactionID,
		PaymentStatus: payment.String(),
		OrderStatus:   order.Status.String(),
		TotalAmount:   order.TotalAmount,
		OccurredAt:    time.Now(),
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.log.WithField("order_id", order.ID).WithError(err).Error("failed to publish order event")
	}
}

func orderLines(order *domain.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
