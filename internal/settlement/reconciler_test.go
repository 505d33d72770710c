package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranntharath/ecomerce-backend/internal/bakong"
	"github.com/ranntharath/ecomerce-backend/internal/domain"
	"github.com/ranntharath/ecomerce-backend/internal/events"
	"github.com/ranntharath/ecomerce-backend/internal/inventory"
	"github.com/ranntharath/ecomerce-backend/internal/lock"
	"github.com/ranntharath/ecomerce-backend/internal/repository"
)

const webhookSecret = "webhook-secret"

type fakeGateway struct {
	status     *bakong.PaymentStatus
	statusErr  error
	createResp *bakong.PaymentResponse
	createErr  error
}

func (f *fakeGateway) CreatePayment(context.Context, bakong.PaymentRequest) (*bakong.PaymentResponse, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResp, nil
}

func (f *fakeGateway) GetPaymentStatus(context.Context, string) (*bakong.PaymentStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func (f *fakeGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	return bakong.VerifyWebhookSignature(payload, signature, webhookSecret)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) all() []events.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.OrderEvent(nil), p.events...)
}

type fixture struct {
	reconciler *Reconciler
	orders     *repository.MemoryOrderStore
	products   *repository.MemoryProductStore
	gateway    *fakeGateway
	published  *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	products := repository.NewMemoryProductStore()
	orders := repository.NewMemoryOrderStore()
	processed := repository.NewMemorySettlementEventStore()
	gateway := &fakeGateway{}
	published := &recordingPublisher{}

	reconciler := NewReconciler(
		orders, processed,
		inventory.NewLedger(products, log),
		gateway, published,
		lock.NewKeyed(),
		"http://localhost:8080",
		log,
	)
	return &fixture{
		reconciler: reconciler,
		orders:     orders,
		products:   products,
		gateway:    gateway,
		published:  published,
	}
}

// seedOrder inserts an order whose stock is already reserved, mirroring the
// state right after checkout.
func (f *fixture) seedOrder(t *testing.T) *domain.Order {
	t.Helper()
	f.products.Seed(domain.Product{ID: "p1", Price: 4.00, Stock: 3})

	order := &domain.Order{
		ID:            "order-1",
		UserID:        "u1",
		Items:         []domain.OrderItem{{ProductID: "p1", Quantity: 2, Price: 4.00}},
		TotalAmount:   8.00,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		PaymentID:     "pay_1",
	}
	_, err := f.orders.Insert(context.Background(), order)
	require.NoError(t, err)
	return order
}

func signedPayload(payload string) ([]byte, string) {
	raw := []byte(payload)
	return raw, bakong.SignPayload(raw, webhookSecret)
}

func (f *fixture) order(t *testing.T, id string) *domain.Order {
	t.Helper()
	o, err := f.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func TestWebhookCompletedPayment(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	payload, sig := signedPayload(`{"payment_id":"pay_1","status":"completed","transaction_id":"txn_1"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), payload, sig))

	order := f.order(t, "order-1")
	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)
	assert.Equal(t, "txn_1", order.TransactionID)

	published := f.published.all()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypePaymentCompleted, published[0].Type)
	assert.Equal(t, "order-1", published[0].OrderID)
}

func TestWebhookDuplicateDeliveryIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	payload, sig := signedPayload(`{"payment_id":"pay_1","status":"completed","transaction_id":"txn_1"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), payload, sig))
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), payload, sig))

	order := f.order(t, "order-1")
	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)
	assert.Len(t, f.published.all(), 1)
}

func TestWebhookFailedAfterCompletedIsDropped(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	completed, sig1 := signedPayload(`{"payment_id":"pay_1","status":"completed","transaction_id":"txn_1"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), completed, sig1))

	failed, sig2 := signedPayload(`{"payment_id":"pay_1","status":"failed"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), failed, sig2))

	order := f.order(t, "order-1")
	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)
	assert.Len(t, f.published.all(), 1)
}

func TestWebhookFailedThenCompletedRetry(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	failed, sig1 := signedPayload(`{"payment_id":"pay_1","status":"failed"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), failed, sig1))
	assert.Equal(t, domain.PaymentStatusFailed, f.order(t, "order-1").PaymentStatus)

	completed, sig2 := signedPayload(`{"payment_id":"pay_1","status":"completed","transaction_id":"txn_2"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), completed, sig2))
	assert.Equal(t, domain.PaymentStatusCompleted, f.order(t, "order-1").PaymentStatus)
}

func TestWebhookInvalidSignatureTouchesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	payload := []byte(`{"payment_id":"pay_1","status":"completed"}`)
	err := f.reconciler.HandleWebhook(context.Background(), payload, "bad-signature")
	require.ErrorIs(t, err, ErrInvalidSignature)

	order := f.order(t, "order-1")
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Empty(t, f.published.all())
}

func TestWebhookMalformedPayload(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	payload, sig := signedPayload(`not json`)
	err := f.reconciler.HandleWebhook(context.Background(), payload, sig)
	assert.ErrorIs(t, err, ErrMalformedPayload)

	empty, sig2 := signedPayload(`{"status":"completed"}`)
	err = f.reconciler.HandleWebhook(context.Background(), empty, sig2)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestWebhookUnknownOrder(t *testing.T) {
	f := newFixture(t)

	payload, sig := signedPayload(`{"payment_id":"pay_unknown","status":"completed"}`)
	err := f.reconciler.HandleWebhook(context.Background(), payload, sig)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestWebhookUnknownStatusIsLoggedNoOp(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	payload, sig := signedPayload(`{"payment_id":"pay_1","status":"mystery"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), payload, sig))

	assert.Equal(t, domain.PaymentStatusPending, f.order(t, "order-1").PaymentStatus)
	assert.Empty(t, f.published.all())
}

func TestWebhookCancelledRestoresStock(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	payload, sig := signedPayload(`{"payment_id":"pay_1","status":"cancelled"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), payload, sig))

	order := f.order(t, "order-1")
	assert.Equal(t, domain.PaymentStatusFailed, order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)

	p, err := f.products.FindByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestWebhookRefundedCancelsAndRestores(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	completed, sig1 := signedPayload(`{"payment_id":"pay_1","status":"completed"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), completed, sig1))

	refunded, sig2 := signedPayload(`{"payment_id":"pay_1","status":"refunded"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), refunded, sig2))

	order := f.order(t, "order-1")
	assert.Equal(t, domain.PaymentStatusRefunded, order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)

	p, err := f.products.FindByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestCheckPaymentReconcilesCompletion(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)
	f.gateway.status = &bakong.PaymentStatus{
		PaymentID:     "pay_1",
		Status:        "completed",
		TransactionID: "txn_1",
	}

	result, err := f.reconciler.CheckPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Payment.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, result.Order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusProcessing, result.Order.Status)
	assert.Len(t, f.published.all(), 1)
}

func TestCheckPaymentAfterWebhookPublishesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	payload, sig := signedPayload(`{"payment_id":"pay_1","status":"completed","transaction_id":"txn_1"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), payload, sig))

	f.gateway.status = &bakong.PaymentStatus{
		PaymentID:     "pay_1",
		Status:        "completed",
		TransactionID: "txn_1",
	}
	result, err := f.reconciler.CheckPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, result.Order.PaymentStatus)
	assert.Len(t, f.published.all(), 1)
}

func TestCheckPaymentGatewayFailureLeavesOrderUntouched(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)
	f.gateway.statusErr = bakong.ErrGatewayUnavailable

	_, err := f.reconciler.CheckPayment(context.Background(), "pay_1")
	require.ErrorIs(t, err, bakong.ErrGatewayUnavailable)
	assert.Equal(t, domain.PaymentStatusPending, f.order(t, "order-1").PaymentStatus)
}

func TestCheckPaymentPendingDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)
	f.gateway.status = &bakong.PaymentStatus{PaymentID: "pay_1", Status: "pending"}

	result, err := f.reconciler.CheckPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, result.Order.PaymentStatus)
	assert.Empty(t, f.published.all())
}

func TestRefundCompletedOrder(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	completed, sig := signedPayload(`{"payment_id":"pay_1","status":"completed"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), completed, sig))

	order, err := f.reconciler.Refund(context.Background(), "order-1", "customer request")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusRefunded, order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.Equal(t, "customer request", order.RefundReason)
	require.NotNil(t, order.RefundedAt)

	p, err := f.products.FindByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	published := f.published.all()
	require.Len(t, published, 2)
	assert.Equal(t, events.TypeOrderRefunded, published[1].Type)
}

func TestRefundRequiresCompletedPayment(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	_, err := f.reconciler.Refund(context.Background(), "order-1", "reason")
	assert.ErrorIs(t, err, ErrPaymentNotCompleted)
}

func TestInitiatePaymentStoresPaymentID(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)
	f.gateway.createResp = &bakong.PaymentResponse{
		PaymentID:  "pay_new",
		PaymentURL: "https://pay.example/pay_new",
	}

	resp, err := f.reconciler.InitiatePayment(context.Background(), InitiateRequest{
		OrderID:  "order-1",
		UserID:   "u1",
		Currency: bakong.CurrencyUSD,
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_new", resp.PaymentID)
	assert.Equal(t, "pay_new", f.order(t, "order-1").PaymentID)
}

func TestInitiatePaymentRejectsCompletedOrder(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	completed, sig := signedPayload(`{"payment_id":"pay_1","status":"completed"}`)
	require.NoError(t, f.reconciler.HandleWebhook(context.Background(), completed, sig))

	_, err := f.reconciler.InitiatePayment(context.Background(), InitiateRequest{
		OrderID:  "order-1",
		UserID:   "u1",
		Currency: bakong.CurrencyUSD,
	})
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestInitiatePaymentRejectsWrongOwner(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	_, err := f.reconciler.InitiatePayment(context.Background(), InitiateRequest{
		OrderID:  "order-1",
		UserID:   "intruder",
		Currency: bakong.CurrencyUSD,
	})
	assert.ErrorIs(t, err, ErrNotOrderOwner)
}

func TestInitiatePaymentRejectsInvalidCurrency(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)

	_, err := f.reconciler.InitiatePayment(context.Background(), InitiateRequest{
		OrderID:  "order-1",
		UserID:   "u1",
		Currency: "EUR",
	})
	var fieldErr *domain.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "currency", fieldErr.Field)
}

func TestInitiatePaymentGatewayError(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)
	f.gateway.createErr = errors.New("boom")

	_, err := f.reconciler.InitiatePayment(context.Background(), InitiateRequest{
		OrderID:  "order-1",
		UserID:   "u1",
		Currency: bakong.CurrencyUSD,
	})
	require.Error(t, err)
	assert.Equal(t, "pay_1", f.order(t, "order-1").PaymentID)
}
