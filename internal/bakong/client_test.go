package bakong

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		MerchantID: "merchant-1",
		APIKey:     "api-key",
		SecretKey:  "secret-key",
		Timeout:    2 * time.Second,
	}
}

func TestNewClientRejectsMissingCredentials(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://example.com"}, testLogger())
	assert.Error(t, err)
}

func TestCreatePaymentSignsRequest(t *testing.T) {
	var gotFields map[string]string
	var gotSignature, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payments/create", r.URL.Path)
		gotSignature = r.Header.Get("X-Signature")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotFields))

		json.NewEncoder(w).Encode(map[string]string{
			"payment_id":  "pay_123",
			"payment_url": "https://pay.example/pay_123",
			"qr_code":     "qr-data",
		})
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), testLogger())
	require.NoError(t, err)
	client.now = func() time.Time { return time.Unix(1700000000, 0) }

	resp, err := client.CreatePayment(context.Background(), PaymentRequest{
		OrderID:  "order-1",
		Amount:   12.5,
		Currency: CurrencyUSD,
	})
	require.NoError(t, err)

	assert.Equal(t, "pay_123", resp.PaymentID)
	assert.Equal(t, "https://pay.example/pay_123", resp.PaymentURL)
	assert.Equal(t, "qr-data", resp.QRCode)

	assert.Equal(t, "Bearer api-key", gotAuth)
	assert.Equal(t, "12.50", gotFields["amount"])
	assert.Equal(t, "merchant-1", gotFields["merchant_id"])
	assert.Equal(t, "1700000000", gotFields["timestamp"])
	assert.Equal(t, Sign(gotFields, "secret-key"), gotSignature)
}

func TestCreatePaymentGatewayDecline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "amount_too_small",
			"message": "minimum amount is 0.50",
		})
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), testLogger())
	require.NoError(t, err)

	_, err = client.CreatePayment(context.Background(), PaymentRequest{OrderID: "o1", Amount: 0.01})
	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, "amount_too_small", gatewayErr.Reason)
}

func TestCreatePaymentTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	client, err := NewClient(testConfig(srv.URL), testLogger())
	require.NoError(t, err)

	_, err = client.CreatePayment(context.Background(), PaymentRequest{OrderID: "o1", Amount: 1})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestGetPaymentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payments/status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"payment_id":     "pay_123",
			"status":         "completed",
			"amount":         "12.50",
			"currency":       "USD",
			"transaction_id": "txn_9",
			"paid_at":        "2026-08-30T10:15:00Z",
		})
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), testLogger())
	require.NoError(t, err)

	status, err := client.GetPaymentStatus(context.Background(), "pay_123")
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, 12.50, status.Amount)
	assert.Equal(t, "txn_9", status.TransactionID)
	require.NotNil(t, status.PaidAt)
	assert.Equal(t, 2026, status.PaidAt.Year())
}

func TestGetPaymentStatusNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), testLogger())
	require.NoError(t, err)

	_, err = client.GetPaymentStatus(context.Background(), "pay_123")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestGetPaymentStatusMalformedAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"payment_id": "pay_123",
			"status":     "completed",
			"amount":     "not-a-number",
		})
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), testLogger())
	require.NoError(t, err)

	_, err = client.GetPaymentStatus(context.Background(), "pay_123")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}
