// Package bakong is the outbound adapter for the Bakong payment gateway:
// signed payment-creation requests, polled status queries, and inbound
// webhook signature verification.
package bakong

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// ErrGatewayUnavailable marks transport, timeout, parse, or open-breaker
// failures. Callers treat it as "status unknown" and never mutate order
// state on it.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// GatewayError is a gateway-level decline (non-2xx with a JSON body).
type GatewayError struct {
	Reason  string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway error: %s: %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("gateway error: %s", e.Reason)
}

// Config carries the gateway credentials and endpoint. It is passed
// explicitly at construction; nothing reads the environment.
type Config struct {
	BaseURL    string
	MerchantID string
	APIKey     string
	SecretKey  string
	Timeout    time.Duration
}

func (c Config) validate() error {
	if c.BaseURL == "" || c.MerchantID == "" || c.APIKey == "" || c.SecretKey == "" {
		return errors.New("bakong credentials not configured")
	}
	return nil
}

// PaymentRequest describes an outbound payment creation.
type PaymentRequest struct {
	OrderID       string
	Amount        float64
	Currency      Currency
	Description   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ReturnURL     string
	CallbackURL   string
}

// PaymentResponse is a successful payment creation.
type PaymentResponse struct {
	PaymentID  string
	PaymentURL string
	QRCode     string
}

// PaymentStatus is the gateway's view of a payment, from the poll endpoint.
type PaymentStatus struct {
	PaymentID     string
	Status        string
	Amount        float64
	Currency      string
	TransactionID string
	PaidAt        *time.Time
	Error         string
}

type apiResult struct {
	status int
	body   []byte
}

type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[apiResult]
	log     *logrus.Logger
	now     func() time.Time
}

func NewClient(cfg Config, log *logrus.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[apiResult](gobreaker.Settings{
			Name: "bakong",
		}),
		log: log,
		now: time.Now,
	}, nil
}

// CreatePayment sends a signed payment-creation request. A gateway decline
// comes back as *GatewayError; transport failures as ErrGatewayUnavailable.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	fields := map[string]string{
		"merchant_id":    c.cfg.MerchantID,
		"order_id":       req.OrderID,
		"amount":         decimal.NewFromFloat(req.Amount).StringFixed(2),
		"currency":       string(req.Currency),
		"description":    req.Description,
		"customer_name":  req.CustomerName,
		"customer_email": req.CustomerEmail,
		"customer_phone": req.CustomerPhone,
		"return_url":     req.ReturnURL,
		"callback_url":   req.CallbackURL,
		"timestamp":      strconv.FormatInt(c.now().Unix(), 10),
	}

	status, body, err := c.post(ctx, "/v1/payments/create", fields)
	if err != nil {
		return nil, err
	}

	var result struct {
		PaymentID  string `json:"payment_id"`
		PaymentURL string `json:"payment_url"`
		QRCode     string `json:"qr_code"`
		Error      string `json:"error"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed create response: %v", ErrGatewayUnavailable, err)
	}

	if status < 200 || status >= 300 {
		reason := result.Error
		if reason == "" {
			reason = "payment creation failed"
		}
		return nil, &GatewayError{Reason: reason, Message: result.Message}
	}

	return &PaymentResponse{
		PaymentID:  result.PaymentID,
		PaymentURL: result.PaymentURL,
		QRCode:     result.QRCode,
	}, nil
}

// GetPaymentStatus polls the gateway for the current state of a payment.
// Any transport, parse, or non-2xx failure returns an error; the caller
// must treat that as status-unknown.
func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	fields := map[string]string{
		"merchant_id": c.cfg.MerchantID,
		"payment_id":  paymentID,
		"timestamp":   strconv.FormatInt(c.now().Unix(), 10),
	}

	status, body, err := c.post(ctx, "/v1/payments/status", fields)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: status check returned %d", ErrGatewayUnavailable, status)
	}

	var result struct {
		PaymentID     string `json:"payment_id"`
		Status        string `json:"status"`
		Amount        string `json:"amount"`
		Currency      string `json:"currency"`
		TransactionID string `json:"transaction_id"`
		PaidAt        string `json:"paid_at"`
		Error         string `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed status response: %v", ErrGatewayUnavailable, err)
	}

	out := &PaymentStatus{
		PaymentID:     result.PaymentID,
		Status:        result.Status,
		Currency:      result.Currency,
		TransactionID: result.TransactionID,
		Error:         result.Error,
	}
	if result.Amount != "" {
		amount, err := decimal.NewFromString(result.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed amount %q", ErrGatewayUnavailable, result.Amount)
		}
		out.Amount = amount.InexactFloat64()
	}
	if result.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, result.PaidAt); err == nil {
			out.PaidAt = &paidAt
		}
	}
	return out, nil
}

// VerifyWebhookSignature checks an inbound webhook signature against the
// shared secret.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	return VerifyWebhookSignature(payload, signature, c.cfg.SecretKey)
}

// post sends a signed JSON request through the circuit breaker. Only
// transport-level failures count against the breaker; gateway declines
// (non-2xx) pass through as results.
func (c *Client) post(ctx context.Context, path string, fields map[string]string) (int, []byte, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	signature := Sign(fields, c.cfg.SecretKey)

	result, err := c.breaker.Execute(func() (apiResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return apiResult{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("X-Signature", signature)

		resp, err := c.http.Do(req)
		if err != nil {
			return apiResult{}, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return apiResult{}, err
		}
		return apiResult{status: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		c.log.WithField("path", path).WithError(err).Error("gateway request failed")
		return 0, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return result.status, result.body, nil
}
