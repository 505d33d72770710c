package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus tracks fulfilment progress of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

// orderTransitions is the fulfilment progression. Cancellation is allowed
// until the order ships; a cancelled or delivered order never moves again.
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending: {
		OrderStatusProcessing: true,
		OrderStatusCancelled:  true,
	},
	OrderStatusProcessing: {
		OrderStatusShipped:   true,
		OrderStatusCancelled: true,
	},
	OrderStatusShipped: {
		OrderStatusDelivered: true,
	},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// CanTransitionTo reports whether fulfilment may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return orderTransitions[s][next]
}

// PaymentStatus tracks settlement state of the single payment attempt
// currently associated with an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) String() string {
	return string(s)
}

// Terminal reports whether no further gateway report may move the status,
// except the narrow refund transition out of completed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// paymentTransitions is the total transition table for reconciliation.
// A failed attempt may still complete later (the order can be retried with
// a new payment), completed may only move to refunded, refunded is final.
var paymentTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentStatusPending: {
		PaymentStatusCompleted: true,
		PaymentStatusFailed:    true,
		PaymentStatusRefunded:  true,
	},
	PaymentStatusFailed: {
		PaymentStatusCompleted: true,
		PaymentStatusRefunded:  true,
	},
	PaymentStatusCompleted: {
		PaymentStatusRefunded: true,
	},
	PaymentStatusRefunded: {},
}

// CanTransitionTo reports whether a reconciliation event may move the
// payment status from s to next. Same-status application is not a
// transition; callers treat it as an idempotent no-op.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return paymentTransitions[s][next]
}

// ShippingAddress is the delivery destination frozen onto an order.
type ShippingAddress struct {
	Name    string `bson:"name" json:"name"`
	Address string `bson:"address" json:"address"`
	City    string `bson:"city" json:"city"`
	Contact string `bson:"contact" json:"contact"`
	Email   string `bson:"email" json:"email"`
}

// Validate checks that every field is present.
func (a ShippingAddress) Validate() error {
	switch {
	case a.Name == "":
		return &FieldError{Field: "name"}
	case a.Address == "":
		return &FieldError{Field: "address"}
	case a.City == "":
		return &FieldError{Field: "city"}
	case a.Contact == "":
		return &FieldError{Field: "contact"}
	case a.Email == "":
		return &FieldError{Field: "email"}
	}
	return nil
}

// FieldError marks a missing or malformed input field.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return "missing required field: " + e.Field
}

// OrderItem is an immutable line of an order, copied from the cart at
// creation time. Later product price or image changes never touch it.
type OrderItem struct {
	ProductID string   `bson:"product_id" json:"productId"`
	Images    []string `bson:"images" json:"images"`
	Quantity  int      `bson:"quantity" json:"quantity"`
	Price     float64  `bson:"price" json:"price"`
}

// Order is the unit of truth once checkout completes. Items and TotalAmount
// are set exactly once at creation; only the status fields mutate afterward.
type Order struct {
	ID              string          `bson:"_id,omitempty" json:"id"`
	UserID          string          `bson:"user_id" json:"userId"`
	Items           []OrderItem     `bson:"items" json:"items"`
	TotalAmount     float64         `bson:"total_amount" json:"totalAmount"`
	Status          OrderStatus     `bson:"status" json:"status"`
	PaymentStatus   PaymentStatus   `bson:"payment_status" json:"paymentStatus"`
	PaymentID       string          `bson:"payment_id,omitempty" json:"paymentId,omitempty"`
	TransactionID   string          `bson:"transaction_id,omitempty" json:"transactionId,omitempty"`
	ShippingAddress ShippingAddress `bson:"shipping_address" json:"shippingAddress"`
	RefundReason    string          `bson:"refund_reason,omitempty" json:"refundReason,omitempty"`
	RefundedAt      *time.Time      `bson:"refunded_at,omitempty" json:"refundedAt,omitempty"`
	CreatedAt       time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `bson:"updated_at" json:"updatedAt"`
}

// OrderTotal computes the order total for the given items, rounded to two
// decimal places, half away from zero. Decimal arithmetic keeps the result
// deterministic regardless of item count or magnitude.
func OrderTotal(items []OrderItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total.Round(2).InexactFloat64()
}

// OrderStatusUpdate is the closed set of mutable order fields. Nil pointers
// leave the corresponding field untouched.
type OrderStatusUpdate struct {
	Status        *OrderStatus
	PaymentStatus *PaymentStatus
	PaymentID     *string
	TransactionID *string
	RefundReason  *string
	RefundedAt    *time.Time
}

// Empty reports whether the update would change nothing.
func (u OrderStatusUpdate) Empty() bool {
	return u.Status == nil && u.PaymentStatus == nil && u.PaymentID == nil &&
		u.TransactionID == nil && u.RefundReason == nil && u.RefundedAt == nil
}
