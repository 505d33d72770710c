package repository

import (
	"context"
	"errors"

	"github.com/ranntharath/ecomerce-backend/internal/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrCartNotFound      = errors.New("cart not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductStore exposes the product collection to the pipeline. Stock
// mutations are atomic: DecrementStock only succeeds when the current stock
// covers the quantity, so no negative stock is ever observable.
type ProductStore interface {
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, limit, offset int64) ([]domain.Product, int64, error)
	DecrementStock(ctx context.Context, id string, qty int) error
	IncrementStock(ctx context.Context, id string, qty int) error
}

// CartStore persists the single active cart per user.
type CartStore interface {
	FindByUser(ctx context.Context, userID string) (*domain.Cart, error)
	Upsert(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// OrderStore persists orders. Update applies only the fields set on the
// typed partial update; items and totals are immutable after Insert.
type OrderStore interface {
	Insert(ctx context.Context, order *domain.Order) (string, error)
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByUser(ctx context.Context, userID string, limit, offset int64) ([]domain.Order, int64, error)
	FindByPaymentOrOrderID(ctx context.Context, paymentID, orderID string) (*domain.Order, error)
	Update(ctx context.Context, id string, update domain.OrderStatusUpdate) error
}

// SettlementEventStore is the processed-event dedup ledger. Record inserts
// the key first-writer-wins and reports whether this call was the first.
type SettlementEventStore interface {
	Record(ctx context.Context, key string) (bool, error)
}
