package cache

import (
	"context"
	"errors"

	"github.com/ranntharath/ecomerce-backend/internal/domain"
)

// CartCache is a read-through cache for per-user carts. Consumers define
// this interface, not the Redis implementation.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
