// Package checkout converts a mutable cart into an immutable order while
// reserving stock. The conversion is effectively atomic from the caller's
// perspective: any failure leaves stock, cart, and orders untouched.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ranntharath/ecomerce-backend/internal/cache"
	"github.com/ranntharath/ecomerce-backend/internal/domain"
	"github.com/ranntharath/ecomerce-backend/internal/inventory"
	"github.com/ranntharath/ecomerce-backend/internal/lock"
	"github.com/ranntharath/ecomerce-backend/internal/repository"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

type Service struct {
	carts    repository.CartStore
	products repository.ProductStore
	orders   repository.OrderStore
	ledger   *inventory.Ledger
	cache    cache.CartCache
	locks    *lock.Keyed
	log      *logrus.Logger
}

func NewService(
	carts repository.CartStore,
	products repository.ProductStore,
	orders repository.OrderStore,
	ledger *inventory.Ledger,
	c cache.CartCache,
	locks *lock.Keyed,
	log *logrus.Logger,
) *Service {
	return &Service{
		carts:    carts,
		products: products,
		orders:   orders,
		ledger:   ledger,
		cache:    c,
		locks:    locks,
		log:      log,
	}
}

// Checkout converts the user's cart into a pending order.
//
// The whole conversion runs under a per-user lock so two concurrent
// checkouts by the same user cannot both consume the cart. Validation of
// every line happens before any mutation; the reservation pass is
// all-or-nothing (the ledger rolls back partial reservations); the order
// insert is compensated by restoring stock on failure. The cart is deleted
// last, after the order exists.
func (s *Service) Checkout(ctx context.Context, userID string, address domain.ShippingAddress) (*domain.Order, error) {
	if err := address.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock("checkout:" + userID)
	defer unlock()

	cart, err := s.carts.FindByUser(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	items, lines, err := s.validateItems(ctx, cart)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Reserve(ctx, lines); err != nil {
		return nil, err
	}

	order := &domain.Order{
		UserID:          userID,
		Items:           items,
		TotalAmount:     domain.OrderTotal(items),
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		ShippingAddress: address,
	}

	if _, err := s.orders.Insert(ctx, order); err != nil {
		s.ledger.Restore(ctx, lines)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// The order exists and stock is held; a failed cart delete is logged
	// rather than unwound.
	if err := s.carts.Delete(ctx, userID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.log.WithFields(logrus.Fields{
			"user_id":  userID,
			"order_id": order.ID,
		}).WithError(err).Error("failed to delete cart after checkout")
	}
	s.invalidateCache(userID)

	s.log.WithFields(logrus.Fields{
		"user_id":      userID,
		"order_id":     order.ID,
		"total_amount": order.TotalAmount,
		"items":        len(order.Items),
	}).Info("order created")

	return order, nil
}

// validateItems re-reads every product and freezes current prices and
// images onto the prospective order items. Runs before any mutation so a
// mid-validation failure leaves all state untouched.
func (s *Service) validateItems(ctx context.Context, cart *domain.Cart) ([]domain.OrderItem, []inventory.Line, error) {
	items := make([]domain.OrderItem, 0, len(cart.Items))
	lines := make([]inventory.Line, 0, len(cart.Items))

	for _, item := range cart.Items {
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, nil, fmt.Errorf("product %s: %w", item.ProductID, err)
		}
		if product.Stock < item.Quantity {
			return nil, nil, fmt.Errorf("product %s: %w", item.ProductID, repository.ErrInsufficientStock)
		}

		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Images:    product.Images,
			Quantity:  item.Quantity,
			Price:     product.Price,
		})
		lines = append(lines, inventory.Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return items, lines, nil
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.WithError(err).Warn("cart cache invalidate failed")
	}
}
