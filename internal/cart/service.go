// Package cart implements the mutable per-user staging area for prospective
// purchases. Item prices are snapshotted at add time; checkout re-reads
// live products before converting the cart to an order.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/ranntharath/ecomerce-backend/internal/cache"
	"github.com/ranntharath/ecomerce-backend/internal/domain"
	"github.com/ranntharath/ecomerce-backend/internal/repository"
)

var (
	ErrItemAlreadyInCart = errors.New("product already in cart")
	ErrItemNotFound      = errors.New("item not found in cart")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

type Service struct {
	carts    repository.CartStore
	products repository.ProductStore
	cache    cache.CartCache
	sfg      singleflight.Group // prevents cache stampede
	log      *logrus.Logger
}

func NewService(carts repository.CartStore, products repository.ProductStore, c cache.CartCache, log *logrus.Logger) *Service {
	return &Service{
		carts:    carts,
		products: products,
		cache:    c,
		log:      log,
	}
}

// Get returns the user's cart, creating an empty one lazily when none
// exists yet.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WithError(err).Warn("cart cache get failed")
		}

		stored, errGet := s.carts.FindByUser(ctx, userID)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			now := time.Now()
			return &domain.Cart{
				UserID:    userID,
				Items:     nil,
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), userID, stored); errSet != nil {
				s.log.WithError(errSet).Warn("cart cache set failed")
			}
		}()

		return stored, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// AddItem appends a product to the cart with its current price snapshotted.
// Adding a product already present is rejected; quantity changes go through
// UpdateQuantity.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.loadOrNew(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cart.Item(productID) != nil {
		return nil, ErrItemAlreadyInCart
	}

	cart.Items = append(cart.Items, domain.CartItem{
		ProductID: productID,
		Quantity:  quantity,
		Price:     product.Price,
		Images:    product.Images,
		AddedAt:   time.Now(),
	})

	if err := s.carts.Upsert(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	s.invalidate(userID)
	return cart, nil
}

// UpdateQuantity changes the quantity of an existing cart line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	item := cart.Item(productID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	item.Quantity = quantity

	if err := s.carts.Upsert(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	s.invalidate(userID)
	return cart, nil
}

// RemoveItem deletes a single line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := false
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID == productID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return nil, ErrItemNotFound
	}
	cart.Items = kept

	if err := s.carts.Upsert(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	s.invalidate(userID)
	return cart, nil
}

// Clear deletes the whole cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.carts.Delete(ctx, userID); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *Service) loadOrNew(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.FindByUser(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return &domain.Cart{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Service) invalidate(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.WithError(err).Warn("cart cache invalidate failed")
	}
}
