package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ranntharath/ecomerce-backend/internal/domain"
)

// In-memory store implementations with mutex-guarded maps. They back the
// unit test suite and local development without a mongod.

type MemoryProductStore struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewMemoryProductStore() *MemoryProductStore {
	return &MemoryProductStore{products: make(map[string]*domain.Product)}
}

// Seed inserts or replaces a product.
func (m *MemoryProductStore) Seed(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.products[p.ID] = &cp
}

func (m *MemoryProductStore) FindByID(_ context.Context, id string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryProductStore) List(_ context.Context, limit, offset int64) ([]domain.Product, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, limit, offset)
}

func (m *MemoryProductStore) DecrementStock(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return ErrProductNotFound
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryProductStore) IncrementStock(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return ErrProductNotFound
	}
	p.Stock += qty
	p.UpdatedAt = time.Now()
	return nil
}

type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart // keyed by user id
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string]*domain.Cart)}
}

func (m *MemoryCartStore) FindByUser(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp, nil
}

func (m *MemoryCartStore) Upsert(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	cp := *cart
	cp.Items = append([]domain.CartItem(nil), cart.Items...)
	m.carts[cart.UserID] = &cp
	return nil
}

func (m *MemoryCartStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[userID]; !ok {
		return ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}

type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[string]*domain.Order)}
}

func (m *MemoryOrderStore) Insert(_ context.Context, order *domain.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.CreatedAt = now
	order.UpdatedAt = now
	cp := *order
	cp.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &cp
	return order.ID, nil
}

func (m *MemoryOrderStore) FindByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (m *MemoryOrderStore) FindByUser(_ context.Context, userID string, limit, offset int64) ([]domain.Order, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			all = append(all, *copyOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset)
}

func (m *MemoryOrderStore) FindByPaymentOrOrderID(_ context.Context, paymentID, orderID string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if paymentID != "" {
		for _, o := range m.orders {
			if o.PaymentID == paymentID {
				return copyOrder(o), nil
			}
		}
	}
	if orderID != "" {
		if o, ok := m.orders[orderID]; ok {
			return copyOrder(o), nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *MemoryOrderStore) Update(_ context.Context, id string, update domain.OrderStatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if update.Status != nil {
		o.Status = *update.Status
	}
	if update.PaymentStatus != nil {
		o.PaymentStatus = *update.PaymentStatus
	}
	if update.PaymentID != nil {
		o.PaymentID = *update.PaymentID
	}
	if update.TransactionID != nil {
		o.TransactionID = *update.TransactionID
	}
	if update.RefundReason != nil {
		o.RefundReason = *update.RefundReason
	}
	if update.RefundedAt != nil {
		t := *update.RefundedAt
		o.RefundedAt = &t
	}
	o.UpdatedAt = time.Now()
	return nil
}

type MemorySettlementEventStore struct {
	mu     sync.Mutex
	events map[string]struct{}
}

func NewMemorySettlementEventStore() *MemorySettlementEventStore {
	return &MemorySettlementEventStore{events: make(map[string]struct{})}
}

func (m *MemorySettlementEventStore) Record(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[key]; ok {
		return false, nil
	}
	m.events[key] = struct{}{}
	return true, nil
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.RefundedAt != nil {
		t := *o.RefundedAt
		cp.RefundedAt = &t
	}
	return &cp
}

func page[T any](all []T, limit, offset int64) ([]T, int64, error) {
	total := int64(len(all))
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}
