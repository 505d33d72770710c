package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranntharath/ecomerce-backend/internal/cache"
	"github.com/ranntharath/ecomerce-backend/internal/domain"
	"github.com/ranntharath/ecomerce-backend/internal/repository"
)

type memCache struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

func newMemCache() *memCache {
	return &memCache{carts: make(map[string]*domain.Cart)}
}

func (m *memCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *memCache) Set(_ context.Context, userID string, c *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = c
	return nil
}

func (m *memCache) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestService() (*Service, *repository.MemoryProductStore, *repository.MemoryCartStore, *memCache) {
	products := repository.NewMemoryProductStore()
	carts := repository.NewMemoryCartStore()
	c := newMemCache()
	return NewService(carts, products, c, testLogger()), products, carts, c
}

func TestGetReturnsEmptyCartForNewUser(t *testing.T) {
	svc, _, _, _ := newTestService()

	cart, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", cart.UserID)
	assert.Empty(t, cart.Items)
}

func TestAddItemSnapshotsPrice(t *testing.T) {
	svc, products, carts, _ := newTestService()
	products.Seed(domain.Product{ID: "p1", Price: 9.99, Stock: 10, Images: []string{"p1.jpg"}})

	cart, err := svc.AddItem(context.Background(), "u1", "p1", 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 9.99, cart.Items[0].Price)
	assert.Equal(t, []string{"p1.jpg"}, cart.Items[0].Images)
	assert.False(t, cart.Items[0].AddedAt.IsZero())

	// cart was persisted
	stored, err := carts.FindByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, stored.Items, 1)
}

func TestAddItemRejectsDuplicateProduct(t *testing.T) {
	svc, products, _, _ := newTestService()
	products.Seed(domain.Product{ID: "p1", Price: 5, Stock: 10})

	_, err := svc.AddItem(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), "u1", "p1", 1)
	assert.ErrorIs(t, err, ErrItemAlreadyInCart)
}

func TestAddItemUnknownProduct(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.AddItem(context.Background(), "u1", "missing", 1)
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.AddItem(context.Background(), "u1", "p1", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateQuantity(t *testing.T) {
	svc, products, _, _ := newTestService()
	products.Seed(domain.Product{ID: "p1", Price: 5, Stock: 10})

	_, err := svc.AddItem(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	cart, err := svc.UpdateQuantity(context.Background(), "u1", "p1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)
}

func TestUpdateQuantityMissingItem(t *testing.T) {
	svc, products, _, _ := newTestService()
	products.Seed(domain.Product{ID: "p1", Price: 5, Stock: 10})

	_, err := svc.AddItem(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	_, err = svc.UpdateQuantity(context.Background(), "u1", "other", 2)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveItem(t *testing.T) {
	svc, products, _, _ := newTestService()
	products.Seed(domain.Product{ID: "p1", Price: 5, Stock: 10})
	products.Seed(domain.Product{ID: "p2", Price: 7, Stock: 10})

	_, err := svc.AddItem(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), "u1", "p2", 1)
	require.NoError(t, err)

	cart, err := svc.RemoveItem(context.Background(), "u1", "p1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "p2", cart.Items[0].ProductID)
}

func TestClearInvalidatesCache(t *testing.T) {
	svc, products, carts, c := newTestService()
	products.Seed(domain.Product{ID: "p1", Price: 5, Stock: 10})

	_, err := svc.AddItem(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), "u1", &domain.Cart{UserID: "u1"}))

	require.NoError(t, svc.Clear(context.Background(), "u1"))

	_, err = carts.FindByUser(context.Background(), "u1")
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
	_, err = c.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
