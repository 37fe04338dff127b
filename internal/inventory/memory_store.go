package inventory

import (
	"errors"
	"sync"

	"github.com/fjod/rocketshoes-cart/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidStock    = errors.New("stock must not be negative")
)

// MemoryStore is a stand-in for the store backend: a product catalog and the
// remaining stock of each product.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
	stocks   map[int64]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]domain.Product),
		stocks:   make(map[int64]int),
	}
}

// SetProduct adds or replaces a catalog entry together with its stock level.
func (s *MemoryStore) SetProduct(p domain.Product, stock int) error {
	if stock < 0 {
		return ErrInvalidStock
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = p
	s.stocks[p.ID] = stock
	return nil
}

func (s *MemoryStore) SetStock(productID int64, amount int) error {
	if amount < 0 {
		return ErrInvalidStock
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return ErrProductNotFound
	}
	s.stocks[productID] = amount
	return nil
}

func (s *MemoryStore) GetStock(productID int64) (domain.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	amount, ok := s.stocks[productID]
	if !ok {
		return domain.StockRecord{}, ErrProductNotFound
	}
	return domain.StockRecord{ID: productID, Amount: amount}, nil
}

func (s *MemoryStore) GetProduct(productID int64) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return p, nil
}
