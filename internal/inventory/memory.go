package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/fullstack-daddy/shopverse/internal/domain"
)

// Store is the persistence behind the in-memory ledger. Reserve/Release
// never reach it; only permanent effects (sales, availability flips) are
// written through, so a restart rebuilds truthful stock from ListProducts.
type Store interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	UpdateStock(ctx context.Context, productID string, delta int) error
	SetAvailability(ctx context.Context, productID string, available bool) error
}

type item struct {
	available   int
	reserved    int
	sold        int
	purchasable bool
}

// Memory is the in-process stock authority. All reads and temporary
// holds are served from memory; committed sales and availability changes
// are written through to the store when one is configured.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*item
	store Store
}

// NewMemory returns an empty ledger. Pass a nil store for tests.
func NewMemory(store Store) *Memory {
	return &Memory{
		items: make(map[string]*item),
		store: store,
	}
}

// Load replaces the ledger contents with the store's current products.
// Called once at startup; outstanding reservations do not survive it.
func (m *Memory) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	products, err := m.store.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*item, len(products))
	for _, p := range products {
		m.items[p.ID] = &item{available: p.Stock, purchasable: p.Available}
	}
	return nil
}

// Add registers a product directly in the ledger. Used for seeding and
// in tests.
func (m *Memory) Add(productID string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[productID] = &item{available: stock, purchasable: true}
}

func (m *Memory) AvailableStock(_ context.Context, productID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	return it.available, nil
}

func (m *Memory) Reserve(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if it.available < qty {
		return domain.ErrInsufficientStock
	}
	it.available -= qty
	it.reserved += qty
	return nil
}

func (m *Memory) Release(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if it.reserved < qty {
		return fmt.Errorf("release %d exceeds reserved %d for product %s", qty, it.reserved, productID)
	}
	it.reserved -= qty
	it.available += qty
	return nil
}

func (m *Memory) Commit(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if it.available < qty {
		return domain.ErrInsufficientStock
	}
	it.available -= qty
	it.sold += qty
	if m.store != nil {
		if err := m.store.UpdateStock(ctx, productID, -qty); err != nil {
			// Roll back so a retried commit starts from consistent stock.
			it.available += qty
			it.sold -= qty
			return fmt.Errorf("persist sale: %w", err)
		}
	}
	return nil
}

func (m *Memory) SetAvailability(ctx context.Context, productID string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if it.purchasable == available {
		return nil
	}
	it.purchasable = available
	if m.store != nil {
		if err := m.store.SetAvailability(ctx, productID, available); err != nil {
			return fmt.Errorf("persist availability: %w", err)
		}
	}
	return nil
}

// Snapshot reports the ledger's view of one product.
type Snapshot struct {
	Available   int
	Reserved    int
	Sold        int
	Purchasable bool
}

func (m *Memory) Snapshot(productID string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[productID]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		Available:   it.available,
		Reserved:    it.reserved,
		Sold:        it.sold,
		Purchasable: it.purchasable,
	}, true
}
