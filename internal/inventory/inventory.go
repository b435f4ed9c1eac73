package inventory

import "context"

// Ledger is the stock collaborator the queue controller mutates. Reserve
// and Release move quantity between available stock and outstanding
// holds; Commit turns a sold quantity into a permanent deduction. The
// controller guarantees at most one terminal call per reservation, so
// implementations do not need to be idempotent.
type Ledger interface {
	// AvailableStock reports stock not currently held by any
	// reservation. Returns domain.ErrProductNotFound for unknown ids.
	AvailableStock(ctx context.Context, productID string) (int, error)
	Reserve(ctx context.Context, productID string, qty int) error
	Release(ctx context.Context, productID string, qty int) error
	Commit(ctx context.Context, productID string, qty int) error
	// SetAvailability flips the product's direct-purchase flag; used
	// when a queue fills up or drains.
	SetAvailability(ctx context.Context, productID string, available bool) error
}
