package postgres_test

import (
	"context"
	"testing"

	"github.com/fullstack-daddy/shopverse/internal/domain"
	"github.com/fullstack-daddy/shopverse/internal/storage/postgres"
	"github.com/fullstack-daddy/shopverse/internal/testutil"
)

func TestProductRepository_CRUD(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewProductRepository(pool)

	if err := repo.CreateProduct(ctx, domain.Product{ID: "sku-1", Name: "Widget", Stock: 5, Available: true}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if err := repo.CreateProduct(ctx, domain.Product{ID: "sku-1", Name: "Widget", Stock: 5, Available: true}); err != postgres.ErrProductExists {
		t.Fatalf("expected ErrProductExists, got %v", err)
	}

	p, err := repo.GetProduct(ctx, "sku-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if p.Stock != 5 || !p.Available {
		t.Fatalf("unexpected product %+v", p)
	}

	if _, err := repo.GetProduct(ctx, "sku-missing"); err != domain.ErrProductNotFound {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_UpdateStock(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewProductRepository(pool)
	testutil.InsertProduct(t, ctx, pool, domain.Product{ID: "sku-1", Name: "Widget", Stock: 5, Available: true})

	if err := repo.UpdateStock(ctx, "sku-1", -2); err != nil {
		t.Fatalf("update stock: %v", err)
	}
	p, err := repo.GetProduct(ctx, "sku-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if p.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", p.Stock)
	}

	// Draining below zero matches no row and reports not found.
	if err := repo.UpdateStock(ctx, "sku-1", -10); err != domain.ErrProductNotFound {
		t.Fatalf("expected ErrProductNotFound on underflow, got %v", err)
	}
	if err := repo.UpdateStock(ctx, "sku-missing", -1); err != domain.ErrProductNotFound {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_SetAvailability(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewProductRepository(pool)
	testutil.InsertProduct(t, ctx, pool, domain.Product{ID: "sku-1", Name: "Widget", Stock: 5, Available: true})

	if err := repo.SetAvailability(ctx, "sku-1", false); err != nil {
		t.Fatalf("set availability: %v", err)
	}
	p, err := repo.GetProduct(ctx, "sku-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if p.Available {
		t.Fatalf("expected product unavailable")
	}
}

func TestProductRepository_ListProducts(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewProductRepository(pool)
	testutil.InsertProduct(t, ctx, pool, domain.Product{ID: "sku-1", Name: "Widget", Stock: 5, Available: true})
	testutil.InsertProduct(t, ctx, pool, domain.Product{ID: "sku-2", Name: "Gadget", Stock: 0, Available: false})

	products, err := repo.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].ID != "sku-1" || products[1].ID != "sku-2" {
		t.Fatalf("expected id order, got %+v", products)
	}
}

func TestProductRepository_WithTx(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewProductRepository(pool)
	testutil.InsertProduct(t, ctx, pool, domain.Product{ID: "sku-1", Name: "Widget", Stock: 5, Available: true})

	// A failing transaction rolls back all of its writes.
	err := repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := repo.UpdateStock(txCtx, "sku-1", -2); err != nil {
			return err
		}
		return context.Canceled
	})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	p, err := repo.GetProduct(ctx, "sku-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if p.Stock != 5 {
		t.Fatalf("expected rollback to keep stock 5, got %d", p.Stock)
	}
}
