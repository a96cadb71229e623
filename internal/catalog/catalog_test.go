package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/deal-engine/internal/catalog"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/repository"
	"github.com/straye-as/deal-engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeWarehouse serves products in slice order, which is id order for the test
type fakeWarehouse struct {
	products []domain.Product
	calls    int
	failAt   int
}

func (w *fakeWarehouse) ListProducts(_ context.Context, after uuid.UUID, limit int) ([]domain.Product, error) {
	w.calls++
	if w.failAt > 0 && w.calls == w.failAt {
		return nil, errors.New("connection reset")
	}
	start := 0
	if after != uuid.Nil {
		for i, p := range w.products {
			if p.ID == after {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(w.products) {
		end = len(w.products)
	}
	return append([]domain.Product(nil), w.products[start:end]...), nil
}

func warehouseProducts(seller uuid.UUID, n int) []domain.Product {
	products := make([]domain.Product, n)
	for i := range products {
		products[i] = domain.Product{
			BaseModel: domain.BaseModel{ID: uuid.New()},
			CompanyID: seller,
			Article:   "ART-" + uuid.NewString()[:8],
			Name:      "Bolt",
			ItemType:  domain.DealTypeGoods,
			Unit:      "pcs",
			Price:     decimal.RequireFromString("12.50"),
		}
	}
	return products
}

func TestSelect(t *testing.T) {
	db := testutil.SetupTestDB(t)
	local := repository.NewProductRepository(db)

	src, err := catalog.Select("", local, nil)
	require.NoError(t, err)
	assert.Same(t, local, src)

	src, err = catalog.Select(catalog.SourceDatabase, local, nil)
	require.NoError(t, err)
	assert.Same(t, local, src)

	_, err = catalog.Select(catalog.SourceWarehouse, local, nil)
	assert.Error(t, err)

	_, err = catalog.Select("spreadsheet", local, nil)
	assert.Error(t, err)
}

func TestSyncer_SyncProducts(t *testing.T) {
	ctx := context.Background()
	seller := uuid.New()

	t.Run("pages through the warehouse", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewProductRepository(db)
		wh := &fakeWarehouse{products: warehouseProducts(seller, 7)}

		synced, failed, err := catalog.NewSyncer(wh, repo, zap.NewNop()).WithBatchSize(3).SyncProducts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, synced)
		assert.Zero(t, failed)
		assert.Equal(t, 3, wh.calls)

		got, err := repo.FindByArticle(ctx, seller, wh.products[4].Article)
		require.NoError(t, err)
		assert.True(t, got.Price.Equal(decimal.RequireFromString("12.50")))
	})

	t.Run("second run updates existing products", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewProductRepository(db)
		wh := &fakeWarehouse{products: warehouseProducts(seller, 2)}
		syncer := catalog.NewSyncer(wh, repo, zap.NewNop())

		_, _, err := syncer.SyncProducts(ctx)
		require.NoError(t, err)

		wh.products[0].Price = decimal.RequireFromString("15.00")
		wh.products[0].Name = "Bolt M12"
		synced, _, err := syncer.SyncProducts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, synced)

		got, err := repo.GetProduct(ctx, wh.products[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "Bolt M12", got.Name)
		assert.True(t, got.Price.Equal(decimal.RequireFromString("15.00")))

		var count int64
		require.NoError(t, db.Model(&domain.Product{}).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})

	t.Run("unknown item types are skipped", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewProductRepository(db)
		wh := &fakeWarehouse{products: warehouseProducts(seller, 3)}
		wh.products[1].ItemType = "rental"

		synced, failed, err := catalog.NewSyncer(wh, repo, zap.NewNop()).SyncProducts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, synced)
		assert.Equal(t, 1, failed)

		_, err = repo.GetProduct(ctx, wh.products[1].ID)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("warehouse error stops the run", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewProductRepository(db)
		wh := &fakeWarehouse{products: warehouseProducts(seller, 4), failAt: 2}

		synced, _, err := catalog.NewSyncer(wh, repo, zap.NewNop()).WithBatchSize(2).SyncProducts(ctx)
		assert.Error(t, err)
		assert.Equal(t, 2, synced)
	})
}
