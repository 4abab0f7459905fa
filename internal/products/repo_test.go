package product

import (
	"context"
	"fmt"
	"testing"

	"github.com/abarbet/shoply-backend/pkg/db/models"
	"github.com/abarbet/shoply-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupProductsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:products_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  category TEXT,
  price NUMERIC NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func mustCreateProduct(t *testing.T, db *gorm.DB, name string, category *string, price decimal.Decimal, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:       uuid.New(),
		Name:     name,
		Category: category,
		Price:    price,
		Stock:    stock,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func strPtr(s string) *string { return &s }

func TestRepositoryCRUD(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created := mustCreateProduct(t, db, "Widget", strPtr("tools"), decimal.NewFromInt(10), 5)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", found.Name)
	assert.True(t, found.Price.Equal(decimal.NewFromInt(10)))

	require.NoError(t, repo.Update(ctx, created.ID, map[string]any{"stock": 9}))
	found, err = repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, found.Stock)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, created.ID), gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.Update(ctx, created.ID, map[string]any{"stock": 1}), gorm.ErrRecordNotFound)
}

func TestRepositoryListFilters(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	mustCreateProduct(t, db, "Hammer", strPtr("tools"), decimal.NewFromInt(15), 3)
	mustCreateProduct(t, db, "Screwdriver", strPtr("tools"), decimal.NewFromInt(8), 10)
	mustCreateProduct(t, db, "Notebook", strPtr("office"), decimal.NewFromInt(4), 50)

	params := pagination.Params{Page: 1, PageSize: 10}

	all, err := repo.List(ctx, ListFilters{}, params)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.TotalCount)

	category := "tools"
	tools, err := repo.List(ctx, ListFilters{Category: &category}, params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), tools.TotalCount)

	priceMin := decimal.NewFromInt(5)
	priceMax := decimal.NewFromInt(10)
	mid, err := repo.List(ctx, ListFilters{PriceMin: &priceMin, PriceMax: &priceMax}, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), mid.TotalCount)
	assert.Equal(t, "Screwdriver", mid.Items[0].Name)

	byName, err := repo.List(ctx, ListFilters{Query: "ham"}, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), byName.TotalCount)
	assert.Equal(t, "Hammer", byName.Items[0].Name)
}

func TestRepositoryListInStockAndSort(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	mustCreateProduct(t, db, "Hammer", strPtr("tools"), decimal.NewFromInt(15), 3)
	mustCreateProduct(t, db, "Screwdriver", strPtr("tools"), decimal.NewFromInt(8), 0)
	mustCreateProduct(t, db, "Notebook", strPtr("office"), decimal.NewFromInt(4), 50)

	params := pagination.Params{Page: 1, PageSize: 10}

	inStock, err := repo.List(ctx, ListFilters{InStock: true}, params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), inStock.TotalCount)
	for _, item := range inStock.Items {
		assert.Greater(t, item.Stock, 0)
	}

	byPrice, err := repo.List(ctx, ListFilters{SortBy: "price"}, params)
	require.NoError(t, err)
	require.Len(t, byPrice.Items, 3)
	assert.Equal(t, "Notebook", byPrice.Items[0].Name)
	assert.Equal(t, "Hammer", byPrice.Items[2].Name)

	byStockDesc, err := repo.List(ctx, ListFilters{SortBy: "stock", Descending: true}, params)
	require.NoError(t, err)
	require.Len(t, byStockDesc.Items, 3)
	assert.Equal(t, "Notebook", byStockDesc.Items[0].Name)
	assert.Equal(t, "Screwdriver", byStockDesc.Items[2].Name)
}

func TestRepositoryListPagination(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustCreateProduct(t, db, fmt.Sprintf("Item %d", i), nil, decimal.NewFromInt(int64(i+1)), 1)
	}

	first, err := repo.List(ctx, ListFilters{}, pagination.Params{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), first.TotalCount)
	assert.Len(t, first.Items, 2)

	last, err := repo.List(ctx, ListFilters{}, pagination.Params{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)
}
