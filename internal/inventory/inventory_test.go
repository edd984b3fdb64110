package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/modacart/modacart-backend/pkg/db/models"
	pkgerrors "github.com/modacart/modacart-backend/pkg/errors"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL,
  product_type TEXT NOT NULL,
  gender TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`
	variants := `
CREATE TABLE IF NOT EXISTS product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  variant_value TEXT NOT NULL,
  price NUMERIC NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(variants).Error)
	return db
}

func newVariant(t *testing.T, db *gorm.DB, stock int, active bool) *models.ProductVariant {
	t.Helper()

	variant := &models.ProductVariant{
		ID:           uuid.New(),
		ProductID:    uuid.New(),
		VariantValue: "M",
		Price:        decimal.NewFromFloat(49.90),
		Stock:        stock,
		IsActive:     active,
	}
	require.NoError(t, db.Create(variant).Error)
	return variant
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, code, typed.Code())
}

func variantStock(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()

	var variant models.ProductVariant
	require.NoError(t, db.First(&variant, "id = ?", id).Error)
	return variant.Stock
}

func TestReserveDecrementsStock(t *testing.T) {
	db := setupInventoryTestDB(t)
	variant := newVariant(t, db, 10, true)

	require.NoError(t, Reserve(context.Background(), db, variant.ID, 3))
	assert.Equal(t, 7, variantStock(t, db, variant.ID))
}

func TestReserveRejectsInsufficientStock(t *testing.T) {
	db := setupInventoryTestDB(t)
	variant := newVariant(t, db, 2, true)

	err := Reserve(context.Background(), db, variant.ID, 3)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, 2, variantStock(t, db, variant.ID))
}

func TestReserveConcurrentNeverOversells(t *testing.T) {
	db := setupInventoryTestDB(t)
	variant := newVariant(t, db, 5, true)

	const workers = 20

	var wg sync.WaitGroup
	var successes int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Contention on the shared sqlite handle can fail a worker
			// outright; those count the same as losing the stock race.
			if err := Reserve(context.Background(), db, variant.ID, 1); err == nil {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()

	won := int(atomic.LoadInt32(&successes))
	assert.LessOrEqual(t, won, 5, "no more units may be reserved than were in stock")

	stock := variantStock(t, db, variant.ID)
	assert.GreaterOrEqual(t, stock, 0)
	assert.Equal(t, 5-won, stock, "every successful reservation must account for exactly one unit")
}

func TestReserveRejectsInactiveVariant(t *testing.T) {
	db := setupInventoryTestDB(t)
	variant := newVariant(t, db, 10, false)

	err := Reserve(context.Background(), db, variant.ID, 1)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestReserveUnknownVariant(t *testing.T) {
	db := setupInventoryTestDB(t)

	err := Reserve(context.Background(), db, uuid.New(), 1)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	db := setupInventoryTestDB(t)
	variant := newVariant(t, db, 10, true)

	err := Reserve(context.Background(), db, variant.ID, 0)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestReleaseRestoresStock(t *testing.T) {
	db := setupInventoryTestDB(t)
	variant := newVariant(t, db, 5, true)

	require.NoError(t, Release(context.Background(), db, variant.ID, 4))
	assert.Equal(t, 9, variantStock(t, db, variant.ID))
}

func TestReserveOrderItemsAllOrNothing(t *testing.T) {
	db := setupInventoryTestDB(t)
	covered := newVariant(t, db, 10, true)
	short := newVariant(t, db, 1, true)

	items := []models.OrderItem{
		{ProductID: covered.ProductID, VariantValue: covered.VariantValue, Quantity: 2},
		{ProductID: short.ProductID, VariantValue: short.VariantValue, Quantity: 5},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return ReserveOrderItems(context.Background(), tx, items)
	})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	// rollback leaves both untouched
	assert.Equal(t, 10, variantStock(t, db, covered.ID))
	assert.Equal(t, 1, variantStock(t, db, short.ID))
}

func TestReserveOrderItemsDecrementsEveryLine(t *testing.T) {
	db := setupInventoryTestDB(t)
	first := newVariant(t, db, 10, true)
	second := newVariant(t, db, 4, true)

	items := []models.OrderItem{
		{ProductID: first.ProductID, VariantValue: first.VariantValue, Quantity: 3},
		{ProductID: second.ProductID, VariantValue: second.VariantValue, Quantity: 4},
	}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ReserveOrderItems(context.Background(), tx, items)
	}))
	assert.Equal(t, 7, variantStock(t, db, first.ID))
	assert.Equal(t, 0, variantStock(t, db, second.ID))
}

func TestReleaseOrderItemsSkipsRemovedVariants(t *testing.T) {
	db := setupInventoryTestDB(t)
	variant := newVariant(t, db, 3, true)

	items := []models.OrderItem{
		{ProductID: variant.ProductID, VariantValue: variant.VariantValue, Quantity: 2},
		{ProductID: uuid.New(), VariantValue: "XL", Quantity: 9},
	}

	require.NoError(t, ReleaseOrderItems(context.Background(), db, items))
	assert.Equal(t, 5, variantStock(t, db, variant.ID))
}
