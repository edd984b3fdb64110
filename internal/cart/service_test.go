package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/modacart/modacart-backend/internal/orders"
	"github.com/modacart/modacart-backend/internal/products"
	"github.com/modacart/modacart-backend/internal/users"
	"github.com/modacart/modacart-backend/pkg/db"
	"github.com/modacart/modacart-backend/pkg/db/models"
	"github.com/modacart/modacart-backend/pkg/enums"
	pkgerrors "github.com/modacart/modacart-backend/pkg/errors"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'customer',
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL,
  product_type TEXT NOT NULL,
  gender TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  variant_value TEXT NOT NULL,
  price NUMERIC NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  total_price NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL,
  product_type TEXT NOT NULL,
  gender TEXT NOT NULL,
  variant_value TEXT NOT NULL,
  price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  final_price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func newCartService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(db.NewWithConn(conn), users.NewRepository(conn), orders.NewRepository(conn), products.NewRepository(conn))
	require.NoError(t, err)
	return svc
}

func seedUser(t *testing.T, conn *gorm.DB) uuid.UUID {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		FirstName:    "Ada",
		LastName:     "Moreno",
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
	require.NoError(t, conn.Create(user).Error)
	return user.ID
}

func seedProduct(t *testing.T, conn *gorm.DB, active bool) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:          uuid.New(),
		Name:        "Linen Shirt",
		Description: "Relaxed fit linen shirt",
		ProductType: enums.ProductTypeApparel,
		Gender:      enums.GenderMen,
		IsActive:    active,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

func seedVariant(t *testing.T, conn *gorm.DB, productID uuid.UUID, value string, price float64, stock int) *models.ProductVariant {
	t.Helper()

	variant := &models.ProductVariant{
		ID:           uuid.New(),
		ProductID:    productID,
		VariantValue: value,
		Price:        decimal.NewFromFloat(price),
		Stock:        stock,
		IsActive:     true,
	}
	require.NoError(t, conn.Create(variant).Error)
	return variant
}

func requireCartCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, code, typed.Code())
}

func TestAddItemCreatesPendingOrder(t *testing.T) {
	conn := setupCartTestDB(t)
	svc := newCartService(t, conn)
	userID := seedUser(t, conn)

	product := seedProduct(t, conn, true)
	seedVariant(t, conn, product.ID, "M", 49.90, 10)

	order, err := svc.AddItem(context.Background(), userID, AddItemInput{
		ProductID:    product.ID,
		VariantValue: "M",
		Quantity:     2,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.OrderPaymentStatusUnpaid, order.PaymentStatus)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromFloat(99.80)),
		"total %s", order.TotalPrice)

	var variant models.ProductVariant
	require.NoError(t, conn.First(&variant, "product_id = ?", product.ID).Error)
	assert.Equal(t, 8, variant.Stock)
}

func TestAddItemReusesPendingOrderAndIncrementsLine(t *testing.T) {
	conn := setupCartTestDB(t)
	svc := newCartService(t, conn)
	userID := seedUser(t, conn)

	product := seedProduct(t, conn, true)
	seedVariant(t, conn, product.ID, "M", 20.00, 10)

	first, err := svc.AddItem(context.Background(), userID, AddItemInput{
		ProductID: product.ID, VariantValue: "M", Quantity: 1,
	})
	require.NoError(t, err)

	second, err := svc.AddItem(context.Background(), userID, AddItemInput{
		ProductID: product.ID, VariantValue: "M", Quantity: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "repeat adds must land on the same pending order")
	require.Len(t, second.Items, 1)
	assert.Equal(t, 4, second.Items[0].Quantity)
	assert.True(t, second.TotalPrice.Equal(decimal.NewFromFloat(80.00)))

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAddItemKeepsSnapshotPriceOnRepeatAdd(t *testing.T) {
	conn := setupCartTestDB(t)
	svc := newCartService(t, conn)
	userID := seedUser(t, conn)

	product := seedProduct(t, conn, true)
	variant := seedVariant(t, conn, product.ID, "L", 30.00, 10)

	_, err := svc.AddItem(context.Background(), userID, AddItemInput{
		ProductID: product.ID, VariantValue: "L", Quantity: 1,
	})
	require.NoError(t, err)

	// catalog price change after first add must not affect the line
	require.NoError(t, conn.Model(&models.ProductVariant{}).
		Where("id = ?", variant.ID).
		UpdateColumn("price", decimal.NewFromFloat(99.00)).Error)

	order, err := svc.AddItem(context.Background(), userID, AddItemInput{
		ProductID: product.ID, VariantValue: "L", Quantity: 1,
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.True(t, order.Items[0].Price.Equal(decimal.NewFromFloat(30.00)))
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromFloat(60.00)))
}

func TestAddItemSeparateLinesPerVariant(t *testing.T) {
	conn := setupCartTestDB(t)
	svc := newCartService(t, conn)
	userID := seedUser(t, conn)

	product := seedProduct(t, conn, true)
	seedVariant(t, conn, product.ID, "M", 10.00, 5)
	seedVariant(t, conn, product.ID, "L", 12.00, 5)

	_, err := svc.AddItem(context.Background(), userID, AddItemInput{
		ProductID: product.ID, VariantValue: "M", Quantity: 1,
	})
	require.NoError(t, err)

	order, err := svc.AddItem(context.Background(), userID, AddItemInput{
		ProductID: product.ID, VariantValue: "L", Quantity: 2,
	})
	require.NoError(t, err)

	assert.Len(t, order.Items, 2)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromFloat(34.00)))
}

func TestAddItemInsufficientStockLeavesCartUntouched(t *testing.T) {
	conn := setupCartTestDB(t)
	svc := newCartService(t, conn)
	userID := seedUser(t, conn)

	product := seedProduct(t, conn, true)
	variant := seedVariant(t, conn, product.ID, "S", 15.00, 1)

	_, err := svc.AddItem(context.Background(), userID, AddItemInput{
		ProductID: product.ID, VariantValue: "S", Quantity: 2,
	})
	requireCartCode(t, err, pkgerrors.CodeStateConflict)

	var reloaded models.ProductVariant
	require.NoError(t, conn.First(&reloaded, "id = ?", variant.ID).Error)
	assert.Equal(t, 1, reloaded.Stock)

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.EqualValues(t, 0, count, "rolled back transaction must not leave a pending order")
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	conn := setupCartTestDB(t)
	svc := newCartService(t, conn)

	product := seedProduct(t, conn, false)
	seedVariant(t, conn, product.ID, "M", 15.00, 5)

	_, err := svc.AddItem(context.Background(), seedUser(t, conn), AddItemInput{
		ProductID: product.ID, VariantValue: "M", Quantity: 1,
	})
	requireCartCode(t, err, pkgerrors.CodeValidation)
}

func TestAddItemUnknownProduct(t *testing.T) {
	conn := setupCartTestDB(t)
	svc := newCartService(t, conn)

	_, err := svc.AddItem(context.Background(), seedUser(t, conn), AddItemInput{
		ProductID: uuid.New(), VariantValue: "M", Quantity: 1,
	})
	requireCartCode(t, err, pkgerrors.CodeNotFound)
}

func TestAddItemUnknownVariant(t *testing.T) {
	conn := setupCartTestDB(t)
	svc := newCartService(t, conn)

	product := seedProduct(t, conn, true)
	seedVariant(t, conn, product.ID, "M", 15.00, 5)

	_, err := svc.AddItem(context.Background(), seedUser(t, conn), AddItemInput{
		ProductID: product.ID, VariantValue: "XXL", Quantity: 1,
	})
	requireCartCode(t, err, pkgerrors.CodeNotFound)
}

func TestAddItemUnknownUser(t *testing.T) {
	conn := setupCartTestDB(t)
	svc := newCartService(t, conn)

	product := seedProduct(t, conn, true)
	variant := seedVariant(t, conn, product.ID, "M", 15.00, 5)

	_, err := svc.AddItem(context.Background(), uuid.New(), AddItemInput{
		ProductID: product.ID, VariantValue: "M", Quantity: 1,
	})
	requireCartCode(t, err, pkgerrors.CodeNotFound)

	var reloaded models.ProductVariant
	require.NoError(t, conn.First(&reloaded, "id = ?", variant.ID).Error)
	assert.Equal(t, 5, reloaded.Stock, "no reservation may survive a rejected add")
}

func TestAddItemRejectsBadInput(t *testing.T) {
	conn := setupCartTestDB(t)
	svc := newCartService(t, conn)

	_, err := svc.AddItem(context.Background(), uuid.Nil, AddItemInput{ProductID: uuid.New(), VariantValue: "M", Quantity: 1})
	requireCartCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.AddItem(context.Background(), uuid.New(), AddItemInput{ProductID: uuid.New(), VariantValue: "M", Quantity: 0})
	requireCartCode(t, err, pkgerrors.CodeValidation)
}
