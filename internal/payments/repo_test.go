package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/abarbet/shoply-backend/pkg/db/models"
	"github.com/abarbet/shoply-backend/pkg/enums"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:payments_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  order_date DATETIME,
  status TEXT NOT NULL DEFAULT 'pending',
  is_paid INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  idempotency_key TEXT,
  created_at DATETIME,
  processed_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_idempotency_key
  ON payments (idempotency_key) WHERE idempotency_key IS NOT NULL;`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func mustCreatePaymentOrder(t *testing.T, db *gorm.DB) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: enums.OrderStatusPending,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestPaymentsRepositoryCreateAndFind(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := mustCreatePaymentOrder(t, db)
	key := "submit-1"
	payment := &models.Payment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		Amount:         decimal.RequireFromString("42.50"),
		Status:         enums.PaymentStatusPending,
		IdempotencyKey: &key,
	}
	created, err := repo.Create(ctx, payment)
	require.NoError(t, err)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.OrderID)
	assert.True(t, found.Amount.Equal(decimal.RequireFromString("42.50")))

	withOrder, err := repo.FindByIDWithOrder(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, withOrder.Order)
	assert.Equal(t, order.UserID, withOrder.Order.UserID)

	byKey, err := repo.FindByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byKey.ID)

	_, err = repo.FindByIdempotencyKey(ctx, "unknown")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPaymentsRepositoryUniqueIdempotencyKey(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := mustCreatePaymentOrder(t, db)
	key := "dup-key"
	_, err := repo.Create(ctx, &models.Payment{
		ID: uuid.New(), OrderID: order.ID,
		Amount: decimal.NewFromInt(10), Status: enums.PaymentStatusPending,
		IdempotencyKey: &key,
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.Payment{
		ID: uuid.New(), OrderID: order.ID,
		Amount: decimal.NewFromInt(10), Status: enums.PaymentStatusPending,
		IdempotencyKey: &key,
	})
	require.Error(t, err)

	// NULL keys never collide.
	_, err = repo.Create(ctx, &models.Payment{
		ID: uuid.New(), OrderID: order.ID,
		Amount: decimal.NewFromInt(10), Status: enums.PaymentStatusPending,
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Payment{
		ID: uuid.New(), OrderID: order.ID,
		Amount: decimal.NewFromInt(10), Status: enums.PaymentStatusPending,
	})
	require.NoError(t, err)
}

func TestPaymentsRepositoryUpdateAndMarkPaid(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := mustCreatePaymentOrder(t, db)
	payment := &models.Payment{
		ID: uuid.New(), OrderID: order.ID,
		Amount: decimal.NewFromInt(20), Status: enums.PaymentStatusPending,
	}
	_, err := repo.Create(ctx, payment)
	require.NoError(t, err)

	processed := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.UpdatePayment(ctx, payment.ID, map[string]any{
		"status":       enums.PaymentStatusConfirmed,
		"processed_at": processed,
	}))
	require.NoError(t, repo.MarkOrderPaid(ctx, order.ID))

	found, err := repo.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusConfirmed, found.Status)
	require.NotNil(t, found.ProcessedAt)
	assert.True(t, found.ProcessedAt.Equal(processed))

	var paidOrder models.Order
	require.NoError(t, db.First(&paidOrder, "id = ?", order.ID).Error)
	assert.True(t, paidOrder.IsPaid)

	assert.ErrorIs(t, repo.UpdatePayment(ctx, uuid.New(), map[string]any{"status": enums.PaymentStatusFailed}), gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.MarkOrderPaid(ctx, uuid.New()), gorm.ErrRecordNotFound)
}
