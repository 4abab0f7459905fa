package orders

import (
	"context"

	"github.com/abarbet/shoply-backend/pkg/db/models"
	"github.com/abarbet/shoply-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Result[models.Order], error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}
