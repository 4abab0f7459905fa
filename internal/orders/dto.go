package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abarbet/shoply-backend/pkg/db/models"
	"github.com/abarbet/shoply-backend/pkg/enums"
	"github.com/abarbet/shoply-backend/pkg/pagination"
)

// OrderItemInput is one requested line in a new order.
type OrderItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	UserID uuid.UUID
	Items  []OrderItemInput
}

// OrderItemDTO is the transport shape of a persisted order line.
type OrderItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderDTO is the transport shape of an order with its lines.
type OrderDTO struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	OrderDate time.Time         `json:"order_date"`
	Status    enums.OrderStatus `json:"status"`
	IsPaid    bool              `json:"is_paid"`
	Total     decimal.Decimal   `json:"total"`
	Items     []OrderItemDTO    `json:"items"`
}

// OrderListResult is a paginated page of a user's orders.
type OrderListResult = pagination.Result[OrderDTO]

// UpdateStatusInput carries an admin status change.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
}

// CancelOrderInput identifies the order to cancel and the actor requesting it.
type CancelOrderInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// GetOrderInput identifies the order to read and the actor requesting it.
type GetOrderInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// OrderTotal sums price times quantity over the order's lines.
func OrderTotal(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			LineTotal: item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return &OrderDTO{
		ID:        o.ID,
		UserID:    o.UserID,
		OrderDate: o.OrderDate,
		Status:    o.Status,
		IsPaid:    o.IsPaid,
		Total:     OrderTotal(o.Items),
		Items:     items,
	}
}
