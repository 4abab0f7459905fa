package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abarbet/shoply-backend/pkg/db/models"
	"github.com/abarbet/shoply-backend/pkg/enums"
)

// SubmitPaymentInput carries a payment attempt for an order.
type SubmitPaymentInput struct {
	OrderID        uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey *string
	ActorUserID    uuid.UUID
	ActorRole      enums.UserRole
}

// GetPaymentInput identifies the payment to read and the actor requesting it.
type GetPaymentInput struct {
	PaymentID   uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// PaymentDTO is the transport shape of a payment record.
type PaymentDTO struct {
	ID          uuid.UUID           `json:"id"`
	OrderID     uuid.UUID           `json:"order_id"`
	Amount      decimal.Decimal     `json:"amount"`
	Status      enums.PaymentStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	ProcessedAt *time.Time          `json:"processed_at,omitempty"`
}

// SubmitResult reports whether the payment was newly admitted or replayed
// from a previous submission with the same idempotency key.
type SubmitResult struct {
	Payment *PaymentDTO
	Created bool
}

func FromModel(p *models.Payment) *PaymentDTO {
	if p == nil {
		return nil
	}
	return &PaymentDTO{
		ID:          p.ID,
		OrderID:     p.OrderID,
		Amount:      p.Amount,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		ProcessedAt: p.ProcessedAt,
	}
}
