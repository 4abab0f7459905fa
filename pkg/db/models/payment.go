package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abarbet/shoply-backend/pkg/enums"
)

// Payment references its order but does not own it. ProcessedAt is set exactly
// once, when the settlement worker moves the status out of pending.
type Payment struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Order          *Order              `gorm:"foreignKey:OrderID"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Status         enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt    *time.Time          `gorm:"column:processed_at"`
	IdempotencyKey *string             `gorm:"column:idempotency_key;uniqueIndex"`
}
