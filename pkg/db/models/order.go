package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/abarbet/shoply-backend/pkg/enums"
)

// Order is a purchase request. IsPaid only ever flips false -> true,
// and only the settlement worker flips it.
type Order struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	OrderDate time.Time         `gorm:"column:order_date;autoCreateTime"`
	Status    enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	IsPaid    bool              `gorm:"column:is_paid;not null;default:false"`
	Items     []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
