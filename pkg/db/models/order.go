package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/panierlocal/amap-backend/pkg/enums"
)

// Order is the durable purchase record with snapshotted pricing.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber      string            `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	UserID           uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	UserEmail        string            `gorm:"column:user_email;not null"`
	Status           enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalCents       int               `gorm:"column:total_cents;not null"`
	PickupLocationID uuid.UUID         `gorm:"column:pickup_location_id;type:uuid;not null"`
	PickupDate       time.Time         `gorm:"column:pickup_date;not null"`
	PaymentIntentID  *string           `gorm:"column:payment_intent_id;index"`
	PaidAt           *time.Time        `gorm:"column:paid_at"`
	CanceledAt       *time.Time        `gorm:"column:canceled_at"`
	Items            []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments         []Payment         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
