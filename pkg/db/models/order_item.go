package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem pins one ledger entry into an order. PriceCentsAtOrder is
// snapshotted at creation and never recomputed from the live catalog.
type OrderItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	AvailabilityID    uuid.UUID `gorm:"column:availability_id;type:uuid;not null"`
	BasketLabel       string    `gorm:"column:basket_label;not null"`
	Qty               int       `gorm:"column:qty;not null"`
	PriceCentsAtOrder int       `gorm:"column:price_cents_at_order;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}
