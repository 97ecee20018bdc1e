package models

import (
	"time"

	"github.com/google/uuid"
)

// CartReservation is an advisory, time-boxed hold on a ledger entry.
// One active reservation per (user, entry); upserts replace rather than
// accumulate. Expired rows are inert until the sweep removes them.
type CartReservation struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_cart_reservation_user_entry,priority:1"`
	AvailabilityID uuid.UUID `gorm:"column:availability_id;type:uuid;not null;uniqueIndex:ux_cart_reservation_user_entry,priority:2"`
	Qty            int       `gorm:"column:qty;not null"`
	ExpiresAt      time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
