package models

import (
	"time"

	"github.com/google/uuid"
)

// PickupLocation is a distribution point where baskets are handed out.
type PickupLocation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Label     string    `gorm:"column:label;not null"`
	Address   string    `gorm:"column:address;not null"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
