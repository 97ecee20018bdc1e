package models

import (
	"time"

	"github.com/google/uuid"
)

// BasketType is a sellable basket composition published by a producer.
type BasketType struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProducerName string    `gorm:"column:producer_name;not null"`
	Label        string    `gorm:"column:label;not null"`
	Description  *string   `gorm:"column:description"`
	PriceCents   int       `gorm:"column:price_cents;not null"`
	Active       bool      `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
