package models

import (
	"time"

	"github.com/google/uuid"
)

// BasketAvailability is the ledger entry for one basket type at one
// distribution date and pickup location. AvailableQty never goes negative;
// credits clamp at PublishedQty.
type BasketAvailability struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BasketTypeID     uuid.UUID  `gorm:"column:basket_type_id;type:uuid;not null;uniqueIndex:ux_basket_availability_slot,priority:1"`
	PickupLocationID uuid.UUID  `gorm:"column:pickup_location_id;type:uuid;not null;uniqueIndex:ux_basket_availability_slot,priority:2"`
	DistributionDate time.Time  `gorm:"column:distribution_date;not null;uniqueIndex:ux_basket_availability_slot,priority:3"`
	PublishedQty     int        `gorm:"column:published_qty;not null"`
	AvailableQty     int        `gorm:"column:available_qty;not null;default:0"`
	BasketType       BasketType `gorm:"foreignKey:BasketTypeID"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
