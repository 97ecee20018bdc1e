package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/panierlocal/amap-backend/pkg/enums"
)

// Payment is one payment attempt against an order. An order may accumulate
// several rows across retries; at most one is ever SUCCEEDED.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Status          enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	StripePaymentID string              `gorm:"column:stripe_payment_id;not null;index"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'unknown'"`
	AmountCents     int                 `gorm:"column:amount_cents;not null"`
	FailureReason   *string             `gorm:"column:failure_reason"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
