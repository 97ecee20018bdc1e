package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/panierlocal/amap-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order with its inventory debits applied.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	TotalCents  int       `json:"total_cents"`
	PickupDate  time.Time `json:"pickup_date"`
}

// OrderPaidEvent is emitted once a payment settles and the order moves to paid.
type OrderPaidEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	OrderNumber     string    `json:"order_number"`
	PaymentIntentID string    `json:"payment_intent_id"`
	AmountCents     int       `json:"amount_cents"`
	PaidAt          time.Time `json:"paid_at"`
}

// OrderCanceledEvent is emitted whenever an order is canceled and its
// quantities returned to the ledger.
type OrderCanceledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	CanceledAt     time.Time         `json:"canceled_at"`
	Reason         string            `json:"reason,omitempty"`
}

// PaymentFailedEvent records a failed payment attempt against an order.
type PaymentFailedEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	FailureReason   string    `json:"failure_reason,omitempty"`
}

// PaymentOrphanedEvent flags a successful charge against an order that is no
// longer payable, so support can trigger a refund.
type PaymentOrphanedEvent struct {
	OrderID         uuid.UUID         `json:"order_id"`
	PaymentIntentID string            `json:"payment_intent_id"`
	OrderStatus     enums.OrderStatus `json:"order_status"`
	AmountCents     int               `json:"amount_cents"`
}

// StockPublishedEvent announces new or adjusted availability for a slot.
type StockPublishedEvent struct {
	AvailabilityID   uuid.UUID `json:"availability_id"`
	BasketTypeID     uuid.UUID `json:"basket_type_id"`
	PickupLocationID uuid.UUID `json:"pickup_location_id"`
	DistributionDate time.Time `json:"distribution_date"`
	PublishedQty     int       `json:"published_qty"`
	AvailableQty     int       `json:"available_qty"`
}
