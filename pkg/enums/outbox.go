package enums

// OutboxEventType enumerates the domain events emitted through the outbox.
type OutboxEventType string

const (
	EventOrderCreated    OutboxEventType = "order.created"
	EventOrderPaid       OutboxEventType = "order.paid"
	EventOrderCanceled   OutboxEventType = "order.canceled"
	EventPaymentFailed   OutboxEventType = "payment.failed"
	EventPaymentOrphaned OutboxEventType = "payment.orphaned"
	EventStockPublished  OutboxEventType = "stock.published"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder              OutboxAggregateType = "order"
	AggregatePayment            OutboxAggregateType = "payment"
	AggregateBasketAvailability OutboxAggregateType = "basket_availability"
)
