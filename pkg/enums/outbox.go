package enums

// OutboxAggregateType is the entity an outbox row describes.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregatePayment OutboxAggregateType = "payment"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregatePayment}

func (a OutboxAggregateType) IsValid() bool { return member(aggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(aggregateTypes, "aggregate type", value)
}

// OutboxEventType names the state change carried by an outbox row.
type OutboxEventType string

const (
	EventOrderCreated    OutboxEventType = "order_created"
	EventOrderPaid       OutboxEventType = "order_paid"
	EventOrderConfirmed  OutboxEventType = "order_confirmed"
	EventOrderReleased   OutboxEventType = "order_released"
	EventPaymentDeclined OutboxEventType = "payment_declined"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderConfirmed,
	EventOrderReleased,
	EventPaymentDeclined,
}

func (e OutboxEventType) IsValid() bool { return member(outboxEventTypes, e) }

// Aggregate is the aggregate type every event of this kind is keyed by.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	if e == EventPaymentDeclined {
		return AggregatePayment
	}
	return AggregateOrder
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(outboxEventTypes, "event type", value)
}
