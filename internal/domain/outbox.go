package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const EventOrderCreated = "OrderCreated"

// OutboxEvent is written in the same transaction as the aggregate it describes
// and published later.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
	ProcessedAt *time.Time
	Processed   bool
}

// OrderCreatedEvent is keyed by payment intent: the order id is assigned in
// the same transaction that stores the event.
type OrderCreatedEvent struct {
	CartID          string          `json:"cartId"`
	BuyerEmail      string          `json:"buyerEmail"`
	PaymentIntentID string          `json:"paymentIntentId"`
	Total           decimal.Decimal `json:"total"`
}
