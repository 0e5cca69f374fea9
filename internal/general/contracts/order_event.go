package contracts

import "time"

// OrderEventMessage is consumed from the order backend.
// Routing key: "order.event.{event_type}" on ExchangeOrderTopic.
type OrderEventMessage struct {
	OrderID   string    `json:"order_id"`
	EventType string    `json:"event_type"` // e.g. "cancelled"
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
