package contracts

import "time"

// WSTrackingUpdate is pushed to the customer on every simulation tick.
type WSTrackingUpdate struct {
	Type       string   `json:"type"` // always "tracking_update"
	OrderID    string   `json:"order_id"`
	Position   GeoPoint `json:"position"`
	ETAMinutes float64  `json:"eta_minutes"`
	State      string   `json:"state"`
	Envelope
}

// WSTrackingTerminal is pushed to the customer exactly once when a session
// ends.
type WSTrackingTerminal struct {
	Type      string    `json:"type"` // "courier_arrived" | "tracking_cancelled"
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"` // ARRIVED | CANCELLED
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
