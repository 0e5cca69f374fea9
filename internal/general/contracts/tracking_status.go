package contracts

import "time"

// TrackingStatusMessage is published by Tracking Service when a session
// reaches a terminal state.
// Routing key: "tracking.status.{status}" on ExchangeTrackingTopic.
type TrackingStatusMessage struct {
	OrderID    string    `json:"order_id"`
	SessionID  string    `json:"session_id"`
	Status     string    `json:"status"` // ACTIVE|ARRIVED|CANCELLED
	Position   GeoPoint  `json:"position"`
	ETAMinutes float64   `json:"eta_minutes"`
	Timestamp  time.Time `json:"timestamp"`
	Envelope
}

// PositionSnapshotMessage is published on every tick to the position fanout
// exchange for any consumer interested in live courier positions.
type PositionSnapshotMessage struct {
	OrderID    string    `json:"order_id"`
	SessionID  string    `json:"session_id"`
	Position   GeoPoint  `json:"position"`
	ETAMinutes float64   `json:"eta_minutes"`
	State      string    `json:"state"`
	Timestamp  time.Time `json:"timestamp"`
	Envelope
}
