package ports

import (
	"context"
	"time"

	"courier-track/internal/domain/geo"
)

// ----- DTOs for Tracking Service -----

// StartTrackingInput is the validated input required to start tracking an order.
type StartTrackingInput struct {
	OrderID string
	// Origin is the caller-supplied device location. Nil means the location
	// collaborator degraded (permission denied or timeout) and the configured
	// fallback coordinate is used instead.
	Origin *geo.Coordinate
	Seed   *int64 // optional deterministic seed, test/demo seam
}

// StartTrackingResult is returned by TrackingService.StartTracking().
type StartTrackingResult struct {
	OrderID         string           `json:"order_id"`
	SessionID       string           `json:"session_id"`
	Status          string           `json:"status"`
	OriginSource    string           `json:"origin_source"` // "caller" | "fallback"
	RouteSource     string           `json:"route_source"`  // "provider" | "fallback"
	Route           []geo.Coordinate `json:"route"`
	EncodedRoute    string           `json:"encoded_route"`
	InitialETAMin   float64          `json:"initial_eta_minutes"`
	CourierPosition geo.Coordinate   `json:"courier_position"`
	// AlreadyActive reports that the order was already being tracked and the
	// existing session is returned instead of a new one.
	AlreadyActive bool `json:"already_active,omitempty"`
}

// StopTrackingResult is returned by TrackingService.StopTracking().
type StopTrackingResult struct {
	OrderID   string `json:"order_id"`
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// ActiveSessionInfo describes one live courier simulation as seen from the
// admin surface.
type ActiveSessionInfo struct {
	OrderID    string         `json:"order_id"`
	SessionID  string         `json:"session_id"`
	CustomerID string         `json:"customer_id"`
	State      string         `json:"state"`
	ETAMinutes float64        `json:"eta_minutes"`
	Position   geo.Coordinate `json:"position"`
	Target     geo.Coordinate `json:"target"`
}

// SystemOverviewMetrics are the aggregate numbers reported by the overview
// endpoint.
type SystemOverviewMetrics struct {
	ActiveSessions int            `json:"active_sessions"`
	OrdersByStatus map[string]int `json:"orders_by_status"`
	DeliveredToday int            `json:"delivered_today"`
}

// SystemOverviewResult is returned by TrackingService.GetSystemOverview().
type SystemOverviewResult struct {
	Timestamp time.Time             `json:"timestamp"`
	Metrics   SystemOverviewMetrics `json:"metrics"`
}

// ----- Tracking Service Interface -----

// TrackingService exposes the boundary consumed by the HTTP/WS controller layer.
type TrackingService interface {
	StartTracking(ctx context.Context, in StartTrackingInput) (StartTrackingResult, error)
	StopTracking(ctx context.Context, orderID string) (StopTrackingResult, error)
	GetSystemOverview(ctx context.Context) (SystemOverviewResult, error)
	ActiveSessions(ctx context.Context) []ActiveSessionInfo
	RunBackgroundConsumers(ctx context.Context)
	Shutdown(ctx context.Context)
}
