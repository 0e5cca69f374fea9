package service

import (
	"context"
	"strings"

	"courier-track/internal/domain/tracking"
	"courier-track/internal/ports"
)

// StopTracking cancels the simulation for an order. Stopping an order with
// no live session is not an error; the call reports NOT_TRACKING instead so
// retries and duplicate cancellations stay harmless.
func (service *trackingService) StopTracking(ctx context.Context, orderID string) (ports.StopTrackingResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return ports.StopTrackingResult{}, ErrOrderIDRequired
	}

	ctx = service.logger.WithOrderID(ctx, orderID)

	entry, ok := service.lookupSession(orderID)
	if !ok {
		service.logger.Info(ctx, "tracking_stop_noop", "No active session for order", nil)
		return ports.StopTrackingResult{
			OrderID: orderID,
			Status:  "NOT_TRACKING",
			Message: "no active tracking session for order",
		}, nil
	}

	// Cancel is idempotent; the observer handles registry removal and fan-out
	entry.session.Cancel()

	return ports.StopTrackingResult{
		OrderID:   orderID,
		SessionID: entry.session.ID,
		Status:    tracking.StatusCancelled.String(),
		Message:   "tracking session cancelled",
	}, nil
}

// Shutdown cancels every live session. Used on service teardown so no tick
// goroutines outlive the process lifecycle.
func (service *trackingService) Shutdown(ctx context.Context) {
	service.mu.Lock()
	entries := make([]*activeSession, 0, len(service.sessions))
	for _, entry := range service.sessions {
		if entry.session == nil {
			// in-flight start reservation; nothing to cancel yet
			continue
		}
		entries = append(entries, entry)
	}
	service.mu.Unlock()

	for _, entry := range entries {
		entry.session.Cancel()
	}

	if len(entries) > 0 {
		service.logger.Info(ctx, "tracking_shutdown", "Cancelled all live tracking sessions", map[string]any{
			"count": len(entries),
		})
	}
}
