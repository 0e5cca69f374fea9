package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"courier-track/internal/domain/tracking"
	"courier-track/internal/general/contracts"
)

const producerName = "tracking-service"

// generateCorrelationID creates a simple correlation ID for tracing requests.
func generateCorrelationID() string {
	var b [3]byte // 6 hex chars
	_, _ = rand.Read(b[:])
	ts := time.Now().UTC().Format("20060102T150405")
	return "req_" + ts + "_" + hex.EncodeToString(b[:])
}

// publishTrackingStatus sends a session status update to the tracking topic
// exchange using routing key tracking.status.{status}, e.g. tracking.status.arrived.
func (service *trackingService) publishTrackingStatus(ctx context.Context, orderID, sessionID string, snap tracking.Snapshot, correlationID string) {
	routingKey := contracts.RouteTrackingStatusPrefix + strings.ToLower(snap.State.String())

	msg := contracts.TrackingStatusMessage{
		OrderID:    orderID,
		SessionID:  sessionID,
		Status:     snap.State.String(),
		Position:   contracts.GeoPoint{Lat: snap.Position.Latitude, Lng: snap.Position.Longitude},
		ETAMinutes: snap.ETAMinutes,
		Timestamp:  time.Now().UTC(),
		Envelope: contracts.Envelope{
			CorrelationID: correlationID,
			Producer:      producerName,
			SentAt:        time.Now().UTC(),
		},
	}

	if err := service.pub.PublishJSON(contracts.ExchangeTrackingTopic, routingKey, msg); err != nil {
		service.logger.Error(ctx, "tracking_status_publish_failed", "Failed to publish tracking status", err, map[string]any{
			"routing_key": routingKey,
		})
		return
	}

	service.logger.Info(ctx, "tracking_status_published", "Published tracking status to RabbitMQ", map[string]any{
		"routing_key": routingKey,
	})
}

// removeSession drops the order's session from the registry, but only when
// the registered session is the one asking; a stale observer must not evict
// a newer session for the same order.
func (service *trackingService) removeSession(orderID, sessionID string) {
	service.mu.Lock()
	if entry, ok := service.sessions[orderID]; ok && entry.session != nil && entry.session.ID == sessionID {
		delete(service.sessions, orderID)
	}
	service.mu.Unlock()
}

// lookupSession returns the established session for an order, if any.
// In-flight start reservations are not visible here.
func (service *trackingService) lookupSession(orderID string) (*activeSession, bool) {
	service.mu.Lock()
	defer service.mu.Unlock()
	entry, ok := service.sessions[orderID]
	if !ok || entry.session == nil {
		return nil, false
	}
	return entry, true
}
