package service

import (
	"context"
	"sync"
	"time"

	"courier-track/internal/domain/tracking"
	"courier-track/internal/general/contracts"
)

// sessionObserver bridges one simulation session to the outside world: the
// position fanout, the tracking status topic, the customer WebSocket and the
// order read model. Callbacks run on the session's tick goroutine.
type sessionObserver struct {
	service       *trackingService
	orderID       string
	customerID    string
	sessionID     string
	correlationID string

	// last snapshot seen; OnCancelled may run on the caller's goroutine while
	// ticks keep arriving, so access is guarded
	snapMu   sync.Mutex
	lastSnap tracking.Snapshot
}

func (obs *sessionObserver) rememberSnap(snap tracking.Snapshot) {
	obs.snapMu.Lock()
	obs.lastSnap = snap
	obs.snapMu.Unlock()
}

func (obs *sessionObserver) recallSnap() tracking.Snapshot {
	obs.snapMu.Lock()
	defer obs.snapMu.Unlock()
	return obs.lastSnap
}

func (obs *sessionObserver) ctx() context.Context {
	l := obs.service.logger
	ctx := l.WithRequestID(context.Background(), obs.correlationID)
	ctx = l.WithOrderID(ctx, obs.orderID)
	return l.WithSessionID(ctx, obs.sessionID)
}

// OnUpdate fires on every tick with the fresh position/ETA snapshot.
func (obs *sessionObserver) OnUpdate(snap tracking.Snapshot) {
	ctx := obs.ctx()
	service := obs.service
	obs.rememberSnap(snap)

	msg := contracts.PositionSnapshotMessage{
		OrderID:    obs.orderID,
		SessionID:  obs.sessionID,
		Position:   contracts.GeoPoint{Lat: snap.Position.Latitude, Lng: snap.Position.Longitude},
		ETAMinutes: snap.ETAMinutes,
		State:      snap.State.String(),
		Timestamp:  time.Now().UTC(),
		Envelope:   obs.envelope(),
	}
	if err := service.pub.PublishJSON(contracts.ExchangePositionFanout, "", msg); err != nil {
		service.logger.Error(ctx, "position_publish_failed", "Failed to publish position snapshot", err, nil)
	}

	// best-effort; the customer may simply not be connected
	if service.websocket.IsCustomerConnected(obs.customerID) {
		update := contracts.WSTrackingUpdate{
			Type:       "tracking_update",
			OrderID:    obs.orderID,
			Position:   msg.Position,
			ETAMinutes: snap.ETAMinutes,
			State:      snap.State.String(),
			Envelope:   obs.envelope(),
		}
		_ = service.websocket.NotifyTrackingUpdate(ctx, obs.customerID, update)
	}
}

// OnArrived fires exactly once when the courier reaches the target.
func (obs *sessionObserver) OnArrived() {
	ctx := obs.ctx()
	service := obs.service

	service.removeSession(obs.orderID, obs.sessionID)

	// mark the order delivered; arrival at the dropoff is the delivery event.
	// The entity transition guards the write: a courier can only deliver an
	// order that is IN_TRANSIT with a courier assigned.
	var deliveredAt time.Time
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		o, err := service.orderRepo.GetByID(txCtx, obs.orderID)
		if err != nil {
			return err
		}
		if err := o.MarkDelivered(); err != nil {
			return err
		}
		deliveredAt = *o.DeliveredAt
		return service.orderRepo.MarkDelivered(txCtx, o.ID, deliveredAt)
	})
	if err != nil {
		service.logger.Error(ctx, "order_delivery_mark_failed", "Failed to mark order delivered", err, nil)
	}

	snap := obs.recallSnap()
	snap.State = tracking.StatusArrived
	service.publishTrackingStatus(ctx, obs.orderID, obs.sessionID, snap, obs.correlationID)

	obs.notifyTerminal(ctx, "courier_arrived", tracking.StatusArrived)

	service.logger.Info(ctx, "courier_arrived", "Courier arrived at dropoff", map[string]any{
		"delivered_at": deliveredAt.Format(time.RFC3339),
	})
}

// OnCancelled fires exactly once when the session is cancelled before arrival.
func (obs *sessionObserver) OnCancelled() {
	ctx := obs.ctx()
	service := obs.service

	service.removeSession(obs.orderID, obs.sessionID)

	snap := obs.recallSnap()
	snap.State = tracking.StatusCancelled
	service.publishTrackingStatus(ctx, obs.orderID, obs.sessionID, snap, obs.correlationID)

	obs.notifyTerminal(ctx, "tracking_cancelled", tracking.StatusCancelled)

	service.logger.Info(ctx, "tracking_cancelled", "Tracking session cancelled", nil)
}

func (obs *sessionObserver) notifyTerminal(ctx context.Context, eventType string, status tracking.Status) {
	service := obs.service
	if !service.websocket.IsCustomerConnected(obs.customerID) {
		return
	}
	terminal := contracts.WSTrackingTerminal{
		Type:      eventType,
		OrderID:   obs.orderID,
		Status:    status.String(),
		Timestamp: time.Now().UTC(),
		Envelope:  obs.envelope(),
	}
	_ = service.websocket.NotifyTrackingTerminal(ctx, obs.customerID, terminal)
}

func (obs *sessionObserver) envelope() contracts.Envelope {
	return contracts.Envelope{
		CorrelationID: obs.correlationID,
		Producer:      producerName,
		SentAt:        time.Now().UTC(),
	}
}
