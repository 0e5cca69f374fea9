package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"courier-track/internal/domain/geo"
	"courier-track/internal/domain/order"
	"courier-track/internal/domain/polyline"
	"courier-track/internal/domain/tracking"
	"courier-track/internal/ports"
)

// StartTracking loads the order, resolves the courier origin, plans the route
// and spins up a simulation session that ticks until arrival or cancellation.
func (service *trackingService) StartTracking(ctx context.Context, in ports.StartTrackingInput) (ports.StartTrackingResult, error) {
	orderID := strings.TrimSpace(in.OrderID)
	if orderID == "" {
		return ports.StartTrackingResult{}, ErrOrderIDRequired
	}

	correlationID := generateCorrelationID()
	ctx = service.logger.WithOrderID(service.logger.WithRequestID(ctx, correlationID), orderID)

	// one live session per order: reserve the key before the order-loading
	// transaction so two concurrent starts cannot both pass the check. The
	// loser waits for the winner and receives its session.
	service.mu.Lock()
	if entry, exists := service.sessions[orderID]; exists {
		service.mu.Unlock()
		return service.awaitActiveSession(ctx, entry)
	}
	entry := &activeSession{ready: make(chan struct{})}
	service.sessions[orderID] = entry
	service.mu.Unlock()

	abort := func(err error) (ports.StartTrackingResult, error) {
		service.mu.Lock()
		delete(service.sessions, orderID)
		entry.err = err
		close(entry.ready)
		service.mu.Unlock()
		return ports.StartTrackingResult{}, err
	}

	// load the order and move it into IN_TRANSIT
	var ord *order.Order
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		o, err := service.orderRepo.GetByID(txCtx, orderID)
		if err != nil {
			return err
		}

		switch o.Status {
		case order.StatusInTransit:
			// already moving, e.g. tracking restarted after a service bounce
		default:
			if err := o.MarkInTransit(); err != nil {
				return fmt.Errorf("%w: status %s: %s", ErrOrderNotTrackable, o.Status, err)
			}
			if err := service.orderRepo.UpdateStatus(txCtx, o.ID, o.Status, o.UpdatedAt); err != nil {
				return err
			}
		}

		ord = o
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "tracking_start_failed", "Failed to load order for tracking", err, nil)
		return abort(err)
	}

	// resolve the origin: caller device location, or configured fallback when
	// the location collaborator degraded
	origin := service.cfg.FallbackOrigin
	originSource := "fallback"
	if in.Origin != nil {
		if err := in.Origin.Validate(); err != nil {
			service.logger.Error(ctx, "tracking_origin_invalid", "Caller origin rejected, using fallback", err, nil)
		} else {
			origin = *in.Origin
			originSource = "caller"
		}
	}
	if originSource == "fallback" {
		service.logger.Info(ctx, "tracking_origin_fallback", "Using configured fallback origin", map[string]any{
			"lat": origin.Latitude,
			"lng": origin.Longitude,
		})
	}

	// plan the route; provider failures degrade to a straight two-point route
	route, encoded, routeSource := service.planRoute(ctx, origin, ord.Dropoff)

	opts := tracking.Options{
		TickInterval:      service.cfg.TickInterval,
		JitterDeg:         service.cfg.JitterDeg,
		ArrivalEpsilonDeg: service.cfg.ArrivalEpsilonDeg,
	}
	if in.Seed != nil {
		opts.Rand = rand.New(rand.NewSource(*in.Seed))
	}

	session, err := tracking.Start(origin, ord.Dropoff, opts)
	if err != nil {
		service.logger.Error(ctx, "tracking_start_failed", "Failed to start simulation session", err, nil)
		return abort(err)
	}

	session.SetObserver(&sessionObserver{
		service:       service,
		orderID:       ord.ID,
		customerID:    ord.CustomerID,
		sessionID:     session.ID,
		correlationID: correlationID,
	})

	snap := session.Snapshot()

	res := ports.StartTrackingResult{
		OrderID:         ord.ID,
		SessionID:       session.ID,
		Status:          snap.State.String(),
		OriginSource:    originSource,
		RouteSource:     routeSource,
		Route:           route,
		EncodedRoute:    encoded,
		InitialETAMin:   snap.ETAMinutes,
		CourierPosition: snap.Position,
	}

	service.mu.Lock()
	entry.session = session
	entry.customerID = ord.CustomerID
	entry.result = res
	close(entry.ready)
	service.mu.Unlock()

	service.publishTrackingStatus(ctx, ord.ID, session.ID, snap, correlationID)

	service.logger.Info(ctx, "tracking_started", "Tracking session started", map[string]any{
		"session_id":   session.ID,
		"origin_src":   originSource,
		"route_src":    routeSource,
		"route_points": len(route),
		"initial_eta":  snap.ETAMinutes,
	})

	return res, nil
}

// awaitActiveSession blocks until an in-flight start for the order settles,
// then returns the established session with a refreshed snapshot.
func (service *trackingService) awaitActiveSession(ctx context.Context, entry *activeSession) (ports.StartTrackingResult, error) {
	select {
	case <-entry.ready:
	case <-ctx.Done():
		return ports.StartTrackingResult{}, ctx.Err()
	}
	if entry.err != nil {
		return ports.StartTrackingResult{}, entry.err
	}

	res := entry.result
	snap := entry.session.Snapshot()
	res.Status = snap.State.String()
	res.CourierPosition = snap.Position
	res.AlreadyActive = true

	service.logger.Info(ctx, "tracking_already_active", "Returning existing tracking session", map[string]any{
		"session_id": entry.session.ID,
	})

	return res, nil
}

// planRoute asks the directions provider for a polyline and decodes it. Any
// provider or codec failure yields the straight [origin, destination] route;
// the error never reaches the caller.
func (service *trackingService) planRoute(ctx context.Context, origin, destination geo.Coordinate) ([]geo.Coordinate, string, string) {
	encoded, err := service.routes.FetchRoute(ctx, origin, destination)
	if err == nil {
		route, decErr := polyline.Decode(encoded)
		if decErr == nil && len(route) >= 2 {
			return route, encoded, "provider"
		}
		err = decErr
		if err == nil {
			err = fmt.Errorf("provider returned %d route points", len(route))
		}
	}

	service.logger.Error(ctx, "route_fallback", "Route provider degraded, using straight-line route", err, nil)

	route := []geo.Coordinate{origin, destination}
	return route, polyline.Encode(route), "fallback"
}
