package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"courier-track/internal/domain/geo"
	"courier-track/internal/general/postgres"
	"courier-track/internal/ports"
	"courier-track/internal/software/tracking/service"

	"github.com/jackc/pgx/v5/pgconn"
)

// --- Request DTO (HTTP boundary) ---

type startTrackingRequest struct {
	// Origin is optional: absence means the caller's device location is
	// unavailable and the server falls back to the configured origin.
	Origin *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"origin,omitempty"`
	Seed *int64 `json:"seed,omitempty"` // deterministic runs for demos/tests
}

// ----- Handler: POST /orders/{order_id}/tracking/start -----

func (handler *TrackingHTTPHandler) handleStartTracking(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	orderID := strings.TrimSpace(r.PathValue("order_id"))
	if orderID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "order_id is required", nil)
		return
	}
	ctx = handler.logger.WithOrderID(ctx, orderID)

	// body is optional; an empty body means "no device location, no seed"
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	var req startTrackingRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return
	}

	in := ports.StartTrackingInput{OrderID: orderID, Seed: req.Seed}
	if req.Origin != nil {
		in.Origin = &geo.Coordinate{Latitude: req.Origin.Latitude, Longitude: req.Origin.Longitude}
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := handler.svc.StartTracking(ctxWithTimeout, in)
	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrOrderNotFound):
			handler.httpError(ctxWithTimeout, w, http.StatusNotFound, "order not found", err)
		case errors.Is(err, service.ErrOrderNotTrackable):
			handler.httpError(ctxWithTimeout, w, http.StatusConflict, err.Error(), err)
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "database error", err)
				return
			}
			handler.httpError(ctxWithTimeout, w, http.StatusBadRequest, err.Error(), err)
		}
		return
	}

	ctxWithTimeout = handler.logger.WithSessionID(ctxWithTimeout, res.SessionID)

	// a duplicate start returns the already-running session rather than a new one
	status := http.StatusCreated
	if res.AlreadyActive {
		status = http.StatusOK
	}
	handler.jsonResponse(ctxWithTimeout, w, status, res)
}
