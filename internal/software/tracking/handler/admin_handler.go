package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// --- Handler: GET /admin/overview ---

func (handler *TrackingHTTPHandler) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	// bound service call
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	overview, err := handler.svc.GetSystemOverview(ctxWithTimeout)
	if err != nil {
		// distinguish DB failures from everything else
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "database error", err)
			return
		}
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to fetch system overview", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, overview)
}

// --- Handler: GET /admin/sessions ---

func (handler *TrackingHTTPHandler) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	sessions := handler.svc.ActiveSessions(ctx)

	type sessionsBody struct {
		Count    int `json:"count"`
		Sessions any `json:"sessions"`
	}
	handler.jsonResponse(ctx, w, http.StatusOK, sessionsBody{Count: len(sessions), Sessions: sessions})
}
