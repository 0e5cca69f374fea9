package handler

import (
	"net/http"
	"time"
)

// ----- Handler: GET /tracking/health -----

func (handler *TrackingHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "tracking-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
