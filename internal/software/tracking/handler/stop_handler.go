package handler

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ----- Handler: POST /orders/{order_id}/tracking/stop -----

func (handler *TrackingHTTPHandler) handleStopTracking(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	orderID := strings.TrimSpace(r.PathValue("order_id"))
	if orderID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "order_id is required", nil)
		return
	}
	ctx = handler.logger.WithOrderID(ctx, orderID)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.StopTracking(ctxWithTimeout, orderID)
	if err != nil {
		handler.httpError(ctxWithTimeout, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
