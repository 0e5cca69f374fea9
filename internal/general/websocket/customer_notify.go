package websocket

import (
	"context"
	"fmt"

	"courier-track/internal/general/contracts"

	"github.com/gorilla/websocket"
)

// NotifyTrackingUpdate pushes a courier position/ETA packet to a connected customer.
func (ws *WebSocket) NotifyTrackingUpdate(ctx context.Context, customerID string, msg contracts.WSTrackingUpdate) error {
	v, ok := ws.customers.Load(customerID)
	if !ok {
		return fmt.Errorf("customer %s not connected", customerID)
	}
	conn, _ := v.(*websocket.Conn)
	if conn == nil {
		return fmt.Errorf("no connection for customer %s", customerID)
	}

	if err := ws.writeJSON(conn, msg); err != nil {
		ws.logger.Error(ctx, "ws_write_failed", "Failed to push tracking update to customer", err, map[string]any{
			"customer_id": customerID,
		})
		return err
	}

	return nil
}

// NotifyTrackingTerminal pushes a terminal tracking event (arrived/cancelled) to a customer.
func (ws *WebSocket) NotifyTrackingTerminal(ctx context.Context, customerID string, msg contracts.WSTrackingTerminal) error {
	v, ok := ws.customers.Load(customerID)
	if !ok {
		return fmt.Errorf("customer %s not connected", customerID)
	}
	conn, _ := v.(*websocket.Conn)
	if conn == nil {
		return fmt.Errorf("no connection for customer %s", customerID)
	}

	if err := ws.writeJSON(conn, msg); err != nil {
		ws.logger.Error(ctx, "ws_terminal_send_failed",
			"Failed to send terminal tracking event to customer", err,
			map[string]any{"customer_id": customerID})
		return err
	}

	return nil
}
