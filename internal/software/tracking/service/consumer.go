package service

import (
	"context"
	"encoding/json"
	"errors"

	"courier-track/internal/general/contracts"
	"courier-track/internal/general/postgres"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RunBackgroundConsumers starts consuming order events from RabbitMQ. An
// order cancelled upstream must stop its live tracking session. The loop
// re-subscribes across broker reconnects.
func (service *trackingService) RunBackgroundConsumers(ctx context.Context) {
	go service.rabbitmq.ConsumeLoop(ctx, contracts.QueueOrderEvents, "tracking-service-order-events", 10,
		service.handleOrderEvent)

	service.logger.Info(ctx, "mq_consumer_started", "Tracking service MQ consumer started",
		map[string]any{"queue": contracts.QueueOrderEvents})
}

// handleOrderEvent processes one order event delivery: cancellations stop the
// live session and mark the order cancelled in the read model.
func (service *trackingService) handleOrderEvent(ctx context.Context, d amqp.Delivery) error {
	var event contracts.OrderEventMessage
	if err := json.Unmarshal(d.Body, &event); err != nil {
		service.logger.Error(ctx, "mq_message_parse_failed", "Failed to parse order event", err,
			map[string]any{"routing_key": d.RoutingKey, "size": len(d.Body)})
		return err
	}

	ctx = service.logger.WithOrderID(ctx, event.OrderID)
	if event.CorrelationID != "" {
		ctx = service.logger.WithRequestID(ctx, event.CorrelationID)
	}

	service.logger.Info(ctx, "order_event_received", "Processing order event from MQ",
		map[string]any{"routing_key": d.RoutingKey, "event_type": event.EventType})

	if event.EventType != contracts.OrderEventCancelled {
		// other event types are informational for this service
		return nil
	}

	// stop the live session first; Cancel is idempotent so a redelivery is
	// harmless
	if entry, ok := service.lookupSession(event.OrderID); ok {
		entry.session.Cancel()
	} else {
		service.logger.Info(ctx, "order_cancel_noop", "Cancelled order has no live session", nil)
	}

	// keep the read model in step with the upstream cancellation, guarded by
	// the entity transition
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		o, err := service.orderRepo.GetByID(txCtx, event.OrderID)
		if err != nil {
			return err
		}
		if err := o.MarkCancelled(); err != nil {
			// already terminal; nothing to write
			return nil
		}
		return service.orderRepo.MarkCancelled(txCtx, o.ID, *o.CancelledAt)
	})
	if err != nil {
		if errors.Is(err, postgres.ErrOrderNotFound) {
			service.logger.Info(ctx, "order_cancel_unknown_order", "Cancelled order not found locally", nil)
			return nil
		}
		service.logger.Error(ctx, "order_cancel_mark_failed", "Failed to mark order cancelled", err, nil)
		return err
	}

	return nil
}
