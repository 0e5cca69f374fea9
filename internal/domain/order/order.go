package order

import (
	"errors"
	"time"

	"courier-track/internal/domain/geo"
)

// Order is the domain entity corresponding to the `orders` table. Only the
// slice of the order needed by live tracking is modeled here: actors, pickup
// and dropoff coordinates, and the delivery status.
type Order struct {
	ID         string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	CustomerID string
	CourierID  *string // nil until a courier is assigned

	PickupAddress  string
	Pickup         geo.Coordinate
	DropoffAddress string
	Dropoff        geo.Coordinate

	Status      Status
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

var (
	ErrNoCourierAssigned       = errors.New("no courier assigned")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

// MarkInTransit transitions ASSIGNED -> IN_TRANSIT. The courier starts moving.
func (order *Order) MarkInTransit() error {
	if order.CourierID == nil || *order.CourierID == "" {
		return ErrNoCourierAssigned
	}
	if !order.Status.CanTransitionTo(StatusInTransit) {
		return ErrInvalidStatusTransition
	}
	order.setStatus(StatusInTransit)
	return nil
}

// MarkDelivered transitions IN_TRANSIT -> DELIVERED.
func (order *Order) MarkDelivered() error {
	if order.CourierID == nil || *order.CourierID == "" {
		return ErrNoCourierAssigned
	}
	if !order.Status.CanTransitionTo(StatusDelivered) {
		return ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	order.DeliveredAt = &now
	order.setStatus(StatusDelivered)
	return nil
}

// MarkCancelled transitions any non-terminal state -> CANCELLED.
func (order *Order) MarkCancelled() error {
	if !order.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	order.CancelledAt = &now
	order.setStatus(StatusCancelled)
	return nil
}

func (order *Order) setStatus(next Status) {
	order.Status = next
	order.UpdatedAt = time.Now().UTC()
}
