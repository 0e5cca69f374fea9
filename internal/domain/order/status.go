package order

import (
	"errors"
	"strings"
)

// Status is a delivery order status as stored in the `orders` table.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusAssigned  Status = "ASSIGNED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var ErrInvalidStatus = errors.New("invalid order status")

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed order status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusCreated, StatusAssigned, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo specifies if the status can transition to the next status.
func (status Status) CanTransitionTo(next Status) bool {
	switch status {
	case StatusCreated:
		return next == StatusAssigned || next == StatusCancelled

	case StatusAssigned:
		return next == StatusInTransit || next == StatusCancelled

	case StatusInTransit:
		return next == StatusDelivered || next == StatusCancelled

	case StatusDelivered, StatusCancelled:
		return false

	default:
		return false
	}
}

// Terminal indicates if the status is in a terminal state.
func (status Status) Terminal() bool {
	return status == StatusDelivered || status == StatusCancelled
}
