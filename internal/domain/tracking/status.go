package tracking

import (
	"errors"
	"strings"
)

// Status is the lifecycle state of a tracking session.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusActive    Status = "ACTIVE"
	StatusArrived   Status = "ARRIVED"
	StatusCancelled Status = "CANCELLED"
)

var ErrInvalidStatus = errors.New("invalid tracking status")

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusIdle, StatusActive, StatusArrived, StatusCancelled:
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
	case StatusIdle:
		return next == StatusActive

	case StatusActive:
		return next == StatusArrived || next == StatusCancelled

	case StatusArrived, StatusCancelled:
		return false

	default:
		return false
	}
}

// Terminal indicates if the status is a terminal state. No ticks are
// processed and no notifications are emitted once a session is terminal.
func (status Status) Terminal() bool {
	return status == StatusArrived || status == StatusCancelled
}
