package ports

import (
	"context"
	"time"

	"courier-track/internal/domain/geo"
	"courier-track/internal/domain/order"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// WithinReadTx runs fn in a read-only transaction; writes inside fn fail.
	WithinReadTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository defines the methods for reading and updating delivery orders.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
	UpdateStatus(ctx context.Context, id string, status order.Status, ts time.Time) error
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error
	MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) error
	CountByStatus(ctx context.Context) (map[order.Status]int, error)
	CountDeliveredBetween(ctx context.Context, from, to time.Time) (int, error)
}

// RouteProvider is the external directions collaborator. FetchRoute returns
// an encoded polyline for origin->destination or an error wrapping
// ErrRouteProvider. Callers must treat any error as non-fatal and fall back
// to the straight two-point route.
type RouteProvider interface {
	FetchRoute(ctx context.Context, origin, destination geo.Coordinate) (string, error)
}
