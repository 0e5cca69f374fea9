package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courier-track/internal/domain/order"
	"courier-track/internal/ports"

	"github.com/jackc/pgx/v5"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderRepo reads and updates delivery orders using pgx and plain SQL.
type OrderRepo struct{}

// NewOrderRepo constructs a new OrderRepo.
func NewOrderRepo() ports.OrderRepository {
	return &OrderRepo{}
}

// GetByID loads a single order with its pickup and dropoff coordinates.
func (repo *OrderRepo) GetByID(ctx context.Context, id string) (*order.Order, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var o order.Order
	var status string
	err = tx.QueryRow(ctx, `
		SELECT id, created_at, updated_at,
		       customer_id, courier_id,
		       pickup_address, pickup_lat, pickup_lng,
		       dropoff_address, dropoff_lat, dropoff_lng,
		       status, delivered_at, cancelled_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&o.ID, &o.CreatedAt, &o.UpdatedAt,
		&o.CustomerID, &o.CourierID,
		&o.PickupAddress, &o.Pickup.Latitude, &o.Pickup.Longitude,
		&o.DropoffAddress, &o.Dropoff.Latitude, &o.Dropoff.Longitude,
		&status, &o.DeliveredAt, &o.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	o.Status, err = order.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("order %s has invalid status %q: %w", id, status, err)
	}

	return &o, nil
}

// UpdateStatus persists a status change.
func (repo *OrderRepo) UpdateStatus(ctx context.Context, id string, status order.Status, ts time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, status.String(), ts)
	if err != nil {
		return fmt.Errorf("update order %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// MarkCancelled records an upstream cancellation: status CANCELLED plus the
// cancellation timestamp. Terminal orders are left untouched.
func (repo *OrderRepo) MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, cancelled_at = $3, updated_at = $3
		WHERE id = $1 AND status NOT IN ($4, $5)
	`, id, order.StatusCancelled.String(), cancelledAt,
		order.StatusDelivered.String(), order.StatusCancelled.String())
	if err != nil {
		return fmt.Errorf("mark order %s cancelled: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// CountByStatus returns the number of orders per status.
func (repo *OrderRepo) CountByStatus(ctx context.Context) (map[order.Status]int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT status, COUNT(*)
		FROM orders
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[order.Status]int)
	for rows.Next() {
		var raw string
		var n int
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, fmt.Errorf("count orders by status: %w", err)
		}
		status, err := order.ParseStatus(raw)
		if err != nil {
			// skip rows with unknown statuses rather than failing the overview
			continue
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}

	return counts, nil
}

// CountDeliveredBetween counts orders delivered inside [from, to).
func (repo *OrderRepo) CountDeliveredBetween(ctx context.Context, from, to time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM orders
		WHERE status = $1 AND delivered_at >= $2 AND delivered_at < $3
	`, order.StatusDelivered.String(), from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count delivered orders: %w", err)
	}

	return n, nil
}

// MarkDelivered records arrival: status DELIVERED plus the delivery timestamp.
func (repo *OrderRepo) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, delivered_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4
	`, id, order.StatusDelivered.String(), deliveredAt, order.StatusInTransit.String())
	if err != nil {
		return fmt.Errorf("mark order %s delivered: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}
