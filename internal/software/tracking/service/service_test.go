package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courier-track/internal/domain/geo"
	"courier-track/internal/domain/order"
	"courier-track/internal/domain/tracking"
	"courier-track/internal/general/contracts"
	"courier-track/internal/general/jwt"
	"courier-track/internal/general/logger"
	"courier-track/internal/general/postgres"
	"courier-track/internal/general/rabbitmq"
	"courier-track/internal/general/websocket"
	"courier-track/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ----- fakes -----

// fakeUoW runs the callback directly. When entered/gate are set, WithinTx
// signals each entry and then blocks until the gate closes, so tests can hold
// callers inside the transaction window.
type fakeUoW struct {
	entered chan struct{}
	gate    chan struct{}
}

func (u *fakeUoW) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if u.entered != nil {
		u.entered <- struct{}{}
	}
	if u.gate != nil {
		<-u.gate
	}
	return fn(ctx)
}

func (u *fakeUoW) WithinReadTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeOrderRepo struct {
	mu           sync.Mutex
	orders       map[string]*order.Order
	statusWrites []order.Status
}

func newFakeRepo(orders ...*order.Order) *fakeOrderRepo {
	repo := &fakeOrderRepo{orders: make(map[string]*order.Order)}
	for _, o := range orders {
		repo.orders[o.ID] = o
	}
	return repo
}

func (r *fakeOrderRepo) get(id string) *order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.orders[id]
	return &cp
}

func (r *fakeOrderRepo) writes() []order.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]order.Status(nil), r.statusWrites...)
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, postgres.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id string, status order.Status, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return postgres.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = ts
	r.statusWrites = append(r.statusWrites, status)
	return nil
}

func (r *fakeOrderRepo) MarkDelivered(_ context.Context, id string, deliveredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != order.StatusInTransit {
		return postgres.ErrOrderNotFound
	}
	o.Status = order.StatusDelivered
	o.DeliveredAt = &deliveredAt
	o.UpdatedAt = deliveredAt
	r.statusWrites = append(r.statusWrites, order.StatusDelivered)
	return nil
}

func (r *fakeOrderRepo) MarkCancelled(_ context.Context, id string, cancelledAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status.Terminal() {
		return postgres.ErrOrderNotFound
	}
	o.Status = order.StatusCancelled
	o.CancelledAt = &cancelledAt
	o.UpdatedAt = cancelledAt
	r.statusWrites = append(r.statusWrites, order.StatusCancelled)
	return nil
}

func (r *fakeOrderRepo) CountByStatus(_ context.Context) (map[order.Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[order.Status]int)
	for _, o := range r.orders {
		counts[o.Status]++
	}
	return counts, nil
}

func (r *fakeOrderRepo) CountDeliveredBetween(_ context.Context, from, to time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.orders {
		if o.DeliveredAt != nil && !o.DeliveredAt.Before(from) && o.DeliveredAt.Before(to) {
			n++
		}
	}
	return n, nil
}

type fakeRoutes struct {
	encoded string
	err     error
}

func (f fakeRoutes) FetchRoute(context.Context, geo.Coordinate, geo.Coordinate) (string, error) {
	return f.encoded, f.err
}

// ----- helpers -----

func trackableOrder(id string) *order.Order {
	courier := "courier-1"
	return &order.Order{
		ID:         id,
		CustomerID: "cust-1",
		CourierID:  &courier,
		Pickup:     geo.Coordinate{Latitude: 46.8139, Longitude: -71.2082},
		Dropoff:    geo.Coordinate{Latitude: 46.8000, Longitude: -71.2000},
		Status:     order.StatusAssigned,
	}
}

// newTestService builds a trackingService on fakes. The broker client is a
// zero-value Client, so publishes fail fast and are logged, never sent. The
// hour-long tick interval parks every session; tests drive Tick by hand.
func newTestService(t *testing.T, repo *fakeOrderRepo, uow ports.UnitOfWork) *trackingService {
	t.Helper()
	log := logger.New("tracking-service-test")
	svc := NewTrackingService(
		log,
		SimulationConfig{
			TickInterval:      time.Hour,
			ArrivalEpsilonDeg: 0.001,
			FallbackOrigin:    geo.Coordinate{Latitude: 46.8139, Longitude: -71.2082},
		},
		uow,
		repo,
		fakeRoutes{err: errors.New("provider down")},
		rabbitmq.NewMQPublisher(&rabbitmq.Client{}),
		&rabbitmq.Client{},
		websocket.NewWebSocket(log, jwt.NewManager("test-secret", time.Hour)),
	).(*trackingService)
	t.Cleanup(func() { svc.Shutdown(context.Background()) })
	return svc
}

func startInput(orderID string, seed int64) ports.StartTrackingInput {
	return ports.StartTrackingInput{OrderID: orderID, Seed: &seed}
}

// ----- tests -----

func TestStartTrackingOneSessionPerOrder(t *testing.T) {
	repo := newFakeRepo(trackableOrder("order-1"))
	uow := &fakeUoW{entered: make(chan struct{}, 2), gate: make(chan struct{})}
	svc := newTestService(t, repo, uow)

	type outcome struct {
		res ports.StartTrackingResult
		err error
	}
	results := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			res, err := svc.StartTracking(context.Background(), startInput("order-1", 42))
			results <- outcome{res: res, err: err}
		}()
	}

	// exactly one caller may reach the order-loading transaction; the other
	// must park on the reservation
	<-uow.entered
	select {
	case <-uow.entered:
		t.Fatal("both callers entered the transaction window")
	case <-time.After(100 * time.Millisecond):
	}
	close(uow.gate)

	first, second := <-results, <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	require.Equal(t, first.res.SessionID, second.res.SessionID)
	require.NotEqual(t, first.res.AlreadyActive, second.res.AlreadyActive,
		"exactly one caller should be handed the pre-existing session")

	svc.mu.Lock()
	require.Len(t, svc.sessions, 1)
	svc.mu.Unlock()

	// the order moved to IN_TRANSIT exactly once
	require.Equal(t, []order.Status{order.StatusInTransit}, repo.writes())
}

func TestStartTrackingDuplicateReturnsActiveSession(t *testing.T) {
	repo := newFakeRepo(trackableOrder("order-2"))
	svc := newTestService(t, repo, &fakeUoW{})

	first, err := svc.StartTracking(context.Background(), startInput("order-2", 7))
	require.NoError(t, err)
	require.False(t, first.AlreadyActive)

	second, err := svc.StartTracking(context.Background(), startInput("order-2", 7))
	require.NoError(t, err)
	require.True(t, second.AlreadyActive)
	require.Equal(t, first.SessionID, second.SessionID)
	require.Equal(t, first.Route, second.Route)
	require.Equal(t, first.EncodedRoute, second.EncodedRoute)

	require.Equal(t, []order.Status{order.StatusInTransit}, repo.writes())
}

func TestStartTrackingFailureReleasesReservation(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), &fakeUoW{})

	_, err := svc.StartTracking(context.Background(), startInput("missing", 1))
	require.ErrorIs(t, err, postgres.ErrOrderNotFound)

	// a failed start must not leave a reservation that blocks retries
	_, err = svc.StartTracking(context.Background(), startInput("missing", 1))
	require.ErrorIs(t, err, postgres.ErrOrderNotFound)
}

func TestStartTrackingRejectsUntrackableOrder(t *testing.T) {
	o := trackableOrder("order-3")
	o.Status = order.StatusCreated
	svc := newTestService(t, newFakeRepo(o), &fakeUoW{})

	_, err := svc.StartTracking(context.Background(), startInput("order-3", 1))
	require.ErrorIs(t, err, ErrOrderNotTrackable)
}

func TestArrivalDeliversOrder(t *testing.T) {
	repo := newFakeRepo(trackableOrder("order-4"))
	svc := newTestService(t, repo, &fakeUoW{})

	_, err := svc.StartTracking(context.Background(), startInput("order-4", 11))
	require.NoError(t, err)

	entry, ok := svc.lookupSession("order-4")
	require.True(t, ok)

	for i := 0; i < 10000 && entry.session.State() == tracking.StatusActive; i++ {
		entry.session.Tick()
	}
	require.Equal(t, tracking.StatusArrived, entry.session.State())

	o := repo.get("order-4")
	require.Equal(t, order.StatusDelivered, o.Status)
	require.NotNil(t, o.DeliveredAt)

	_, still := svc.lookupSession("order-4")
	require.False(t, still, "arrival must clear the registry entry")
}

func TestOrderCancelledEventStopsSessionAndOrder(t *testing.T) {
	repo := newFakeRepo(trackableOrder("order-5"))
	svc := newTestService(t, repo, &fakeUoW{})

	_, err := svc.StartTracking(context.Background(), startInput("order-5", 3))
	require.NoError(t, err)

	entry, ok := svc.lookupSession("order-5")
	require.True(t, ok)

	body, err := json.Marshal(contracts.OrderEventMessage{
		OrderID:   "order-5",
		EventType: contracts.OrderEventCancelled,
	})
	require.NoError(t, err)
	delivery := amqp.Delivery{Body: body, RoutingKey: "order.event.cancelled"}

	require.NoError(t, svc.handleOrderEvent(context.Background(), delivery))
	require.Equal(t, tracking.StatusCancelled, entry.session.State())

	o := repo.get("order-5")
	require.Equal(t, order.StatusCancelled, o.Status)
	require.NotNil(t, o.CancelledAt)

	_, still := svc.lookupSession("order-5")
	require.False(t, still)

	// a redelivery is harmless: the order is terminal, nothing is rewritten
	before := repo.writes()
	require.NoError(t, svc.handleOrderEvent(context.Background(), delivery))
	require.Equal(t, before, repo.writes())
}

func TestStopTrackingIsIdempotent(t *testing.T) {
	repo := newFakeRepo(trackableOrder("order-6"))
	svc := newTestService(t, repo, &fakeUoW{})

	res, err := svc.StopTracking(context.Background(), "order-6")
	require.NoError(t, err)
	require.Equal(t, "NOT_TRACKING", res.Status)

	started, err := svc.StartTracking(context.Background(), startInput("order-6", 5))
	require.NoError(t, err)

	res, err = svc.StopTracking(context.Background(), "order-6")
	require.NoError(t, err)
	require.Equal(t, tracking.StatusCancelled.String(), res.Status)
	require.Equal(t, started.SessionID, res.SessionID)

	res, err = svc.StopTracking(context.Background(), "order-6")
	require.NoError(t, err)
	require.Equal(t, "NOT_TRACKING", res.Status)
}
