package service

import (
	"errors"
	"sync"
	"time"

	"courier-track/internal/domain/geo"
	"courier-track/internal/domain/tracking"
	"courier-track/internal/general/logger"
	"courier-track/internal/general/rabbitmq"
	"courier-track/internal/general/websocket"
	"courier-track/internal/ports"
)

var (
	ErrOrderIDRequired   = errors.New("order id is required")
	ErrOrderNotTrackable = errors.New("order is not in a trackable state")
)

// SimulationConfig carries the tunables for courier simulation sessions.
type SimulationConfig struct {
	TickInterval      time.Duration
	ArrivalEpsilonDeg float64
	JitterDeg         float64
	FallbackOrigin    geo.Coordinate
}

// activeSession ties a running simulation to the order and customer it
// belongs to. An entry is inserted as a reservation before the order is
// loaded; session, customerID and result are filled in and ready is closed
// once the start settles. err carries the failure when the reservation is
// abandoned.
type activeSession struct {
	session    *tracking.Session
	customerID string
	result     ports.StartTrackingResult
	err        error
	ready      chan struct{}
}

// trackingService owns the registry of running courier simulations and fans
// session events out to RabbitMQ and customer WebSockets.
type trackingService struct {
	logger    *logger.Logger
	cfg       SimulationConfig
	uow       ports.UnitOfWork
	orderRepo ports.OrderRepository
	routes    ports.RouteProvider
	pub       *rabbitmq.MQPublisher
	rabbitmq  *rabbitmq.Client
	websocket *websocket.WebSocket

	mu       sync.Mutex
	sessions map[string]*activeSession // key: orderID
}

// NewTrackingService creates a new instance of the TrackingService with the provided dependencies.
func NewTrackingService(
	logger *logger.Logger,
	cfg SimulationConfig,
	uow ports.UnitOfWork,
	orderRepo ports.OrderRepository,
	routes ports.RouteProvider,
	pub *rabbitmq.MQPublisher,
	rabbitmq *rabbitmq.Client,
	ws *websocket.WebSocket,
) ports.TrackingService {
	return &trackingService{
		logger:    logger,
		cfg:       cfg,
		uow:       uow,
		orderRepo: orderRepo,
		routes:    routes,
		pub:       pub,
		rabbitmq:  rabbitmq,
		websocket: ws,
		sessions:  make(map[string]*activeSession),
	}
}
