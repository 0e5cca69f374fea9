package contracts

// Exchanges
const (
	ExchangeTrackingTopic  = "tracking_topic"
	ExchangeOrderTopic     = "order_topic"
	ExchangePositionFanout = "position_fanout"
)

// Queues
const (
	QueueTrackingStatus    = "tracking_status"
	QueueOrderEvents       = "order_events_tracking"
	QueuePositionSnapshots = "position_snapshots"
)

// Routing patterns
const (
	RouteTrackingStatusPrefix = "tracking.status." // {status}
	RouteOrderEventPrefix     = "order.event."     // {event_type}
)

// Order event types consumed by the tracking service.
const (
	OrderEventCancelled = "cancelled"
)
