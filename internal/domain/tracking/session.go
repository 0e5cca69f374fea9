package tracking

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"courier-track/internal/domain/geo"
)

var (
	ErrInvalidTarget       = errors.New("invalid target coordinate")
	ErrInvalidOrigin       = errors.New("invalid origin coordinate")
	ErrInvalidTickInterval = errors.New("tick interval must be positive")
)

// Simulation constants. The initial ETA is clamped to [5,25] minutes and
// decremented by [0.5,1.5] per tick independently of the remaining distance,
// so ETA and position may disagree for far targets.
const (
	DefaultTickInterval = 3000 * time.Millisecond

	minStartOffsetKm = 2.0
	maxStartOffsetKm = 5.0

	minInitialETAMin = 5.0
	maxInitialETAMin = 25.0

	minStepDeg = 0.0008
	maxStepDeg = 0.0012

	minETADecrementMin = 0.5
	maxETADecrementMin = 1.5

	defaultJitterDeg = 0.0002
)

// Snapshot is what the observer receives on every tick.
type Snapshot struct {
	Position   geo.Coordinate
	ETAMinutes float64
	State      Status
}

// Observer receives session updates. All callbacks run synchronously on the
// tick/cancel path (never deferred) and outside the session lock, so an
// observer may call Cancel from inside a callback. A session has a single
// observer; the controller layer owns fan-out.
type Observer interface {
	OnUpdate(Snapshot)
	OnArrived()
	OnCancelled()
}

// Options tunes a session. The zero value yields production behavior.
type Options struct {
	TickInterval      time.Duration // default 3000ms
	Rand              *rand.Rand    // seedable source; default time-seeded
	JitterDeg         float64       // per-axis step jitter; default 0.0002
	DisableJitter     bool          // test seam: force jitter off
	ArrivalEpsilonDeg float64       // default geo.DefaultArrivalEpsilonDeg
	Observer          Observer      // may also be set later via SetObserver
}

// Session simulates a courier moving from a synthetic start position toward
// a target, recomputing ETA on a fixed tick. The timer is owned exclusively
// by the session: it is acquired in Start and released on arrival,
// cancellation, or owner teardown, whichever comes first.
type Session struct {
	ID     string
	target geo.Coordinate

	mu         sync.Mutex
	state      Status
	current    geo.Coordinate
	etaMinutes float64
	observer   Observer

	interval  time.Duration
	rng       *rand.Rand
	jitterDeg float64
	epsilon   float64

	stop     chan struct{}
	stopOnce sync.Once
}

// Start validates the inputs, synthesizes a start position 2-5 km from
// origin at a random bearing, computes the initial ETA, transitions the
// session to ACTIVE and schedules the repeating tick. On any error no
// session is created and no timer is leaked.
func Start(origin, target geo.Coordinate, opts Options) (*Session, error) {
	if err := target.Validate(); err != nil {
		return nil, ErrInvalidTarget
	}
	if err := origin.Validate(); err != nil {
		return nil, ErrInvalidOrigin
	}

	interval := opts.TickInterval
	if interval == 0 {
		interval = DefaultTickInterval
	}
	if interval < 0 {
		return nil, ErrInvalidTickInterval
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	jitter := opts.JitterDeg
	if jitter == 0 && !opts.DisableJitter {
		jitter = defaultJitterDeg
	}
	if opts.DisableJitter {
		jitter = 0
	}

	epsilon := opts.ArrivalEpsilonDeg
	if epsilon == 0 {
		epsilon = geo.DefaultArrivalEpsilonDeg
	}

	// courier starts a few km away from the pickup origin
	offsetKm := uniform(rng, minStartOffsetKm, maxStartOffsetKm)
	bearing := rng.Float64() * 2 * math.Pi
	start := geo.OffsetByKm(origin, offsetKm, bearing)

	eta := geo.DistanceKm(start, target)*2 + uniform(rng, 0, 5)
	eta = clamp(eta, minInitialETAMin, maxInitialETAMin)

	session := &Session{
		ID:         uuid.NewString(),
		target:     target,
		state:      StatusActive,
		current:    start,
		etaMinutes: eta,
		observer:   opts.Observer,
		interval:   interval,
		rng:        rng,
		jitterDeg:  jitter,
		epsilon:    epsilon,
		stop:       make(chan struct{}),
	}

	go session.run()

	return session, nil
}

// run drives the repeating tick until the session is released.
func (session *Session) run() {
	ticker := time.NewTicker(session.interval)
	defer ticker.Stop()

	for {
		select {
		case <-session.stop:
			return
		case <-ticker.C:
			if !session.Tick() {
				return
			}
		}
	}
}

// Tick advances the simulation by one step and reports whether the session
// is still active. A tick that fires after a terminal transition (a stale
// timer racing a cancellation) is a strict no-op: state is checked first and
// nothing is mutated or re-emitted.
func (session *Session) Tick() bool {
	session.mu.Lock()
	if session.state != StatusActive {
		session.mu.Unlock()
		return false
	}

	dLat := session.target.Latitude - session.current.Latitude
	dLon := session.target.Longitude - session.current.Longitude

	if math.Hypot(dLat, dLon) <= session.epsilon {
		session.current = session.target
		session.etaMinutes = 0
		session.state = StatusArrived
		snapshot := session.snapshotLocked()
		observer := session.observer
		session.mu.Unlock()

		session.release()
		if observer != nil {
			observer.OnUpdate(snapshot)
			observer.OnArrived()
		}
		return false
	}

	step := uniform(session.rng, minStepDeg, maxStepDeg)
	session.current = geo.StepToward(session.current, session.target, step, session.jitterDeg, session.epsilon, session.rng)

	session.etaMinutes -= uniform(session.rng, minETADecrementMin, maxETADecrementMin)
	if session.etaMinutes < 0 {
		session.etaMinutes = 0
	}

	snapshot := session.snapshotLocked()
	observer := session.observer
	session.mu.Unlock()

	if observer != nil {
		observer.OnUpdate(snapshot)
	}
	return true
}

// Cancel releases the timer and transitions to CANCELLED unless the session
// is already terminal. It is idempotent and must also be called by the
// owning context on teardown even after arrival; in that case it only
// re-releases the (already released) timer and emits nothing.
func (session *Session) Cancel() {
	session.mu.Lock()
	if session.state.Terminal() {
		session.mu.Unlock()
		session.release()
		return
	}
	session.state = StatusCancelled
	observer := session.observer
	session.mu.Unlock()

	session.release()
	if observer != nil {
		observer.OnCancelled()
	}
}

// SetObserver replaces the registered observer. Pass nil to detach.
func (session *Session) SetObserver(observer Observer) {
	session.mu.Lock()
	session.observer = observer
	session.mu.Unlock()
}

// Snapshot returns the current (position, eta, state) triple.
func (session *Session) Snapshot() Snapshot {
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.snapshotLocked()
}

// State returns the current lifecycle state.
func (session *Session) State() Status {
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.state
}

// Target returns the target coordinate.
func (session *Session) Target() geo.Coordinate {
	return session.target
}

// Done is closed once the session timer has been released (terminal state or
// teardown).
func (session *Session) Done() <-chan struct{} {
	return session.stop
}

func (session *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Position:   session.current,
		ETAMinutes: session.etaMinutes,
		State:      session.state,
	}
}

// release stops the tick loop. Safe to call any number of times.
func (session *Session) release() {
	session.stopOnce.Do(func() {
		close(session.stop)
	})
}

func uniform(rng *rand.Rand, min, max float64) float64 {
	return min + rng.Float64()*(max-min)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
