package tracking

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"courier-track/internal/domain/geo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingObserver counts callbacks and remembers snapshots.
type recordingObserver struct {
	mu        sync.Mutex
	updates   []Snapshot
	arrived   int
	cancelled int
}

func (obs *recordingObserver) OnUpdate(snap Snapshot) {
	obs.mu.Lock()
	obs.updates = append(obs.updates, snap)
	obs.mu.Unlock()
}

func (obs *recordingObserver) OnArrived() {
	obs.mu.Lock()
	obs.arrived++
	obs.mu.Unlock()
}

func (obs *recordingObserver) OnCancelled() {
	obs.mu.Lock()
	obs.cancelled++
	obs.mu.Unlock()
}

func (obs *recordingObserver) counts() (int, int, int) {
	obs.mu.Lock()
	defer obs.mu.Unlock()
	return len(obs.updates), obs.arrived, obs.cancelled
}

var (
	testOrigin = geo.Coordinate{Latitude: 46.8139, Longitude: -71.2082}
	testTarget = geo.Coordinate{Latitude: 46.8000, Longitude: -71.2000}
)

// startManual starts a session whose automatic ticker is effectively parked so
// tests can drive Tick() by hand.
func startManual(t *testing.T, seed int64, obs Observer) *Session {
	t.Helper()
	session, err := Start(testOrigin, testTarget, Options{
		TickInterval:  time.Hour,
		Rand:          rand.New(rand.NewSource(seed)),
		DisableJitter: true,
		Observer:      obs,
	})
	require.NoError(t, err)
	t.Cleanup(session.Cancel)
	return session
}

func TestStart(t *testing.T) {
	t.Run("valid inputs", func(t *testing.T) {
		session := startManual(t, 1, nil)
		require.NotEmpty(t, session.ID)
		require.Equal(t, StatusActive, session.State())
		require.Equal(t, testTarget, session.Target())
	})

	t.Run("initial ETA within bounds", func(t *testing.T) {
		for seed := int64(0); seed < 50; seed++ {
			session := startManual(t, seed, nil)
			snap := session.Snapshot()
			require.GreaterOrEqual(t, snap.ETAMinutes, 5.0)
			require.LessOrEqual(t, snap.ETAMinutes, 25.0)
			session.Cancel()
		}
	})

	t.Run("start position offset from origin", func(t *testing.T) {
		for seed := int64(0); seed < 50; seed++ {
			session := startManual(t, seed, nil)
			km := geo.DistanceKm(testOrigin, session.Snapshot().Position)
			require.Greater(t, km, 1.5)
			require.Less(t, km, 5.5)
			session.Cancel()
		}
	})

	t.Run("invalid target", func(t *testing.T) {
		_, err := Start(testOrigin, geo.Coordinate{Latitude: 200}, Options{})
		require.ErrorIs(t, err, ErrInvalidTarget)
	})

	t.Run("invalid origin", func(t *testing.T) {
		_, err := Start(geo.Coordinate{Longitude: -999}, testTarget, Options{})
		require.ErrorIs(t, err, ErrInvalidOrigin)
	})

	t.Run("negative tick interval", func(t *testing.T) {
		_, err := Start(testOrigin, testTarget, Options{TickInterval: -time.Second})
		require.ErrorIs(t, err, ErrInvalidTickInterval)
	})
}

func TestTickConvergence(t *testing.T) {
	obs := &recordingObserver{}
	session := startManual(t, 42, obs)

	ticks := 0
	for session.Tick() {
		ticks++
		require.Less(t, ticks, 10000, "session must reach the target")
	}

	require.Equal(t, StatusArrived, session.State())

	snap := session.Snapshot()
	require.True(t, snap.Position.Equal(testTarget), "final position snaps onto the target")
	require.Zero(t, snap.ETAMinutes)

	updates, arrived, cancelled := obs.counts()
	require.Positive(t, updates)
	require.Equal(t, 1, arrived)
	require.Zero(t, cancelled)

	// last update carries the arrival snapshot
	obs.mu.Lock()
	last := obs.updates[len(obs.updates)-1]
	obs.mu.Unlock()
	require.Equal(t, StatusArrived, last.State)
	require.True(t, last.Position.Equal(testTarget))
}

func TestTickAfterTerminalIsNoop(t *testing.T) {
	obs := &recordingObserver{}
	session := startManual(t, 7, obs)

	for session.Tick() {
	}
	require.Equal(t, StatusArrived, session.State())
	updatesBefore, _, _ := obs.counts()

	// a stale timer firing after arrival must not mutate or re-emit
	require.False(t, session.Tick())
	require.False(t, session.Tick())

	updatesAfter, arrived, cancelled := obs.counts()
	require.Equal(t, updatesBefore, updatesAfter)
	require.Equal(t, 1, arrived)
	require.Zero(t, cancelled)
}

func TestETADecrement(t *testing.T) {
	session := startManual(t, 3, nil)

	before := session.Snapshot().ETAMinutes
	require.True(t, session.Tick())
	after := session.Snapshot().ETAMinutes

	drop := before - after
	require.GreaterOrEqual(t, drop, 0.5)
	require.LessOrEqual(t, drop, 1.5)
}

func TestETAFloorsAtZero(t *testing.T) {
	session := startManual(t, 5, nil)

	for i := 0; i < 10000 && session.Tick(); i++ {
		require.GreaterOrEqual(t, session.Snapshot().ETAMinutes, 0.0)
	}
}

func TestCancel(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		obs := &recordingObserver{}
		session := startManual(t, 11, obs)

		session.Cancel()
		session.Cancel()
		session.Cancel()

		require.Equal(t, StatusCancelled, session.State())
		_, arrived, cancelled := obs.counts()
		require.Zero(t, arrived)
		require.Equal(t, 1, cancelled)
	})

	t.Run("no ticks after cancel", func(t *testing.T) {
		obs := &recordingObserver{}
		session := startManual(t, 12, obs)

		session.Cancel()
		require.False(t, session.Tick())

		updates, _, _ := obs.counts()
		require.Zero(t, updates)
	})

	t.Run("cancel after arrival emits nothing", func(t *testing.T) {
		obs := &recordingObserver{}
		session := startManual(t, 13, obs)

		for session.Tick() {
		}
		session.Cancel() // owner teardown path

		require.Equal(t, StatusArrived, session.State())
		_, arrived, cancelled := obs.counts()
		require.Equal(t, 1, arrived)
		require.Zero(t, cancelled)
	})

	t.Run("releases the done channel", func(t *testing.T) {
		session := startManual(t, 14, nil)
		session.Cancel()

		select {
		case <-session.Done():
		case <-time.After(time.Second):
			t.Fatal("Done must be closed after Cancel")
		}
	})
}

func TestDeterministicWithSeed(t *testing.T) {
	run := func(seed int64) []Snapshot {
		session := startManual(t, seed, nil)
		var snaps []Snapshot
		snaps = append(snaps, session.Snapshot())
		for session.Tick() {
			snaps = append(snaps, session.Snapshot())
		}
		return snaps
	}

	a := run(99)
	b := run(99)
	require.Equal(t, a, b, "same seed must replay the same trajectory")

	c := run(100)
	require.NotEqual(t, a[0].Position, c[0].Position, "different seeds diverge")
}

func TestObserverMayCancelFromCallback(t *testing.T) {
	session := startManual(t, 21, nil)

	cancelling := &cancellingObserver{}
	session.SetObserver(cancelling)
	cancelling.session = session

	session.Tick() // observer cancels from inside OnUpdate
	require.Equal(t, StatusCancelled, session.State())
	require.False(t, session.Tick(), "next tick reports inactive")
	require.Equal(t, 1, cancelling.cancelled)
}

// cancellingObserver cancels its own session on the first update.
type cancellingObserver struct {
	session   *Session
	cancelled int
}

func (obs *cancellingObserver) OnUpdate(Snapshot) { obs.session.Cancel() }
func (obs *cancellingObserver) OnArrived()        {}
func (obs *cancellingObserver) OnCancelled()      { obs.cancelled++ }

func TestRunTicksAutomatically(t *testing.T) {
	obs := &recordingObserver{}
	session, err := Start(testOrigin, testTarget, Options{
		TickInterval:  5 * time.Millisecond,
		Rand:          rand.New(rand.NewSource(31)),
		DisableJitter: true,
		Observer:      obs,
	})
	require.NoError(t, err)
	defer session.Cancel()

	require.Eventually(t, func() bool {
		updates, _, _ := obs.counts()
		return updates >= 3
	}, 5*time.Second, 10*time.Millisecond, "the ticker must drive updates without manual Tick calls")
}
