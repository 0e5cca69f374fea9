package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"courier-track/internal/domain/geo"
	"courier-track/internal/domain/tracking"
)

// Options configures a headless simulation run.
type Options struct {
	Origin       string // "lat,lng"
	Target       string // "lat,lng"
	Seed         int64  // 0 means time-seeded
	TickInterval time.Duration
	NoJitter     bool
	MaxTicks     int // safety bound; 0 means no bound
}

// parseCoord parses "lat,lng" into a Coordinate.
func parseCoord(input string) (geo.Coordinate, error) {
	parts := strings.Split(input, ",")
	if len(parts) != 2 {
		return geo.Coordinate{}, fmt.Errorf("invalid coordinate: %s", input)
	}

	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid lat/lng: %s", input)
	}

	return geo.NewCoordinate(lat, lng)
}

// consoleObserver prints session progress to stdout.
type consoleObserver struct {
	target geo.Coordinate
	ticks  int
	done   chan tracking.Status
}

func (obs *consoleObserver) OnUpdate(snap tracking.Snapshot) {
	obs.ticks++
	remaining := geo.DistanceKm(snap.Position, obs.target)
	fmt.Printf("tick=%-4d pos=%s eta=%.1fmin remaining=%.3fkm state=%s\n",
		obs.ticks, snap.Position, snap.ETAMinutes, remaining, snap.State)
}

func (obs *consoleObserver) OnArrived() {
	obs.done <- tracking.StatusArrived
}

func (obs *consoleObserver) OnCancelled() {
	obs.done <- tracking.StatusCancelled
}

// Run drives one courier simulation to a terminal state and prints every tick.
func Run(ctx context.Context, opts Options) error {
	origin, err := parseCoord(opts.Origin)
	if err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	target, err := parseCoord(opts.Target)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}

	sessionOpts := tracking.Options{
		TickInterval:  opts.TickInterval,
		DisableJitter: opts.NoJitter,
	}
	if opts.Seed != 0 {
		sessionOpts.Rand = rand.New(rand.NewSource(opts.Seed))
	}

	obs := &consoleObserver{target: target, done: make(chan tracking.Status, 1)}
	sessionOpts.Observer = obs

	session, err := tracking.Start(origin, target, sessionOpts)
	if err != nil {
		return err
	}
	defer session.Cancel()

	start := session.Snapshot()
	fmt.Printf("session %s: start=%s target=%s eta=%.1fmin distance=%.3fkm\n",
		session.ID, start.Position, target, start.ETAMinutes, geo.DistanceKm(start.Position, target))

	var deadline <-chan time.Time
	if opts.MaxTicks > 0 {
		interval := opts.TickInterval
		if interval == 0 {
			interval = tracking.DefaultTickInterval
		}
		deadline = time.After(time.Duration(opts.MaxTicks+1) * interval)
	}

	select {
	case status := <-obs.done:
		fmt.Printf("session %s finished: %s after %d ticks\n", session.ID, status, obs.ticks)
		return nil
	case <-deadline:
		return fmt.Errorf("no terminal state after %d ticks", opts.MaxTicks)
	case <-ctx.Done():
		fmt.Printf("session %s interrupted after %d ticks\n", session.ID, obs.ticks)
		return nil
	}
}
