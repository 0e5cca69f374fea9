package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	simulate "courier-track/cmd/simulate"
	trackingservice "courier-track/cmd/tracking_service"
	"courier-track/internal/cli"
)

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, svcArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// run the service specified by the mode flag
	switch mode {

	case cli.ModeTracking:
		fs := flag.NewFlagSet(cli.ModeTracking, flag.ContinueOnError)
		maxConc := fs.Int("max-concurrent", 100, "Maximum number of concurrent HTTP requests to process")
		cli.AttachUsage(fs, cli.ModeTracking)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *maxConc < 1 {
			fmt.Fprintln(os.Stderr, "Error: --max-concurrent must be >= 1")
			fs.Usage()
			os.Exit(2)
		}
		if err := trackingservice.Run(ctx, *maxConc); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeSimulate:
		fs := flag.NewFlagSet(cli.ModeSimulate, flag.ContinueOnError)
		origin := fs.String("origin", "46.8139,-71.2082", "Courier origin as lat,lng")
		target := fs.String("target", "46.8000,-71.2000", "Dropoff target as lat,lng")
		seed := fs.Int64("seed", 0, "Deterministic RNG seed (0 = time-seeded)")
		intervalMS := fs.Int("interval-ms", 3000, "Tick interval in milliseconds")
		noJitter := fs.Bool("no-jitter", false, "Disable per-tick position jitter")
		maxTicks := fs.Int("max-ticks", 0, "Abort after this many ticks (0 = unbounded)")
		cli.AttachUsage(fs, cli.ModeSimulate)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *intervalMS < 1 {
			fmt.Fprintln(os.Stderr, "Error: --interval-ms must be >= 1")
			fs.Usage()
			os.Exit(2)
		}

		opts := simulate.Options{
			Origin:       *origin,
			Target:       *target,
			Seed:         *seed,
			TickInterval: time.Duration(*intervalMS) * time.Millisecond,
			NoJitter:     *noJitter,
			MaxTicks:     *maxTicks,
		}
		if err := simulate.Run(ctx, opts); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}
