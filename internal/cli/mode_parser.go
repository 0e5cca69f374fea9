package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeTracking = "tracking-service"
	ModeSimulate = "simulate"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeTracking, "tracking", "t":
		return ModeTracking, true
	case ModeSimulate, "sim", "s":
		return ModeSimulate, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `tracking-service --max-concurrent=100`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<service>")
	}

	if m, ok := isKnownMode(mode); ok {
		mode = m
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./courier-track --mode=<service> [flags]

Services (modes):
  tracking-service   HTTP/WS API for live courier tracking sessions
  simulate           Headless courier simulation printed to stdout

Examples:
  ./courier-track --mode=tracking-service --max-concurrent=100
  ./courier-track --mode=simulate --origin=46.8139,-71.2082 --target=46.8000,-71.2000 --seed=42`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./courier-track --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
