package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	t.Run("mode flag", func(t *testing.T) {
		mode, rest, err := ParseMode([]string{"--mode=tracking-service", "--max-concurrent=50"})
		require.NoError(t, err)
		require.Equal(t, ModeTracking, mode)
		require.Equal(t, []string{"--max-concurrent=50"}, rest)
	})

	t.Run("subcommand shorthand", func(t *testing.T) {
		mode, rest, err := ParseMode([]string{"simulate", "--seed=42"})
		require.NoError(t, err)
		require.Equal(t, ModeSimulate, mode)
		require.Equal(t, []string{"--seed=42"}, rest)
	})

	t.Run("aliases", func(t *testing.T) {
		for in, want := range map[string]string{
			"tracking": ModeTracking,
			"t":        ModeTracking,
			"sim":      ModeSimulate,
			"s":        ModeSimulate,
		} {
			mode, _, err := ParseMode([]string{in})
			require.NoError(t, err, "alias %q", in)
			require.Equal(t, want, mode)
		}
	})

	t.Run("no mode", func(t *testing.T) {
		_, _, err := ParseMode([]string{"--max-concurrent=50"})
		require.Error(t, err)
	})
}
