package order

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus(" in_transit ")
	require.NoError(t, err)
	require.Equal(t, StatusInTransit, got)

	_, err = ParseStatus("SHIPPED")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatusTransitions(t *testing.T) {
	require.True(t, StatusCreated.CanTransitionTo(StatusAssigned))
	require.True(t, StatusAssigned.CanTransitionTo(StatusInTransit))
	require.True(t, StatusInTransit.CanTransitionTo(StatusDelivered))

	// cancellation is allowed from every non-terminal state
	for _, s := range []Status{StatusCreated, StatusAssigned, StatusInTransit} {
		require.True(t, s.CanTransitionTo(StatusCancelled), "from %s", s)
	}

	require.False(t, StatusCreated.CanTransitionTo(StatusDelivered))
	require.False(t, StatusDelivered.CanTransitionTo(StatusCancelled))
	require.False(t, StatusCancelled.CanTransitionTo(StatusAssigned))
}
