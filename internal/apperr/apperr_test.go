package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindAndCodeExtraction(t *testing.T) {
	err := E(Policy, CodeNoAvailableCredits, "no available credits")
	require.Equal(t, Policy, KindOf(err))
	require.Equal(t, CodeNoAvailableCredits, CodeOf(err))
	require.True(t, IsCode(err, CodeNoAvailableCredits))
	require.False(t, IsCode(err, CodeSlotFull))
}

func TestExtractionThroughWrapping(t *testing.T) {
	inner := E(Conflict, CodeAlreadyBooked, "already booked")
	wrapped := fmt.Errorf("booking failed: %w", inner)
	require.Equal(t, Conflict, KindOf(wrapped))
	require.Equal(t, CodeAlreadyBooked, CodeOf(wrapped))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("deadlock found")
	err := Wrap(Conflict, CodeRetryConflict, "transaction conflict", cause)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "transaction conflict", err.Error())
}

func TestUnknownErrorHasNoKind(t *testing.T) {
	require.Equal(t, Kind(0), KindOf(errors.New("plain")))
	require.Equal(t, Code(""), CodeOf(nil))
}
