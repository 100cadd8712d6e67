package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDateOfTruncatesToUTCMidnight(t *testing.T) {
	instant := time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC)
	require.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), DateOf(instant))
}

func TestDateOfNormalizesZone(t *testing.T) {
	// 01:30 on the 15th in UTC+3 is still the 14th in UTC.
	zone := time.FixedZone("plus3", 3*3600)
	instant := time.Date(2025, 3, 15, 1, 30, 0, 0, zone)
	require.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), DateOf(instant))
}

func TestTodayUsesTheClock(t *testing.T) {
	clk := Fixed{T: time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)}
	require.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Today(clk))
}

func TestISOWeekYearBoundary(t *testing.T) {
	// 2024-12-30 belongs to ISO week 1 of 2025.
	y, w := ISOWeek(time.Date(2024, 12, 30, 10, 0, 0, 0, time.UTC))
	require.Equal(t, 2025, y)
	require.Equal(t, 1, w)

	y, w = ISOWeek(time.Date(2025, 12, 28, 10, 0, 0, 0, time.UTC))
	require.Equal(t, 2025, y)
	require.Equal(t, 52, w)
}
