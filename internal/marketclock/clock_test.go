package marketclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nseSchedule(t *testing.T) Schedule {
	t.Helper()
	s, err := ForMarket("in")
	require.NoError(t, err)
	return s
}

func at(t *testing.T, loc *time.Location, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, loc)
}

func TestSchedule_ClosedOnWeekend(t *testing.T) {
	s := nseSchedule(t)

	// 2026-02-07 is a Saturday
	saturday := at(t, s.Location, 2026, time.February, 7, 10, 0)
	require.Equal(t, time.Saturday, saturday.Weekday())
	assert.False(t, s.IsOpen(saturday))

	next := s.NextOpen(saturday)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 15, next.Minute())
	assert.Equal(t, 9, next.Day())
}

func TestSchedule_InclusiveBounds(t *testing.T) {
	s := nseSchedule(t)

	// 2026-02-03 is a Tuesday
	tuesday := func(hour, min int) time.Time { return at(t, s.Location, 2026, time.February, 3, hour, min) }
	require.Equal(t, time.Tuesday, tuesday(9, 15).Weekday())

	assert.True(t, s.IsOpen(tuesday(9, 15)), "open bound is inclusive")
	assert.True(t, s.IsOpen(tuesday(15, 30)), "close bound is inclusive")
	assert.False(t, s.IsOpen(tuesday(9, 14)))
	assert.False(t, s.IsOpen(tuesday(15, 31)))
	assert.True(t, s.IsOpen(tuesday(12, 0)))
}

func TestSchedule_NextOpenSameDayBeforeOpen(t *testing.T) {
	s := nseSchedule(t)

	earlyTuesday := at(t, s.Location, 2026, time.February, 3, 7, 0)
	next := s.NextOpen(earlyTuesday)
	assert.Equal(t, earlyTuesday.Day(), next.Day())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 15, next.Minute())
}

func TestSchedule_NextOpenAfterCloseRollsForward(t *testing.T) {
	s := nseSchedule(t)

	// Friday evening rolls over the weekend
	fridayEvening := at(t, s.Location, 2026, time.February, 6, 18, 0)
	require.Equal(t, time.Friday, fridayEvening.Weekday())
	next := s.NextOpen(fridayEvening)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Day())
}

func TestSchedule_EvaluatesInMarketTimeZone(t *testing.T) {
	s := nseSchedule(t)

	// 04:30 UTC == 10:00 IST on the same Tuesday: open in Kolkata regardless
	// of the caller's zone.
	utc := time.Date(2026, time.February, 3, 4, 30, 0, 0, time.UTC)
	assert.True(t, s.IsOpen(utc))
}

func TestForMarket_Unknown(t *testing.T) {
	_, err := ForMarket("mars")
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:15")
	require.NoError(t, err)
	assert.Equal(t, 9*60+15, m)

	_, err = ParseClock("25:00")
	assert.Error(t, err)
	_, err = ParseClock("oops")
	assert.Error(t, err)
}

func TestForMarket_AllBuiltins(t *testing.T) {
	for _, id := range []string{"us", "in", "uk", "jp"} {
		s, err := ForMarket(id)
		require.NoError(t, err, id)
		assert.NotEmpty(t, s.Market)
		assert.True(t, s.Open < s.Close)
		assert.NotNil(t, s.Location)
	}
}
