package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/shift-engine/generic"
)

// withHostZone runs fn with time.Local swapped for loc.
func withHostZone(t *testing.T, loc *time.Location, fn func()) {
	t.Helper()
	saved := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = saved })
	fn()
}

func TestPeriodClock_Today_FixedOffset(t *testing.T) {
	// GIVEN: 2025-03-10 22:30 UTC, which is 2025-03-11 01:30 at UTC+3
	// WHEN: Asking for today
	// THEN: Today is March 11 in the business zone

	now := time.Date(2025, time.March, 10, 22, 30, 0, 0, time.UTC)
	pc := generic.NewPeriodClock(generic.NewFixedClock(now))

	today := pc.Today()
	assert.Equal(t, time.Date(2025, time.March, 10, 21, 0, 0, 0, time.UTC), today.Start.UTC())
	assert.Equal(t, time.Date(2025, time.March, 11, 21, 0, 0, 0, time.UTC), today.End.UTC())
	assert.Equal(t, "2025-03-11", pc.TodayKey())
	assert.True(t, today.Contains(now))
	assert.False(t, today.Contains(today.End))
}

func TestPeriodClock_Today_IndependentOfHostZone(t *testing.T) {
	now := time.Date(2025, time.March, 10, 22, 30, 0, 0, time.UTC)
	want := generic.NewPeriodClock(generic.NewFixedClock(now)).Today()

	zones := []*time.Location{
		time.UTC,
		time.FixedZone("UTC-10", -10*3600),
		time.FixedZone("UTC+14", 14*3600),
	}
	for _, loc := range zones {
		withHostZone(t, loc, func() {
			got := generic.NewPeriodClock(generic.NewFixedClock(now.In(loc))).Today()
			assert.True(t, want.Start.Equal(got.Start), "zone %s", loc)
			assert.True(t, want.End.Equal(got.End), "zone %s", loc)
		})
	}
}

func TestPeriodClock_ThisWeek_StartsMonday(t *testing.T) {
	// Sunday 2025-03-16 at 23:00 business time belongs to the week of Monday 03-10.
	now := time.Date(2025, time.March, 16, 23, 0, 0, 0, generic.BusinessZone)
	week := generic.NewPeriodClock(generic.NewFixedClock(now)).ThisWeek()

	assert.Equal(t, "2025-03-10", week.Key())
	assert.Equal(t, time.Monday, week.Start.Weekday())
	assert.Equal(t, 7*24*time.Hour, week.End.Sub(week.Start))
}

func TestPeriodClock_ThisMonth(t *testing.T) {
	now := time.Date(2025, time.February, 28, 23, 59, 0, 0, generic.BusinessZone)
	month := generic.NewPeriodClock(generic.NewFixedClock(now)).ThisMonth()

	assert.Equal(t, "2025-02-01", month.Key())
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, generic.BusinessZone), month.End)
	assert.True(t, generic.IsLastDayOfMonth(now))
	assert.False(t, generic.IsLastDayOfMonth(now.AddDate(0, 0, -1)))
}

func TestPeriodFor_Granularity(t *testing.T) {
	at := time.Date(2025, time.March, 12, 10, 0, 0, 0, generic.BusinessZone)

	assert.Equal(t, "2025-03-12", generic.PeriodFor(generic.GranularityDaily, at).Key())
	assert.Equal(t, "2025-03-10", generic.PeriodFor(generic.GranularityWeekly, at).Key())
	assert.Equal(t, "2025-03-01", generic.PeriodFor(generic.GranularityMonthly, at).Key())
	assert.False(t, generic.Granularity("hourly").Valid())
}

func TestParseDate_BusinessMidnight(t *testing.T) {
	day, err := generic.ParseDate("2025-03-10")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 9, 21, 0, 0, 0, time.UTC), day.UTC())

	_, err = generic.ParseDate("10/03/2025")
	assert.Error(t, err)
}
