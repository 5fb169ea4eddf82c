package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Half-open business time range
// =============================================================================

// Period is the half-open range [Start, End) in the business zone.
//
// Examples:
//   - Today:      2025-03-10 00:00 +03:00 .. 2025-03-11 00:00 +03:00
//   - This week:  Monday 00:00 .. next Monday 00:00
//   - This month: 1st 00:00 .. 1st of next month 00:00
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t is within [Start, End).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Key identifies the period for uniqueness constraints, e.g. "2025-03-10".
func (p Period) Key() string {
	return p.Start.In(BusinessZone).Format(DateLayout)
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s)", p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
}

// Granularity is the length of a goal or report period.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

func (g Granularity) Valid() bool {
	return g == GranularityDaily || g == GranularityWeekly || g == GranularityMonthly
}

// =============================================================================
// PERIOD BOUNDARIES - Pure functions of an instant
// =============================================================================

// DayOf returns the business day containing t.
func DayOf(t time.Time) Period {
	start := LocalMidnight(t)
	return Period{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeekOf returns the Monday-based business week containing t.
func WeekOf(t time.Time) Period {
	day := LocalMidnight(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	start := day.AddDate(0, 0, -offset)
	return Period{Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthOf returns the business month containing t.
func MonthOf(t time.Time) Period {
	l := t.In(BusinessZone)
	start := time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, BusinessZone)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// PeriodFor returns the period of the given granularity containing t.
func PeriodFor(g Granularity, t time.Time) Period {
	switch g {
	case GranularityWeekly:
		return WeekOf(t)
	case GranularityMonthly:
		return MonthOf(t)
	default:
		return DayOf(t)
	}
}

// =============================================================================
// PERIOD CLOCK - "today", "this week", "this month"
// =============================================================================

// PeriodClock produces business period boundaries from an injected Clock.
type PeriodClock struct {
	Clock Clock
}

func NewPeriodClock(c Clock) PeriodClock {
	if c == nil {
		c = SystemClock{}
	}
	return PeriodClock{Clock: c}
}

func (pc PeriodClock) Now() time.Time { return pc.Clock.Now() }
func (pc PeriodClock) Today() Period { return DayOf(pc.Clock.Now()) }
func (pc PeriodClock) ThisWeek() Period { return WeekOf(pc.Clock.Now()) }
func (pc PeriodClock) ThisMonth() Period { return MonthOf(pc.Clock.Now()) }
func (pc PeriodClock) TodayKey() string { return DateKey(pc.Clock.Now()) }
