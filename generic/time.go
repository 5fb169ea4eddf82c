package generic

import (
	"sync"
	"time"
)

// =============================================================================
// BUSINESS ZONE - Reporting day/week/month are pinned to UTC+3
// =============================================================================

// BusinessOffset is the fixed UTC offset of the business calendar.
const BusinessOffset = 3 * time.Hour

// BusinessZone is a fixed zone, not a named location: it never observes DST
// and does not depend on the host's zoneinfo or TZ setting.
var BusinessZone = time.FixedZone("UTC+3", int(BusinessOffset/time.Second))

const DateLayout = "2006-01-02"

// =============================================================================
// CLOCK - Injected source of "now"
// =============================================================================

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock returns a settable instant. Safe for concurrent use.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{t: t} }

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// =============================================================================
// DATE UTILITIES
// =============================================================================

// LocalMidnight returns 00:00 of t's calendar day in the business zone.
func LocalMidnight(t time.Time) time.Time {
	l := t.In(BusinessZone)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, BusinessZone)
}

// DateKey formats t's business calendar day as "2006-01-02".
func DateKey(t time.Time) string {
	return t.In(BusinessZone).Format(DateLayout)
}

// ParseDate parses "2006-01-02" as a business calendar day.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, BusinessZone)
}

// IsLastDayOfMonth reports whether t's business calendar day ends its month.
func IsLastDayOfMonth(t time.Time) bool {
	return LocalMidnight(t).AddDate(0, 0, 1).Day() == 1
}
