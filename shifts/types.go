/*
Package shifts implements the shift lifecycle: registration, the
start/end state machine and the overdue reconciler.

STATE MACHINE:

	SCHEDULED ──start──▶ ACTIVE ──end / reconciler──▶ COMPLETED
	    │
	    └──window elapsed, never started──▶ MISSED

	COMPLETED and MISSED are terminal. A shift is never deleted.

CONCURRENCY:
  No in-process locks. Every guarantee comes from the store:
  - unique (owner_id, shift_date): at most one shift per worker per day
  - unique owner_id WHERE status = 'ACTIVE': at most one active shift
  - transitions are conditional updates: UPDATE ... WHERE status = <expected>
  Two concurrent closers of the same shift race on the conditional update;
  exactly one sees RowsAffected = 1 and goes on to settle.

SEE ALSO:
  - registrar.go: registerShift
  - lifecycle.go: start / end
  - reconciler.go: overdue sweep
  - earnings/settlement.go: the Settler invoked on completion
*/
package shifts

import (
	"fmt"
	"time"

	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusMissed    Status = "MISSED"
)

var transitions = map[Status][]Status{
	StatusScheduled: {StatusActive, StatusMissed},
	StatusActive:    {StatusCompleted},
}

// IsTerminal returns true for COMPLETED and MISSED.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusMissed
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// =============================================================================
// WORKERS, TEMPLATES, ASSIGNMENTS
// =============================================================================

// Kind tags a recurring work window: "morning", "day", "night".
type Kind string

type Worker struct {
	ID     generic.WorkerID
	Name   string
	Role   string
	Active bool
}

// Template is a named recurring work window. Times are "15:04" in the
// template's own fixed offset. An end at or before the start wraps to the
// following day (night shifts).
type Template struct {
	Kind          Kind
	Name          string
	StartTime     string
	EndTime       string
	OffsetMinutes int // minutes east of UTC
	Active        bool
}

const timeOfDayLayout = "15:04"

func (t Template) Validate() error {
	if t.Kind == "" {
		return fmt.Errorf("%w: template without kind", generic.ErrInvalidData)
	}
	if _, err := time.Parse(timeOfDayLayout, t.StartTime); err != nil {
		return fmt.Errorf("%w: template %s start %q: %v", generic.ErrInvalidData, t.Kind, t.StartTime, err)
	}
	if _, err := time.Parse(timeOfDayLayout, t.EndTime); err != nil {
		return fmt.Errorf("%w: template %s end %q: %v", generic.ErrInvalidData, t.Kind, t.EndTime, err)
	}
	return nil
}

// Window returns the scheduled [start, end) of the template on the given
// business calendar day ("2006-01-02").
func (t Template) Window(date string) (time.Time, time.Time, error) {
	if err := t.Validate(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	day, err := generic.ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date %q: %v", generic.ErrInvalidData, date, err)
	}
	zone := time.FixedZone(fmt.Sprintf("UTC%+d", t.OffsetMinutes/60), t.OffsetMinutes*60)
	at := func(clock string) time.Time {
		c, _ := time.Parse(timeOfDayLayout, clock)
		return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, zone)
	}
	start, end := at(t.StartTime), at(t.EndTime)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

type Assignment struct {
	ID         string
	WorkerID   generic.WorkerID
	Kind       Kind
	Active     bool
	AssignedBy string
	CreatedAt  time.Time
}

// =============================================================================
// SHIFT
// =============================================================================

// Shift is one instance of work. (OwnerID, Date) is its natural key.
type Shift struct {
	ID             generic.ShiftID
	OwnerID        generic.WorkerID
	Kind           Kind
	Date           string // business calendar day, "2006-01-02"
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	ActualStart    *time.Time
	ActualEnd      *time.Time
	Status         Status
	AutoClosed     bool
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Worked returns actual end minus actual start, or zero while incomplete.
func (s Shift) Worked() time.Duration {
	if s.ActualStart == nil || s.ActualEnd == nil {
		return 0
	}
	return s.ActualEnd.Sub(*s.ActualStart)
}

// IsOverdue reports whether the scheduled window has elapsed at now while
// the shift is still open.
func (s Shift) IsOverdue(now time.Time) bool {
	return !s.Status.IsTerminal() && !s.ScheduledEnd.After(now)
}
