package shifts

import (
	"context"
	"time"

	"github.com/warp/shift-engine/generic"
)

// Store persists workers, templates, assignments and shifts.
//
// Lookups return generic.ErrNotFound for missing rows. The Mark* methods are
// conditional updates: they return false, nil when the shift was not in the
// expected status, so callers never branch on a stale read.
type Store interface {
	Worker(ctx context.Context, id generic.WorkerID) (Worker, error)
	ActiveAssignment(ctx context.Context, workerID generic.WorkerID, kind Kind) (Assignment, error)
	Template(ctx context.Context, kind Kind) (Template, error)

	Shift(ctx context.Context, id generic.ShiftID) (Shift, error)
	ShiftByOwnerDate(ctx context.Context, ownerID generic.WorkerID, date string) (Shift, error)

	// InsertShift returns generic.ErrAlreadyExists when (owner, date) is taken.
	InsertShift(ctx context.Context, s Shift) error

	// MarkActive moves SCHEDULED → ACTIVE. Returns generic.ErrConflict when
	// the owner already has an active shift.
	MarkActive(ctx context.Context, id generic.ShiftID, at time.Time) (bool, error)

	// MarkCompleted moves ACTIVE → COMPLETED with actual end = at.
	MarkCompleted(ctx context.Context, id generic.ShiftID, at time.Time, autoClosed bool) (bool, error)

	// MarkMissed moves SCHEDULED → MISSED.
	MarkMissed(ctx context.Context, id generic.ShiftID, at time.Time) (bool, error)

	// OverdueShifts returns SCHEDULED and ACTIVE shifts with scheduled end
	// at or before now, optionally restricted to one owner.
	OverdueShifts(ctx context.Context, now time.Time, ownerID *generic.WorkerID) ([]Shift, error)
}

// Settler computes earnings for a completed shift.
type Settler interface {
	Settle(ctx context.Context, s Shift, autoClosed bool) error
}
