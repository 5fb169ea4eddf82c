package shifts

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// LIFECYCLE CONTROLLER - start / end
// =============================================================================

type Controller struct {
	Store   Store
	Clock   generic.Clock
	Settler Settler // optional; nil skips settlement
	Log     zerolog.Logger
}

func NewController(store Store, clock generic.Clock, settler Settler, log zerolog.Logger) *Controller {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Controller{Store: store, Clock: clock, Settler: settler, Log: log}
}

// Start moves a SCHEDULED shift to ACTIVE with actual start = now.
//
// A shift whose window already elapsed is marked MISSED instead and the
// call fails with a TransitionError.
func (c *Controller) Start(ctx context.Context, id generic.ShiftID) (Shift, error) {
	shift, err := c.Store.Shift(ctx, id)
	if err != nil {
		return Shift{}, err
	}
	if !CanTransition(shift.Status, StatusActive) {
		return shift, transitionError(id, shift.Status, StatusActive)
	}

	now := c.Clock.Now()
	if shift.IsOverdue(now) {
		if _, err := c.Store.MarkMissed(ctx, id, now); err != nil {
			return shift, err
		}
		return c.reload(ctx, id, StatusActive)
	}

	ok, err := c.Store.MarkActive(ctx, id, now)
	if err != nil {
		return shift, err
	}
	if !ok {
		return c.reload(ctx, id, StatusActive)
	}

	shift.Status = StatusActive
	shift.ActualStart = &now
	shift.UpdatedAt = now
	c.Log.Info().Str("shift_id", string(id)).Str("worker_id", string(shift.OwnerID)).Msg("shift started")
	return shift, nil
}

// End moves an ACTIVE shift to COMPLETED with actual end = now and settles it.
// Actual end never passes the scheduled end: a shift ended after its window
// is closed at the scheduled end as an auto-close, exactly as the reconciler
// would have closed it.
func (c *Controller) End(ctx context.Context, id generic.ShiftID) (Shift, error) {
	shift, err := c.Store.Shift(ctx, id)
	if err != nil {
		return Shift{}, err
	}
	if !CanTransition(shift.Status, StatusCompleted) {
		return shift, transitionError(id, shift.Status, StatusCompleted)
	}

	now := c.Clock.Now()
	if shift.ActualStart != nil && !now.After(*shift.ActualStart) {
		return shift, &generic.InvalidTimeError{ShiftID: id, Start: *shift.ActualStart, End: now}
	}
	if shift.IsOverdue(now) {
		return c.complete(ctx, shift, shift.ScheduledEnd, now.After(shift.ScheduledEnd))
	}
	return c.complete(ctx, shift, now, false)
}

// complete is the single completion path shared by End and the reconciler.
// Settlement errors are logged, never returned: the shift stays COMPLETED.
func (c *Controller) complete(ctx context.Context, shift Shift, at time.Time, autoClosed bool) (Shift, error) {
	ok, err := c.Store.MarkCompleted(ctx, shift.ID, at, autoClosed)
	if err != nil {
		return shift, err
	}
	if !ok {
		// Another closer won the conditional update and owns settlement.
		return c.reload(ctx, shift.ID, StatusCompleted)
	}

	shift.Status = StatusCompleted
	shift.ActualEnd = &at
	shift.AutoClosed = autoClosed
	shift.UpdatedAt = c.Clock.Now()

	c.Log.Info().
		Str("shift_id", string(shift.ID)).
		Str("worker_id", string(shift.OwnerID)).
		Bool("auto_closed", autoClosed).
		Dur("worked", shift.Worked()).
		Msg("shift completed")

	if c.Settler != nil {
		if err := c.Settler.Settle(ctx, shift, autoClosed); err != nil && !errors.Is(err, generic.ErrAlreadySettled) {
			c.Log.Error().Err(err).Str("shift_id", string(shift.ID)).Msg("settlement incomplete")
		}
	}
	return shift, nil
}

// reload re-reads a shift after a lost conditional update and reports the
// transition that is no longer possible.
func (c *Controller) reload(ctx context.Context, id generic.ShiftID, to Status) (Shift, error) {
	current, err := c.Store.Shift(ctx, id)
	if err != nil {
		return Shift{}, err
	}
	return current, transitionError(id, current.Status, to)
}

func transitionError(id generic.ShiftID, from, to Status) error {
	return &generic.TransitionError{ShiftID: id, From: string(from), To: string(to)}
}
