/*
reconciler.go - Overdue shift sweep

PURPOSE:
  Shifts must close themselves when their window ends, but nothing runs at
  14:00 exactly. Instead every shift-related request first sweeps overdue
  shifts (pull-based), and a background ticker sweeps all workers so
  staleness stays bounded with no traffic (see api/scheduler.go).

RULES (scheduled end <= now):
  ACTIVE     → COMPLETED with actual end = scheduled end (not now),
               settled exactly like an on-time end(), flagged auto-closed
  SCHEDULED  → MISSED, no settlement

  A sweep that loses a race to a concurrent end() or another sweep skips
  the shift: the conditional update decides who closes it.
*/
package shifts

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/warp/shift-engine/generic"
)

type Reconciler struct {
	Store      Store
	Clock      generic.Clock
	Controller *Controller
	Log        zerolog.Logger
}

func NewReconciler(ctrl *Controller, log zerolog.Logger) *Reconciler {
	return &Reconciler{Store: ctrl.Store, Clock: ctrl.Clock, Controller: ctrl, Log: log}
}

// Result summarizes one sweep.
type Result struct {
	Closed  []generic.ShiftID
	Missed  []generic.ShiftID
	Skipped int
}

// Sweep reconciles overdue shifts of every worker.
func (r *Reconciler) Sweep(ctx context.Context) (Result, error) {
	return r.sweep(ctx, nil)
}

// SweepOwner reconciles overdue shifts of one worker.
func (r *Reconciler) SweepOwner(ctx context.Context, ownerID generic.WorkerID) (Result, error) {
	return r.sweep(ctx, &ownerID)
}

func (r *Reconciler) sweep(ctx context.Context, ownerID *generic.WorkerID) (Result, error) {
	var res Result
	now := r.Clock.Now()

	overdue, err := r.Store.OverdueShifts(ctx, now, ownerID)
	if err != nil {
		return res, err
	}

	var errs []error
	for _, s := range overdue {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		switch s.Status {
		case StatusActive:
			_, err := r.Controller.complete(ctx, s, s.ScheduledEnd, true)
			switch {
			case err == nil:
				res.Closed = append(res.Closed, s.ID)
			case errors.Is(err, generic.ErrConflict):
				res.Skipped++
			default:
				errs = append(errs, err)
			}
		case StatusScheduled:
			ok, err := r.Store.MarkMissed(ctx, s.ID, now)
			switch {
			case err != nil:
				errs = append(errs, err)
			case ok:
				res.Missed = append(res.Missed, s.ID)
				r.Log.Info().Str("shift_id", string(s.ID)).Str("worker_id", string(s.OwnerID)).Msg("shift missed")
			default:
				res.Skipped++
			}
		}
	}

	if len(res.Closed)+len(res.Missed) > 0 {
		r.Log.Info().
			Int("closed", len(res.Closed)).
			Int("missed", len(res.Missed)).
			Int("skipped", res.Skipped).
			Msg("overdue shifts reconciled")
	}
	return res, errors.Join(errs...)
}
