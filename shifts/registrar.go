package shifts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// REGISTRAR - registerShift(owner, kind, date)
// =============================================================================

type Registrar struct {
	Store Store
	Clock generic.Clock
	Log   zerolog.Logger
}

func NewRegistrar(store Store, clock generic.Clock, log zerolog.Logger) *Registrar {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Registrar{Store: store, Clock: clock, Log: log}
}

// Register creates a SCHEDULED shift for (owner, date). An empty date means
// today in the business zone.
//
// The existence check only produces a friendly early error. Two concurrent
// calls can both pass it; the unique (owner, date) index rejects the loser
// and the store reports that as ErrAlreadyExists.
func (r *Registrar) Register(ctx context.Context, ownerID generic.WorkerID, kind Kind, date string) (Shift, error) {
	return r.RegisterWithNotes(ctx, ownerID, kind, date, "")
}

// RegisterWithNotes is Register with a free-text note stored on the shift.
func (r *Registrar) RegisterWithNotes(ctx context.Context, ownerID generic.WorkerID, kind Kind, date, notes string) (Shift, error) {
	now := r.Clock.Now()
	if strings.TrimSpace(date) == "" {
		date = generic.DateKey(now)
	}
	if _, err := generic.ParseDate(date); err != nil {
		return Shift{}, fmt.Errorf("%w: date %q", generic.ErrInvalidData, date)
	}

	// 1. Assignment
	if _, err := r.Store.ActiveAssignment(ctx, ownerID, kind); err != nil {
		if errors.Is(err, generic.ErrNotFound) {
			return Shift{}, fmt.Errorf("%w: worker %s, kind %s", generic.ErrUnauthorized, ownerID, kind)
		}
		return Shift{}, err
	}

	// 2. One shift per (owner, date), any kind
	existing, err := r.Store.ShiftByOwnerDate(ctx, ownerID, date)
	switch {
	case err == nil:
		return existing, fmt.Errorf("%w: shift %s for worker %s on %s", generic.ErrAlreadyExists, existing.ID, ownerID, date)
	case !errors.Is(err, generic.ErrNotFound):
		return Shift{}, err
	}

	// 3. Template
	tmpl, err := r.Store.Template(ctx, kind)
	if err != nil {
		if errors.Is(err, generic.ErrNotFound) {
			return Shift{}, fmt.Errorf("%w: unknown shift kind %q", generic.ErrInvalidData, kind)
		}
		return Shift{}, err
	}
	if !tmpl.Active {
		return Shift{}, fmt.Errorf("%w: shift kind %q is inactive", generic.ErrInvalidData, kind)
	}
	start, end, err := tmpl.Window(date)
	if err != nil {
		return Shift{}, err
	}

	// 4. Insert
	shift := Shift{
		ID:             generic.ShiftID(uuid.NewString()),
		OwnerID:        ownerID,
		Kind:           kind,
		Date:           date,
		ScheduledStart: start,
		ScheduledEnd:   end,
		Status:         StatusScheduled,
		Notes:          strings.TrimSpace(notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.Store.InsertShift(ctx, shift); err != nil {
		if errors.Is(err, generic.ErrAlreadyExists) {
			r.Log.Debug().Str("worker_id", string(ownerID)).Str("date", date).Msg("concurrent registration lost the race")
		}
		return Shift{}, err
	}

	r.Log.Info().
		Str("shift_id", string(shift.ID)).
		Str("worker_id", string(ownerID)).
		Str("kind", string(kind)).
		Str("date", date).
		Msg("shift registered")
	return shift, nil
}
