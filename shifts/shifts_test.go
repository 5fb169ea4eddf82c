package shifts_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shifts"
	"github.com/warp/shift-engine/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// March 10 2025, business zone (UTC+3).
func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, generic.BusinessZone)
}

const day = "2025-03-10"

type recordingSettler struct {
	mu    sync.Mutex
	calls []settleCall
}

type settleCall struct {
	shift      shifts.Shift
	autoClosed bool
}

func (r *recordingSettler) Settle(_ context.Context, s shifts.Shift, autoClosed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, settleCall{shift: s, autoClosed: autoClosed})
	return nil
}

type fixture struct {
	store      *sqlstore.Store
	clock      *generic.FixedClock
	settler    *recordingSettler
	registrar  *shifts.Registrar
	controller *shifts.Controller
	reconciler *shifts.Reconciler
}

func newFixture(t *testing.T) *fixture {
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveWorker(ctx, shifts.Worker{ID: "w-1", Name: "Ana", Role: "processor", Active: true}))
	require.NoError(t, store.SaveTemplate(ctx, shifts.Template{
		Kind: "day", Name: "Day", StartTime: "06:00", EndTime: "14:00", OffsetMinutes: 180, Active: true,
	}))
	require.NoError(t, store.SaveTemplate(ctx, shifts.Template{
		Kind: "night", Name: "Night", StartTime: "22:00", EndTime: "06:00", OffsetMinutes: 180, Active: true,
	}))
	require.NoError(t, store.SaveTemplate(ctx, shifts.Template{
		Kind: "legacy", Name: "Legacy", StartTime: "10:00", EndTime: "18:00", OffsetMinutes: 180, Active: false,
	}))
	for _, kind := range []shifts.Kind{"day", "night", "legacy"} {
		_, err := store.SaveAssignment(ctx, shifts.Assignment{WorkerID: "w-1", Kind: kind, Active: true, AssignedBy: "admin"})
		require.NoError(t, err)
	}

	clock := generic.NewFixedClock(at(5, 30))
	settler := &recordingSettler{}
	ctrl := shifts.NewController(store, clock, settler, zerolog.Nop())
	return &fixture{
		store:      store,
		clock:      clock,
		settler:    settler,
		registrar:  shifts.NewRegistrar(store, clock, zerolog.Nop()),
		controller: ctrl,
		reconciler: shifts.NewReconciler(ctrl, zerolog.Nop()),
	}
}

// =============================================================================
// REGISTRATION
// =============================================================================

func TestRegister_FrozenWindowFromTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.registrar.Register(ctx, "w-1", "day", day)
	require.NoError(t, err)

	assert.Equal(t, shifts.StatusScheduled, shift.Status)
	assert.True(t, shift.ScheduledStart.Equal(at(6, 0)))
	assert.True(t, shift.ScheduledEnd.Equal(at(14, 0)))

	stored, err := f.store.Shift(ctx, shift.ID)
	require.NoError(t, err)
	assert.True(t, stored.ScheduledEnd.Equal(at(14, 0)))
	assert.Nil(t, stored.ActualStart)
}

func TestRegister_NightShiftWrapsMidnight(t *testing.T) {
	f := newFixture(t)

	shift, err := f.registrar.Register(context.Background(), "w-1", "night", day)
	require.NoError(t, err)
	assert.True(t, shift.ScheduledStart.Equal(at(22, 0)))
	assert.True(t, shift.ScheduledEnd.Equal(at(6, 0).AddDate(0, 0, 1)))
}

func TestRegister_EmptyDateMeansToday(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(time.Date(2025, time.March, 10, 22, 0, 0, 0, time.UTC)) // 01:00 on the 11th at UTC+3

	shift, err := f.registrar.Register(context.Background(), "w-1", "day", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", shift.Date)
}

func TestRegister_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registrar.Register(ctx, "w-2", "day", day)
	assert.ErrorIs(t, err, generic.ErrUnauthorized, "no assignment")

	_, err = f.registrar.Register(ctx, "w-1", "legacy", day)
	assert.ErrorIs(t, err, generic.ErrInvalidData, "inactive template")

	_, err = f.store.SaveAssignment(ctx, shifts.Assignment{WorkerID: "w-1", Kind: "ghost", Active: true})
	require.NoError(t, err)
	_, err = f.registrar.Register(ctx, "w-1", "ghost", day)
	assert.ErrorIs(t, err, generic.ErrInvalidData, "unknown template")

	_, err = f.registrar.Register(ctx, "w-1", "day", "10.03.2025")
	assert.ErrorIs(t, err, generic.ErrInvalidData, "malformed date")

	_, err = f.registrar.Register(ctx, "w-1", "day", day)
	require.NoError(t, err)
	_, err = f.registrar.Register(ctx, "w-1", "night", day)
	assert.ErrorIs(t, err, generic.ErrAlreadyExists, "one shift per day regardless of kind")
}

func TestRegister_InactiveAssignmentIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.SaveAssignment(ctx, shifts.Assignment{WorkerID: "w-1", Kind: "day", Active: false})
	require.NoError(t, err)

	_, err = f.registrar.Register(ctx, "w-1", "day", day)
	assert.ErrorIs(t, err, generic.ErrUnauthorized)
}

func TestRegister_ConcurrentDuplicates_ExactlyOneRow(t *testing.T) {
	// GIVEN: 20 concurrent registrations for the same (worker, day)
	// WHEN: They all race past the existence check
	// THEN: Exactly one shift exists and every other call gets AlreadyExists

	f := newFixture(t)
	ctx := context.Background()

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		other     []error
	)
	kinds := []shifts.Kind{"day", "night"}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.registrar.Register(ctx, "w-1", kinds[i%2], day)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, generic.ErrAlreadyExists):
			default:
				other = append(other, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Empty(t, other)

	list, err := f.store.ShiftsByOwner(ctx, "w-1", day, day)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestLifecycle_StartEnd_Settles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.registrar.Register(ctx, "w-1", "day", day)
	require.NoError(t, err)

	f.clock.Set(at(6, 0))
	started, err := f.controller.Start(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, shifts.StatusActive, started.Status)
	require.NotNil(t, started.ActualStart)

	f.clock.Set(at(13, 0))
	ended, err := f.controller.End(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, shifts.StatusCompleted, ended.Status)
	assert.Equal(t, 7*time.Hour, ended.Worked())
	assert.False(t, ended.AutoClosed)

	require.Len(t, f.settler.calls, 1)
	assert.False(t, f.settler.calls[0].autoClosed)

	stored, err := f.store.Shift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, shifts.StatusCompleted, stored.Status)
	assert.True(t, stored.ActualEnd.Equal(at(13, 0)))
}

func TestLifecycle_End_RejectsNonPositiveDuration(t *testing.T) {
	// GIVEN: A shift started at 06:00
	// WHEN: end() is called while now is still 06:00
	// THEN: InvalidTime, and the shift stays ACTIVE

	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.registrar.Register(ctx, "w-1", "day", day)
	require.NoError(t, err)
	f.clock.Set(at(6, 0))
	_, err = f.controller.Start(ctx, shift.ID)
	require.NoError(t, err)

	_, err = f.controller.End(ctx, shift.ID)
	assert.ErrorIs(t, err, generic.ErrInvalidTime)

	f.clock.Set(at(5, 59))
	_, err = f.controller.End(ctx, shift.ID)
	assert.ErrorIs(t, err, generic.ErrInvalidTime)

	stored, err := f.store.Shift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, shifts.StatusActive, stored.Status)
	assert.Empty(t, f.settler.calls)
}

func TestLifecycle_End_AfterWindowClampsToScheduledEnd(t *testing.T) {
	// GIVEN: A day shift (06:00-14:00) started on time
	// WHEN: end() is called at 15:30, before any sweep ran
	// THEN: Actual end is 14:00, flagged auto-closed, and 8h are paid

	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.registrar.Register(ctx, "w-1", "day", day)
	require.NoError(t, err)
	f.clock.Set(at(6, 0))
	_, err = f.controller.Start(ctx, shift.ID)
	require.NoError(t, err)

	f.clock.Set(at(15, 30))
	ended, err := f.controller.End(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, shifts.StatusCompleted, ended.Status)
	require.NotNil(t, ended.ActualEnd)
	assert.True(t, ended.ActualEnd.Equal(at(14, 0)))
	assert.True(t, ended.AutoClosed)
	assert.Equal(t, 8*time.Hour, ended.Worked())

	require.Len(t, f.settler.calls, 1)
	assert.True(t, f.settler.calls[0].autoClosed)
	assert.Equal(t, 8*time.Hour, f.settler.calls[0].shift.Worked())
}

func TestLifecycle_End_AtScheduledEndIsExplicit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.registrar.Register(ctx, "w-1", "day", day)
	require.NoError(t, err)
	f.clock.Set(at(6, 0))
	_, err = f.controller.Start(ctx, shift.ID)
	require.NoError(t, err)

	f.clock.Set(at(14, 0))
	ended, err := f.controller.End(ctx, shift.ID)
	require.NoError(t, err)
	assert.True(t, ended.ActualEnd.Equal(at(14, 0)))
	assert.False(t, ended.AutoClosed)
}

func TestLifecycle_IllegalTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.registrar.Register(ctx, "w-1", "day", day)
	require.NoError(t, err)

	_, err = f.controller.End(ctx, shift.ID)
	assert.ErrorIs(t, err, generic.ErrConflict, "end from SCHEDULED")

	f.clock.Set(at(6, 0))
	_, err = f.controller.Start(ctx, shift.ID)
	require.NoError(t, err)
	_, err = f.controller.Start(ctx, shift.ID)
	assert.ErrorIs(t, err, generic.ErrConflict, "start twice")

	f.clock.Set(at(12, 0))
	_, err = f.controller.End(ctx, shift.ID)
	require.NoError(t, err)

	// COMPLETED is terminal
	_, err = f.controller.Start(ctx, shift.ID)
	assert.ErrorIs(t, err, generic.ErrConflict)
	_, err = f.controller.End(ctx, shift.ID)
	assert.ErrorIs(t, err, generic.ErrConflict)

	var te *generic.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "COMPLETED", te.From)

	_, err = f.controller.Start(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestLifecycle_Start_AfterWindowMarksMissed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.registrar.Register(ctx, "w-1", "day", day)
	require.NoError(t, err)

	f.clock.Set(at(14, 0))
	_, err = f.controller.Start(ctx, shift.ID)
	assert.ErrorIs(t, err, generic.ErrConflict)

	stored, err := f.store.Shift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, shifts.StatusMissed, stored.Status)
}

func TestLifecycle_ConcurrentEnd_SettlesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.registrar.Register(ctx, "w-1", "day", day)
	require.NoError(t, err)
	f.clock.Set(at(6, 0))
	_, err = f.controller.Start(ctx, shift.ID)
	require.NoError(t, err)
	f.clock.Set(at(12, 0))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.controller.End(ctx, shift.ID)
		}()
	}
	wg.Wait()

	assert.Len(t, f.settler.calls, 1)
}

func TestStatus_StateMachine(t *testing.T) {
	assert.True(t, shifts.CanTransition(shifts.StatusScheduled, shifts.StatusActive))
	assert.True(t, shifts.CanTransition(shifts.StatusScheduled, shifts.StatusMissed))
	assert.True(t, shifts.CanTransition(shifts.StatusActive, shifts.StatusCompleted))
	assert.False(t, shifts.CanTransition(shifts.StatusScheduled, shifts.StatusCompleted))
	assert.False(t, shifts.CanTransition(shifts.StatusActive, shifts.StatusMissed))
	for _, terminal := range []shifts.Status{shifts.StatusCompleted, shifts.StatusMissed} {
		assert.True(t, terminal.IsTerminal())
		for _, to := range []shifts.Status{shifts.StatusScheduled, shifts.StatusActive, shifts.StatusCompleted, shifts.StatusMissed} {
			assert.False(t, shifts.CanTransition(terminal, to), "%s → %s", terminal, to)
		}
	}
}

// =============================================================================
// RECONCILER
// =============================================================================

func TestReconciler_ClosesAtScheduledEnd(t *testing.T) {
	// GIVEN: An ACTIVE shift scheduled to end at 14:00
	// WHEN: The sweep runs at 15:30
	// THEN: actual end is 14:00, status COMPLETED, settled as auto-closed

	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.registrar.Register(ctx, "w-1", "day", day)
	require.NoError(t, err)
	f.clock.Set(at(6, 0))
	_, err = f.controller.Start(ctx, shift.ID)
	require.NoError(t, err)

	f.clock.Set(at(15, 30))
	res, err := f.reconciler.SweepOwner(ctx, "w-1")
	require.NoError(t, err)
	assert.Equal(t, []generic.ShiftID{shift.ID}, res.Closed)

	stored, err := f.store.Shift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, shifts.StatusCompleted, stored.Status)
	assert.True(t, stored.ActualEnd.Equal(at(14, 0)), "got %s", stored.ActualEnd)
	assert.True(t, stored.AutoClosed)

	require.Len(t, f.settler.calls, 1)
	assert.True(t, f.settler.calls[0].autoClosed)
	assert.Equal(t, 8*time.Hour, f.settler.calls[0].shift.Worked())
}

func TestReconciler_MarksUnstartedMissed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.registrar.Register(ctx, "w-1", "day", day)
	require.NoError(t, err)

	f.clock.Set(at(13, 59))
	res, err := f.reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Missed, "window not elapsed yet")

	f.clock.Set(at(14, 0))
	res, err = f.reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.ShiftID{shift.ID}, res.Missed)
	assert.Empty(t, f.settler.calls)

	stored, err := f.store.Shift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, shifts.StatusMissed, stored.Status)

	// A second sweep finds nothing.
	res, err = f.reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Missed)
	assert.Empty(t, res.Closed)
}

func TestReconciler_SweepOwner_LeavesOtherWorkers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SaveWorker(ctx, shifts.Worker{ID: "w-2", Name: "Ben", Active: true}))
	_, err := f.store.SaveAssignment(ctx, shifts.Assignment{WorkerID: "w-2", Kind: "day", Active: true})
	require.NoError(t, err)

	_, err = f.registrar.Register(ctx, "w-1", "day", day)
	require.NoError(t, err)
	other, err := f.registrar.Register(ctx, "w-2", "day", day)
	require.NoError(t, err)

	f.clock.Set(at(15, 0))
	res, err := f.reconciler.SweepOwner(ctx, "w-1")
	require.NoError(t, err)
	assert.Len(t, res.Missed, 1)

	stored, err := f.store.Shift(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, shifts.StatusScheduled, stored.Status)
}
