/*
handlers.go - HTTP API handlers for the shift engine

PURPOSE:
  Exposes shift registration, the shift lifecycle and earnings via REST.
  Handles HTTP request/response, JSON serialization and validation, and
  delegates to the shifts and earnings packages.

ENDPOINTS:
  Worker (X-Worker-ID required, overdue shifts reconciled first):
    GET    /api/shifts/current            Today's shift or null + server time
    POST   /api/shifts                    {action: create|start|end}

  Workers:
    GET    /api/workers                   List workers
    GET    /api/workers/{id}/earnings     ?period=today|week|month
    GET    /api/workers/{id}/shifts       ?from=&to= (business dates)
    GET    /api/workers/{id}/assignments
    GET    /api/workers/{id}/achievements

  Admin:
    POST   /api/admin/workers             Upsert worker
    GET    /api/admin/templates           List shift templates
    POST   /api/admin/templates           Upsert shift template
    POST   /api/admin/assignments         Upsert assignment
    GET    /api/admin/rates               Active hourly rate
    POST   /api/admin/rates               Activate a new hourly rate
    GET    /api/admin/tier-sets           List tier sets
    POST   /api/admin/tier-sets           Activate a tier set
    GET    /api/admin/goals               List goals
    POST   /api/admin/goals               Upsert goal with stages
    POST   /api/admin/deposits            Ingest a deposit
    POST   /api/admin/adjustments         Manual ledger entry
    POST   /api/admin/reconcile           Sweep every worker now
    POST   /api/admin/shifts/{id}/resettle Fill missing settlement entries
    POST   /api/admin/catalog             Apply a YAML catalog

  Scenarios:
    GET    /api/scenarios                 List demo scenarios
    POST   /api/scenarios/load            Reset and load a scenario

ERROR HANDLING:
  Domain errors map by kind:
  - 403: Unauthorized (not assigned to the shift kind)
  - 409: AlreadyExists, Conflict (illegal transition)
  - 400: InvalidData, malformed or invalid request body
  - 404: NotFound
  - 422: InvalidTime (end at or before start)
  - 500: SystemError

SECURITY NOTE:
  Authentication is upstream. The worker id header is trusted and the
  admin routes are unprotected.

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Logging, worker identity, reconcile sweep
  - server.go: Router setup
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/earnings"
	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shifts"
	"github.com/warp/shift-engine/store/sqlstore"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options tunes the services wired by NewHandler.
type Options struct {
	DefaultRate    decimal.Decimal // zero: earnings.DefaultHourlyRate
	ConfigTTL      time.Duration   // pay configuration cache
	SweepEvery     time.Duration   // min gap between request-triggered global sweeps
	AllowedOrigins []string
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlstore.Store
	Config     *earnings.CachedConfig
	Ledger     generic.Ledger
	Registrar  *shifts.Registrar
	Controller *shifts.Controller
	Reconciler *shifts.Reconciler
	Engine     *earnings.Engine
	Sweeper    *Sweeper
	Scheduler  *ReconciliationScheduler // optional, reported by /healthz
	Clock      generic.Clock
	Periods    generic.PeriodClock
	Log        zerolog.Logger
	Options    Options

	validate *validator.Validate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the shift and earnings services on top of store.
func NewHandler(store *sqlstore.Store, clock generic.Clock, log zerolog.Logger, opts Options) *Handler {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if opts.ConfigTTL <= 0 {
		opts.ConfigTTL = time.Minute
	}

	store.SetClock(clock)
	config := earnings.NewCachedConfig(store, opts.ConfigTTL)
	ledger := generic.NewLedger(store, clock)
	tracker := &earnings.Tracker{
		Config:       config,
		Workers:      store,
		Deposits:     store,
		Hours:        store,
		Ledger:       ledger,
		Achievements: store,
		Clock:        clock,
		Log:          log.With().Str("component", "goals").Logger(),
	}
	engine := &earnings.Engine{
		Ledger:      ledger,
		Deposits:    store,
		Config:      config,
		Claims:      store,
		Goals:       tracker,
		Clock:       clock,
		DefaultRate: opts.DefaultRate,
		Log:         log.With().Str("component", "settlement").Logger(),
	}
	controller := shifts.NewController(store, clock, engine, log.With().Str("component", "lifecycle").Logger())
	reconciler := shifts.NewReconciler(controller, log.With().Str("component", "reconciler").Logger())

	return &Handler{
		Store:      store,
		Config:     config,
		Ledger:     ledger,
		Registrar:  shifts.NewRegistrar(store, clock, log.With().Str("component", "registrar").Logger()),
		Controller: controller,
		Reconciler: reconciler,
		Engine:     engine,
		Sweeper:    NewSweeper(reconciler, opts.SweepEvery, log),
		Clock:      clock,
		Periods:    generic.NewPeriodClock(clock),
		Log:        log,
		Options:    opts,
		validate:   validator.New(),
	}
}

// =============================================================================
// WORKER SHIFT HANDLERS
// =============================================================================

// CurrentShift returns the worker's shift for today, or null.
func (h *Handler) CurrentShift(w http.ResponseWriter, r *http.Request) {
	shift, err := h.currentShift(r.Context(), WorkerFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, "Failed to load current shift", err)
		return
	}
	h.writeShift(w, http.StatusOK, shift)
}

// ShiftAction creates, starts or ends the worker's shift.
func (h *Handler) ShiftAction(w http.ResponseWriter, r *http.Request) {
	var req ShiftActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	worker := WorkerFrom(ctx)

	if req.Action == "create" {
		shift, err := h.Registrar.RegisterWithNotes(ctx, worker, shifts.Kind(req.ShiftKind), "", req.Notes)
		if err != nil {
			h.writeDomainError(w, "Failed to register shift", err)
			return
		}
		h.writeShift(w, http.StatusCreated, &shift)
		return
	}

	current, err := h.currentShift(ctx, worker)
	if err != nil {
		h.writeDomainError(w, "Failed to load current shift", err)
		return
	}
	if current == nil {
		h.writeDomainError(w, "No shift to "+req.Action, fmt.Errorf("%w: worker %s has no shift today", generic.ErrNotFound, worker))
		return
	}

	var shift shifts.Shift
	if req.Action == "start" {
		shift, err = h.Controller.Start(ctx, current.ID)
	} else {
		shift, err = h.Controller.End(ctx, current.ID)
	}
	if err != nil {
		h.writeDomainError(w, "Failed to "+req.Action+" shift", err)
		return
	}
	h.writeShift(w, http.StatusOK, &shift)
}

// currentShift prefers an ACTIVE shift registered yesterday (a night shift
// still running past midnight) over today's shift.
func (h *Handler) currentShift(ctx context.Context, worker generic.WorkerID) (*shifts.Shift, error) {
	now := h.Clock.Now()

	prev, err := h.Store.ShiftByOwnerDate(ctx, worker, generic.DateKey(now.AddDate(0, 0, -1)))
	switch {
	case err == nil && prev.Status == shifts.StatusActive:
		return &prev, nil
	case err != nil && !generic.IsNotFound(err):
		return nil, err
	}

	today, err := h.Store.ShiftByOwnerDate(ctx, worker, generic.DateKey(now))
	if generic.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &today, nil
}

func (h *Handler) writeShift(w http.ResponseWriter, status int, shift *shifts.Shift) {
	resp := ShiftResponse{ServerTime: formatTime(h.Clock.Now())}
	if shift != nil {
		dto := toShiftDTO(*shift)
		resp.Shift = &dto
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// WORKER HANDLERS
// =============================================================================

func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list workers", err)
		return
	}
	dtos := make([]WorkerDTO, len(workers))
	for i, wk := range workers {
		dtos[i] = toWorkerDTO(wk)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if !h.decode(w, r, &req) {
		return
	}
	worker := shifts.Worker{ID: generic.WorkerID(req.ID), Name: req.Name, Role: req.Role, Active: boolOr(req.Active, true)}
	if err := h.Store.SaveWorker(r.Context(), worker); err != nil {
		h.writeDomainError(w, "Failed to save worker", err)
		return
	}
	// Goal eligibility depends on the role.
	h.Config.Invalidate()
	writeJSON(w, http.StatusCreated, toWorkerDTO(worker))
}

// WorkerEarnings sums the worker's ledger over today, this week or this month.
func (h *Handler) WorkerEarnings(w http.ResponseWriter, r *http.Request) {
	worker := generic.WorkerID(chi.URLParam(r, "id"))
	name := r.URL.Query().Get("period")
	var period generic.Period
	switch name {
	case "", "today":
		name, period = "today", h.Periods.Today()
	case "week":
		period = h.Periods.ThisWeek()
	case "month":
		period = h.Periods.ThisMonth()
	default:
		writeError(w, http.StatusBadRequest, "period must be today, week or month", nil)
		return
	}

	entries, err := h.Ledger.Entries(r.Context(), worker, period)
	if err != nil {
		h.writeDomainError(w, "Failed to load earnings", err)
		return
	}
	totals := generic.SumEntries(entries)
	byKind := make(map[string]string, len(totals.ByKind))
	for kind, amount := range totals.ByKind {
		byKind[string(kind)] = amount.Value.StringFixed(2)
	}
	writeJSON(w, http.StatusOK, EarningsDTO{
		WorkerID: string(worker),
		Period:   name,
		From:     formatTime(period.Start),
		To:       formatTime(period.End),
		Total:    totals.Total.Value.StringFixed(2),
		ByKind:   byKind,
		Entries:  toLedgerEntryDTOs(entries),
	})
}

// WorkerShifts lists shifts by business date, defaulting to the last 30 days.
func (h *Handler) WorkerShifts(w http.ResponseWriter, r *http.Request) {
	worker := generic.WorkerID(chi.URLParam(r, "id"))
	now := h.Clock.Now()
	from := queryOr(r, "from", generic.DateKey(now.AddDate(0, 0, -30)))
	to := queryOr(r, "to", generic.DateKey(now))
	for _, d := range []string{from, to} {
		if _, err := generic.ParseDate(d); err != nil {
			writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD", err)
			return
		}
	}

	list, err := h.Store.ShiftsByOwner(r.Context(), worker, from, to)
	if err != nil {
		h.writeDomainError(w, "Failed to list shifts", err)
		return
	}
	dtos := make([]ShiftDTO, len(list))
	for i, s := range list {
		dtos[i] = toShiftDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) WorkerAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.AssignmentsByWorker(r.Context(), generic.WorkerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to list assignments", err)
		return
	}
	dtos := make([]AssignmentDTO, len(list))
	for i, a := range list {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) WorkerAchievements(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.AchievementsByWorker(r.Context(), generic.WorkerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to list achievements", err)
		return
	}
	writeJSON(w, http.StatusOK, toAchievementDTOs(list))
}

// =============================================================================
// ADMIN: TEMPLATES AND ASSIGNMENTS
// =============================================================================

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListTemplates(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list templates", err)
		return
	}
	dtos := make([]TemplateDTO, len(list))
	for i, t := range list {
		dtos[i] = toTemplateDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if !h.decode(w, r, &req) {
		return
	}
	offset := int(generic.BusinessOffset / time.Minute)
	if req.OffsetMinutes != nil {
		offset = *req.OffsetMinutes
	}
	tpl := shifts.Template{
		Kind:          shifts.Kind(req.Kind),
		Name:          req.Name,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		OffsetMinutes: offset,
		Active:        boolOr(req.Active, true),
	}
	if err := h.Store.SaveTemplate(r.Context(), tpl); err != nil {
		h.writeDomainError(w, "Failed to save template", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateDTO(tpl))
}

func (h *Handler) SaveAssignment(w http.ResponseWriter, r *http.Request) {
	var req CreateAssignmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	if _, err := h.Store.Worker(ctx, generic.WorkerID(req.WorkerID)); err != nil {
		h.writeDomainError(w, "Unknown worker", err)
		return
	}
	if _, err := h.Store.Template(ctx, shifts.Kind(req.ShiftKind)); err != nil {
		h.writeDomainError(w, "Unknown shift kind", err)
		return
	}
	a, err := h.Store.SaveAssignment(ctx, shifts.Assignment{
		WorkerID:   generic.WorkerID(req.WorkerID),
		Kind:       shifts.Kind(req.ShiftKind),
		Active:     boolOr(req.Active, true),
		AssignedBy: req.AssignedBy,
		CreatedAt:  h.Clock.Now(),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to save assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(a))
}

// =============================================================================
// ADMIN: PAY CONFIGURATION
// =============================================================================

func (h *Handler) GetHourlyRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.Config.ActiveHourlyRate(r.Context())
	if generic.IsNotFound(err) {
		def := h.Options.DefaultRate
		if def.IsZero() {
			def = earnings.DefaultHourlyRate
		}
		writeJSON(w, http.StatusOK, HourlyRateDTO{Rate: def.StringFixed(2), Default: true})
		return
	}
	if err != nil {
		h.writeDomainError(w, "Failed to load hourly rate", err)
		return
	}
	writeJSON(w, http.StatusOK, HourlyRateDTO{ID: rate.ID, Rate: rate.Rate.StringFixed(2), CreatedAt: formatTime(rate.CreatedAt)})
}

func (h *Handler) SetHourlyRate(w http.ResponseWriter, r *http.Request) {
	var req HourlyRateRequest
	if !h.decode(w, r, &req) {
		return
	}
	rate, err := h.Store.SetHourlyRate(r.Context(), generic.DecimalOrZero(req.Rate), h.Clock.Now())
	if err != nil {
		h.writeDomainError(w, "Failed to set hourly rate", err)
		return
	}
	h.Config.Invalidate()
	writeJSON(w, http.StatusCreated, HourlyRateDTO{ID: rate.ID, Rate: rate.Rate.StringFixed(2), CreatedAt: formatTime(rate.CreatedAt)})
}

func (h *Handler) ListTierSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.Store.ListTierSets(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list tier sets", err)
		return
	}
	dtos := make([]TierSetDTO, len(sets))
	for i, s := range sets {
		dtos[i] = toTierSetDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveTierSet(w http.ResponseWriter, r *http.Request) {
	var req TierSetRequest
	if !h.decode(w, r, &req) {
		return
	}
	set := generic.TierSet{Name: req.Name, Scope: generic.TierScope(req.Scope), ShiftKind: req.ShiftKind, Active: true}
	for _, t := range req.Tiers {
		set.Tiers = append(set.Tiers, generic.Tier{
			Name:      t.Name,
			Threshold: generic.DecimalOrZero(t.Threshold),
			Rate:      generic.DecimalOrZero(t.Rate),
		})
	}
	saved, err := h.Store.SaveTierSet(r.Context(), set)
	if err != nil {
		h.writeDomainError(w, "Failed to save tier set", err)
		return
	}
	h.Config.Invalidate()
	writeJSON(w, http.StatusCreated, toTierSetDTO(saved))
}

func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.Store.ListGoals(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list goals", err)
		return
	}
	dtos := make([]GoalDTO, len(goals))
	for i, g := range goals {
		dtos[i] = toGoalDTO(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if !h.decode(w, r, &req) {
		return
	}
	goal := earnings.Goal{
		ID:          req.ID,
		Name:        req.Name,
		Metric:      earnings.Metric(req.Metric),
		Granularity: generic.Granularity(req.Granularity),
		Role:        req.Role,
		Active:      boolOr(req.Active, true),
	}
	for i, st := range req.Stages {
		goal.Stages = append(goal.Stages, earnings.GoalStage{
			Position: i + 1,
			Name:     st.Name,
			Target:   generic.DecimalOrZero(st.Target),
			Reward:   generic.DecimalOrZero(st.Reward),
		})
	}
	saved, err := h.Store.SaveGoal(r.Context(), goal)
	if err != nil {
		h.writeDomainError(w, "Failed to save goal", err)
		return
	}
	h.Config.Invalidate()
	writeJSON(w, http.StatusCreated, toGoalDTO(saved))
}

// =============================================================================
// ADMIN: DEPOSITS AND LEDGER
// =============================================================================

// IngestDeposit records a deposit produced upstream. Re-sending an id is a no-op.
func (h *Handler) IngestDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if !h.decode(w, r, &req) {
		return
	}
	at := h.Clock.Now()
	if req.CreatedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.CreatedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "created_at must be RFC 3339", err)
			return
		}
		at = parsed
	}
	dep, err := h.Store.SaveDeposit(r.Context(), earnings.Deposit{
		ID:             req.ID,
		OwnerID:        generic.WorkerID(req.WorkerID),
		Amount:         generic.DecimalOrZero(req.Amount),
		Currency:       strings.ToUpper(req.Currency),
		CreatedAt:      at,
		CommissionRate: generic.DecimalOrZero(req.CommissionRate),
		BonusAmount:    generic.DecimalOrZero(req.BonusAmount),
		OwnerEarnings:  generic.DecimalOrZero(req.OwnerEarnings),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to ingest deposit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDepositDTO(dep))
}

// CreateAdjustment appends a manual entry. Negative amounts are allowed.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = "admin"
	}
	entry, err := h.Ledger.Append(r.Context(), generic.LedgerEntry{
		WorkerID:       generic.WorkerID(req.WorkerID),
		ShiftID:        generic.ShiftID(req.ShiftID),
		Kind:           generic.EntryKind(req.Kind),
		Amount:         generic.Dollars(generic.DecimalOrZero(req.Amount)),
		Trace:          req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		CreatedBy:      createdBy,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLedgerEntryDTO(entry))
}

// =============================================================================
// ADMIN: OPERATIONS
// =============================================================================

func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reconciler.Sweep(r.Context())
	status := http.StatusOK
	if err != nil {
		h.Log.Error().Err(err).Msg("manual sweep incomplete")
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, toSweepResultDTO(res, err))
}

// ResettleShift reruns settlement for a completed shift; only missing
// entries are written.
func (h *Handler) ResettleShift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shift, err := h.Store.Shift(ctx, generic.ShiftID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to load shift", err)
		return
	}
	report, err := h.Engine.Resettle(ctx, shift)
	if err != nil && len(report.Entries)+len(report.Skipped)+len(report.Errors) == 0 {
		h.writeDomainError(w, "Failed to resettle shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementReportDTO(report))
}

// ApplyCatalog loads a YAML catalog from the request body.
func (h *Handler) ApplyCatalog(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read catalog", err)
		return
	}
	sum, err := h.applyCatalog(r.Context(), data)
	if err != nil {
		h.writeDomainError(w, "Failed to apply catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, CatalogResultDTO{Summary: sum})
}

func (h *Handler) applyCatalog(ctx context.Context, data []byte) (factory.Summary, error) {
	catalog, err := factory.ParseCatalog(data)
	if err != nil {
		return factory.Summary{}, err
	}
	sum, err := factory.Apply(ctx, h.Store, catalog, h.Clock.Now())
	h.Config.Invalidate()
	return sum, err
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into v and validates it, writing 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Code: string(generic.KindInvalidData), Details: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind generic.Kind) int {
	switch kind {
	case generic.KindUnauthorized:
		return http.StatusForbidden
	case generic.KindAlreadyExists, generic.KindConflict:
		return http.StatusConflict
	case generic.KindInvalidData:
		return http.StatusBadRequest
	case generic.KindNotFound:
		return http.StatusNotFound
	case generic.KindInvalidTime:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	kind := generic.KindOf(err)
	status := statusFor(kind)
	if status >= 500 {
		h.Log.Error().Err(err).Msg(message)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: string(kind), Details: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func queryOr(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}
