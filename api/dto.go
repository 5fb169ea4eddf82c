/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers around a DTO plus request-level data

VALIDATION:
  Request types carry go-playground/validator tags. Handlers call
  h.decode, which rejects malformed JSON and failed validation with 400.
  Money and rates travel as decimal strings ("2.50"), never floats.

TIMES:
  All timestamps are RFC 3339 in the business zone (UTC+3).

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/earnings"
	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shifts"
)

// =============================================================================
// SHIFTS
// =============================================================================

type ShiftDTO struct {
	ID             string  `json:"id"`
	OwnerID        string  `json:"owner_id"`
	Kind           string  `json:"shift_kind"`
	Date           string  `json:"shift_date"`
	ScheduledStart string  `json:"scheduled_start"`
	ScheduledEnd   string  `json:"scheduled_end"`
	ActualStart    *string `json:"actual_start"`
	ActualEnd      *string `json:"actual_end"`
	Status         string  `json:"status"`
	AutoClosed     bool    `json:"auto_closed"`
	Notes          string  `json:"notes,omitempty"`
	WorkedHours    string  `json:"worked_hours,omitempty"`
}

// ShiftResponse is returned by the worker shift endpoints. Shift is null
// when the worker has no shift today.
type ShiftResponse struct {
	Shift      *ShiftDTO `json:"shift"`
	ServerTime string    `json:"server_time"`
}

type ShiftActionRequest struct {
	Action    string `json:"action" validate:"required,oneof=create start end"`
	ShiftKind string `json:"shift_kind" validate:"required_if=Action create"`
	Notes     string `json:"notes" validate:"max=500"`
}

// =============================================================================
// WORKERS, TEMPLATES, ASSIGNMENTS
// =============================================================================

type WorkerDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

type CreateWorkerRequest struct {
	ID     string `json:"id" validate:"required,max=64"`
	Name   string `json:"name" validate:"required"`
	Role   string `json:"role"`
	Active *bool  `json:"active"` // default true
}

type TemplateDTO struct {
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	OffsetMinutes int    `json:"offset_minutes"`
	Active        bool   `json:"active"`
}

type CreateTemplateRequest struct {
	Kind          string `json:"kind" validate:"required,max=32"`
	Name          string `json:"name" validate:"required"`
	StartTime     string `json:"start_time" validate:"required,len=5"`
	EndTime       string `json:"end_time" validate:"required,len=5"`
	OffsetMinutes *int   `json:"offset_minutes" validate:"omitempty,min=-720,max=840"`
	Active        *bool  `json:"active"`
}

type AssignmentDTO struct {
	ID         string `json:"id"`
	WorkerID   string `json:"worker_id"`
	ShiftKind  string `json:"shift_kind"`
	Active     bool   `json:"active"`
	AssignedBy string `json:"assigned_by,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type CreateAssignmentRequest struct {
	WorkerID   string `json:"worker_id" validate:"required"`
	ShiftKind  string `json:"shift_kind" validate:"required"`
	Active     *bool  `json:"active"`
	AssignedBy string `json:"assigned_by"`
}

// =============================================================================
// PAY CONFIGURATION
// =============================================================================

type HourlyRateDTO struct {
	ID        string `json:"id,omitempty"`
	Rate      string `json:"rate"`
	Default   bool   `json:"default"`
	CreatedAt string `json:"created_at,omitempty"`
}

type HourlyRateRequest struct {
	Rate string `json:"rate" validate:"required,numeric"`
}

type TierRequest struct {
	Name      string `json:"name" validate:"required"`
	Threshold string `json:"threshold" validate:"required,numeric"`
	Rate      string `json:"rate" validate:"required,numeric"`
}

type TierSetRequest struct {
	Name      string        `json:"name" validate:"required"`
	Scope     string        `json:"scope" validate:"required,oneof=shift monthly"`
	ShiftKind string        `json:"shift_kind" validate:"required_if=Scope shift"`
	Tiers     []TierRequest `json:"tiers" validate:"required,min=1,dive"`
}

type TierDTO struct {
	Name      string `json:"name"`
	Threshold string `json:"threshold"`
	Rate      string `json:"rate"`
}

type TierSetDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Scope     string    `json:"scope"`
	ShiftKind string    `json:"shift_kind,omitempty"`
	Active    bool      `json:"active"`
	Tiers     []TierDTO `json:"tiers"`
}

type StageRequest struct {
	Name   string `json:"name"`
	Target string `json:"target" validate:"required,numeric"`
	Reward string `json:"reward" validate:"required,numeric"`
}

type GoalRequest struct {
	ID          string         `json:"id"`
	Name        string         `json:"name" validate:"required"`
	Metric      string         `json:"metric" validate:"required,oneof=earnings deposit_count deposit_volume hours"`
	Granularity string         `json:"granularity" validate:"required,oneof=daily weekly monthly"`
	Role        string         `json:"role"`
	Active      *bool          `json:"active"`
	Stages      []StageRequest `json:"stages" validate:"required,min=1,dive"`
}

type StageDTO struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Name     string `json:"name"`
	Target   string `json:"target"`
	Reward   string `json:"reward"`
}

type GoalDTO struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Metric      string     `json:"metric"`
	Granularity string     `json:"granularity"`
	Role        string     `json:"role,omitempty"`
	Active      bool       `json:"active"`
	Stages      []StageDTO `json:"stages"`
}

type AchievementDTO struct {
	ID         string `json:"id"`
	GoalID     string `json:"goal_id"`
	StageID    string `json:"stage_id"`
	PeriodKey  string `json:"period_key"`
	Observed   string `json:"observed"`
	Reward     string `json:"reward"`
	AchievedAt string `json:"achieved_at"`
}

// =============================================================================
// DEPOSITS, LEDGER, EARNINGS
// =============================================================================

type DepositRequest struct {
	ID             string `json:"id"`
	WorkerID       string `json:"worker_id" validate:"required"`
	Amount         string `json:"amount" validate:"required,numeric"`
	Currency       string `json:"currency" validate:"omitempty,len=3"`
	CreatedAt      string `json:"created_at"` // RFC 3339, default now
	CommissionRate string `json:"commission_rate" validate:"omitempty,numeric"`
	BonusAmount    string `json:"bonus_amount" validate:"omitempty,numeric"`
	OwnerEarnings  string `json:"owner_earnings" validate:"omitempty,numeric"`
}

type DepositDTO struct {
	ID            string `json:"id"`
	WorkerID      string `json:"worker_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"created_at"`
	OwnerEarnings string `json:"owner_earnings"`
}

type AdjustmentRequest struct {
	WorkerID       string `json:"worker_id" validate:"required"`
	Kind           string `json:"kind" validate:"required,oneof=MANUAL_ADJUSTMENT OVERTIME_BONUS"`
	Amount         string `json:"amount" validate:"required,numeric"`
	Reason         string `json:"reason" validate:"required"`
	ShiftID        string `json:"shift_id"`
	IdempotencyKey string `json:"idempotency_key"`
	CreatedBy      string `json:"created_by"`
}

type LedgerEntryDTO struct {
	ID             string            `json:"id"`
	WorkerID       string            `json:"worker_id"`
	ShiftID        string            `json:"shift_id,omitempty"`
	DepositID      string            `json:"deposit_id,omitempty"`
	Kind           string            `json:"kind"`
	Amount         string            `json:"amount"`
	Trace          string            `json:"trace"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	EffectiveAt    string            `json:"effective_at"`
	CreatedBy      string            `json:"created_by"`
}

type EarningsDTO struct {
	WorkerID string            `json:"worker_id"`
	Period   string            `json:"period"`
	From     string            `json:"from"`
	To       string            `json:"to"`
	Total    string            `json:"total"`
	ByKind   map[string]string `json:"by_kind"`
	Entries  []LedgerEntryDTO  `json:"entries"`
}

// =============================================================================
// OPERATIONS
// =============================================================================

type SweepResultDTO struct {
	Closed  []string `json:"closed"`
	Missed  []string `json:"missed"`
	Skipped int      `json:"skipped"`
	Error   string   `json:"error,omitempty"`
}

type SettlementReportDTO struct {
	ShiftID  string           `json:"shift_id"`
	Entries  []LedgerEntryDTO `json:"entries"`
	Skipped  []string         `json:"skipped"`
	Awarded  []AchievementDTO `json:"awarded"`
	Errors   []string         `json:"errors,omitempty"`
	Total    string           `json:"total"`
	Complete bool             `json:"complete"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

type CatalogResultDTO struct {
	Scenario string          `json:"scenario,omitempty"`
	Summary  factory.Summary `json:"summary"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.In(generic.BusinessZone).Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toShiftDTO(s shifts.Shift) ShiftDTO {
	dto := ShiftDTO{
		ID:             string(s.ID),
		OwnerID:        string(s.OwnerID),
		Kind:           string(s.Kind),
		Date:           s.Date,
		ScheduledStart: formatTime(s.ScheduledStart),
		ScheduledEnd:   formatTime(s.ScheduledEnd),
		ActualStart:    formatTimePtr(s.ActualStart),
		ActualEnd:      formatTimePtr(s.ActualEnd),
		Status:         string(s.Status),
		AutoClosed:     s.AutoClosed,
		Notes:          s.Notes,
	}
	if worked := s.Worked(); worked > 0 {
		dto.WorkedHours = decimal.NewFromInt(int64(worked / time.Second)).Div(decimal.NewFromInt(3600)).StringFixed(2)
	}
	return dto
}

func toWorkerDTO(w shifts.Worker) WorkerDTO {
	return WorkerDTO{ID: string(w.ID), Name: w.Name, Role: w.Role, Active: w.Active}
}

func toTemplateDTO(t shifts.Template) TemplateDTO {
	return TemplateDTO{
		Kind:          string(t.Kind),
		Name:          t.Name,
		StartTime:     t.StartTime,
		EndTime:       t.EndTime,
		OffsetMinutes: t.OffsetMinutes,
		Active:        t.Active,
	}
}

func toAssignmentDTO(a shifts.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:         a.ID,
		WorkerID:   string(a.WorkerID),
		ShiftKind:  string(a.Kind),
		Active:     a.Active,
		AssignedBy: a.AssignedBy,
		CreatedAt:  formatTime(a.CreatedAt),
	}
}

func toTierSetDTO(s generic.TierSet) TierSetDTO {
	dto := TierSetDTO{ID: s.ID, Name: s.Name, Scope: string(s.Scope), ShiftKind: s.ShiftKind, Active: s.Active}
	for _, t := range s.Tiers {
		dto.Tiers = append(dto.Tiers, TierDTO{Name: t.Name, Threshold: t.Threshold.String(), Rate: t.Rate.String()})
	}
	return dto
}

func toGoalDTO(g earnings.Goal) GoalDTO {
	dto := GoalDTO{
		ID:          g.ID,
		Name:        g.Name,
		Metric:      string(g.Metric),
		Granularity: string(g.Granularity),
		Role:        g.Role,
		Active:      g.Active,
		Stages:      []StageDTO{},
	}
	for _, st := range g.Stages {
		dto.Stages = append(dto.Stages, StageDTO{
			ID:       st.ID,
			Position: st.Position,
			Name:     st.Name,
			Target:   st.Target.String(),
			Reward:   st.Reward.StringFixed(2),
		})
	}
	return dto
}

func toAchievementDTO(a earnings.GoalAchievement) AchievementDTO {
	return AchievementDTO{
		ID:         a.ID,
		GoalID:     a.GoalID,
		StageID:    a.StageID,
		PeriodKey:  a.PeriodKey,
		Observed:   a.Observed.String(),
		Reward:     a.Reward.StringFixed(2),
		AchievedAt: formatTime(a.AchievedAt),
	}
}

func toAchievementDTOs(as []earnings.GoalAchievement) []AchievementDTO {
	dtos := make([]AchievementDTO, len(as))
	for i, a := range as {
		dtos[i] = toAchievementDTO(a)
	}
	return dtos
}

func toDepositDTO(d earnings.Deposit) DepositDTO {
	return DepositDTO{
		ID:            d.ID,
		WorkerID:      string(d.OwnerID),
		Amount:        d.Amount.StringFixed(2),
		Currency:      d.Currency,
		CreatedAt:     formatTime(d.CreatedAt),
		OwnerEarnings: d.OwnerEarnings.StringFixed(2),
	}
}

func toLedgerEntryDTO(e generic.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		ID:             string(e.ID),
		WorkerID:       string(e.WorkerID),
		ShiftID:        string(e.ShiftID),
		DepositID:      e.DepositID,
		Kind:           string(e.Kind),
		Amount:         e.Amount.Value.StringFixed(2),
		Trace:          e.Trace,
		Metadata:       e.Metadata,
		IdempotencyKey: e.IdempotencyKey,
		EffectiveAt:    formatTime(e.EffectiveAt),
		CreatedBy:      e.CreatedBy,
	}
}

func toLedgerEntryDTOs(entries []generic.LedgerEntry) []LedgerEntryDTO {
	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toLedgerEntryDTO(e)
	}
	return dtos
}

func toSweepResultDTO(r shifts.Result, err error) SweepResultDTO {
	dto := SweepResultDTO{Closed: []string{}, Missed: []string{}, Skipped: r.Skipped}
	for _, id := range r.Closed {
		dto.Closed = append(dto.Closed, string(id))
	}
	for _, id := range r.Missed {
		dto.Missed = append(dto.Missed, string(id))
	}
	if err != nil {
		dto.Error = err.Error()
	}
	return dto
}

func toSettlementReportDTO(r earnings.Report) SettlementReportDTO {
	dto := SettlementReportDTO{
		ShiftID:  string(r.ShiftID),
		Entries:  toLedgerEntryDTOs(r.Entries),
		Skipped:  append([]string{}, r.Skipped...),
		Awarded:  toAchievementDTOs(r.Awarded),
		Total:    r.Total().Value.StringFixed(2),
		Complete: len(r.Errors) == 0,
	}
	for _, err := range r.Errors {
		dto.Errors = append(dto.Errors, err.Error())
	}
	return dto
}
