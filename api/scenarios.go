/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario is a YAML catalog (see
	factory/catalog.go) applied to an empty database.

AVAILABLE SCENARIOS:
	day-shift:      One processor on a 06:00-14:00 shift, flat hourly rate
	night-shift:    22:00-06:00 shift crossing midnight
	tiered-bonuses: Shift and monthly tier sets with deposits today
	goals:          Daily deposit-count and monthly earnings goals

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Substitute {{today}} with today's business date
 3. Parse and apply the catalog
 4. Invalidate the pay configuration cache

USAGE VIA API:
	POST /api/scenarios/load
	{"scenario_id": "tiered-bonuses"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description and catalog YAML

NOTE:
	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - factory/catalog.go: Catalog schema
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	catalog string
}

const baseCatalog = `
hourly_rate: "2.50"
workers:
  - {id: w-1, name: Ana Petrova, role: processor}
  - {id: w-2, name: Ben Okafor, role: processor}
  - {id: w-3, name: Chen Li, role: closer}
templates:
  - {kind: day, name: Day, start: "06:00", end: "14:00"}
  - {kind: evening, name: Evening, start: "14:00", end: "22:00"}
  - {kind: night, name: Night, start: "22:00", end: "06:00"}
`

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "day-shift",
			Name:        "Day Shift",
			Description: "One processor on the day shift at $2.50/h, no bonuses",
		},
		catalog: baseCatalog + `
assignments:
  - {worker: w-1, kind: day}
`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "night-shift",
			Name:        "Night Shift",
			Description: "22:00-06:00 shift that ends on the next calendar day",
		},
		catalog: baseCatalog + `
assignments:
  - {worker: w-2, kind: night}
  - {worker: w-3, kind: evening}
`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "tiered-bonuses",
			Name:        "Tiered Bonuses",
			Description: "Shift volume tiers per kind plus a month-end volume tier set",
		},
		catalog: baseCatalog + `
assignments:
  - {worker: w-1, kind: day}
  - {worker: w-2, kind: evening}
tier_sets:
  - name: Day volume
    scope: shift
    shift_kind: day
    tiers:
      - {name: Bronze, threshold: "0", rate: "0.5"}
      - {name: Silver, threshold: "500", rate: "1.0"}
      - {name: Gold, threshold: "1000", rate: "1.5"}
  - name: Evening volume
    scope: shift
    shift_kind: evening
    tiers:
      - {name: Bronze, threshold: "0", rate: "0.75"}
      - {name: Gold, threshold: "2000", rate: "2.0"}
  - name: Monthly volume
    scope: monthly
    tiers:
      - {name: Starter, threshold: "0", rate: "0.25"}
      - {name: Pro, threshold: "20000", rate: "0.5"}
deposits:
  - {id: demo-dep-1, worker: w-1, amount: "450", at: "{{today}}T08:15:00+03:00", commission_rate: "1", owner_earnings: "4.50"}
  - {id: demo-dep-2, worker: w-1, amount: "750", at: "{{today}}T11:40:00+03:00", commission_rate: "1", owner_earnings: "7.50"}
  - {id: demo-dep-3, worker: w-2, amount: "2400", at: "{{today}}T16:05:00+03:00", commission_rate: "0.8", owner_earnings: "19.20"}
`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "goals",
			Name:        "Goals",
			Description: "Staged daily deposit goal and a monthly earnings goal for processors",
		},
		catalog: baseCatalog + `
assignments:
  - {worker: w-1, kind: day}
  - {worker: w-3, kind: day}
goals:
  - id: daily-deposits
    name: Daily deposits
    metric: deposit_count
    granularity: daily
    role: processor
    stages:
      - {name: Warm-up, target: "3", reward: "2"}
      - {name: Busy day, target: "5", reward: "5"}
  - id: monthly-earnings
    name: Monthly earnings
    metric: earnings
    granularity: monthly
    stages:
      - {name: First 100, target: "100", reward: "10"}
deposits:
  - {id: demo-dep-1, worker: w-1, amount: "100", at: "{{today}}T07:00:00+03:00", owner_earnings: "1.00"}
  - {id: demo-dep-2, worker: w-1, amount: "150", at: "{{today}}T08:30:00+03:00", owner_earnings: "1.50"}
  - {id: demo-dep-3, worker: w-1, amount: "200", at: "{{today}}T10:00:00+03:00", owner_earnings: "2.00"}
  - {id: demo-dep-4, worker: w-1, amount: "80", at: "{{today}}T12:45:00+03:00", owner_earnings: "0.80"}
`,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	id := h.currentScenario
	h.mu.Unlock()

	if s, ok := findScenario(id); ok {
		writeJSON(w, http.StatusOK, s.ScenarioDTO)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, ok := findScenario(req.ScenarioID); !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	sum, err := h.loadScenario(r.Context(), req.ScenarioID)
	if err != nil {
		h.writeDomainError(w, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}
	writeJSON(w, http.StatusOK, CatalogResultDTO{Scenario: req.ScenarioID, Summary: sum})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reset database", err)
		return
	}
	h.Config.Invalidate()
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) loadScenario(ctx context.Context, id string) (factory.Summary, error) {
	s, _ := findScenario(id)

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return factory.Summary{}, err
	}
	h.Config.Invalidate()
	h.currentScenario = ""

	data := strings.ReplaceAll(s.catalog, "{{today}}", generic.DateKey(h.Clock.Now()))
	sum, err := h.applyCatalog(ctx, []byte(data))
	if err != nil {
		return sum, err
	}
	h.currentScenario = id
	return sum, nil
}
