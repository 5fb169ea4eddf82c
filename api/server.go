/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request for tracing
  2. RequestLogger:  One zerolog line per request
  3. Recoverer:      Panic recovery (500 instead of crash)
  4. CORS:           Cross-origin requests for the dashboard

  Worker routes add:
  5. RequireWorker:  X-Worker-ID header, 401 when missing
  6. Sweeper:        Closes overdue shifts before the handler reads state

ROUTE GROUPS:
  /api/shifts/*         Worker shift lifecycle
  /api/workers/*        Worker reads (earnings, shifts, achievements)
  /api/admin/*          Configuration and operations
  /api/scenarios/*      Demo scenarios
  /healthz              Liveness and next background sweep

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Request logging, worker identity, sweeps
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	origins := h.Options.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", WorkerHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok", "time": formatTime(h.Clock.Now())}
		if h.Scheduler != nil && h.Scheduler.Enabled {
			body["next_sweep"] = formatTime(h.Scheduler.NextRunTime())
		}
		writeJSON(w, http.StatusOK, body)
	})

	r.Route("/api", func(r chi.Router) {
		// Worker shift routes
		r.Route("/shifts", func(r chi.Router) {
			r.Use(RequireWorker)
			r.Use(h.Sweeper.Middleware)
			r.Get("/current", h.CurrentShift)
			r.Post("/", h.ShiftAction)
		})

		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.Get("/{id}/earnings", h.WorkerEarnings)
			r.Get("/{id}/shifts", h.WorkerShifts)
			r.Get("/{id}/assignments", h.WorkerAssignments)
			r.Get("/{id}/achievements", h.WorkerAchievements)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/workers", h.SaveWorker)
			r.Get("/templates", h.ListTemplates)
			r.Post("/templates", h.SaveTemplate)
			r.Post("/assignments", h.SaveAssignment)
			r.Get("/rates", h.GetHourlyRate)
			r.Post("/rates", h.SetHourlyRate)
			r.Get("/tier-sets", h.ListTierSets)
			r.Post("/tier-sets", h.SaveTierSet)
			r.Get("/goals", h.ListGoals)
			r.Post("/goals", h.SaveGoal)
			r.Post("/deposits", h.IngestDeposit)
			r.Post("/adjustments", h.CreateAdjustment)
			r.Post("/reconcile", h.TriggerSweep)
			r.Post("/shifts/{id}/resettle", h.ResettleShift)
			r.Post("/catalog", h.ApplyCatalog)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
