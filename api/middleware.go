package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shifts"
	"golang.org/x/time/rate"
)

// =============================================================================
// REQUEST LOGGING
// =============================================================================

// RequestLogger logs one line per request, at error level for 5xx and
// warn level for 4xx.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			var event *zerolog.Event
			switch {
			case status >= 500:
				event = log.Error()
			case status >= 400:
				event = log.Warn()
			default:
				event = log.Info()
			}
			event.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("worker_id", string(WorkerFrom(r.Context()))).
				Msg("request processed")
		})
	}
}

// =============================================================================
// WORKER IDENTITY
// =============================================================================

// WorkerHeader carries the authenticated worker id, set by the upstream
// auth layer.
const WorkerHeader = "X-Worker-ID"

type ctxKey int

const workerKey ctxKey = iota

// RequireWorker rejects requests without a worker id with 401.
func RequireWorker(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(WorkerHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing "+WorkerHeader+" header", nil)
			return
		}
		ctx := context.WithValue(r.Context(), workerKey, generic.WorkerID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WorkerFrom(ctx context.Context) generic.WorkerID {
	id, _ := ctx.Value(workerKey).(generic.WorkerID)
	return id
}

// =============================================================================
// PULL-BASED RECONCILIATION
// =============================================================================

// Sweeper reconciles overdue shifts before a worker request is served: the
// requesting worker's shifts always, everyone's at most once per limiter
// token. Sweep failures are logged and never fail the request.
type Sweeper struct {
	Reconciler *shifts.Reconciler
	Limiter    *rate.Limiter // nil disables the global sweep
	Log        zerolog.Logger
}

func NewSweeper(r *shifts.Reconciler, every time.Duration, log zerolog.Logger) *Sweeper {
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	return &Sweeper{Reconciler: r, Limiter: rate.NewLimiter(limit, 1), Log: log}
}

func (s *Sweeper) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if worker := WorkerFrom(ctx); worker != "" {
			res, err := s.Reconciler.SweepOwner(ctx, worker)
			s.logResult("owner", res, err)
		}
		if s.Limiter != nil && s.Limiter.Allow() {
			res, err := s.Reconciler.Sweep(ctx)
			s.logResult("global", res, err)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Sweeper) logResult(scope string, res shifts.Result, err error) {
	if err != nil {
		s.Log.Warn().Err(err).Str("scope", scope).Msg("reconcile sweep failed")
		return
	}
	if len(res.Closed)+len(res.Missed) > 0 {
		s.Log.Info().
			Str("scope", scope).
			Int("closed", len(res.Closed)).
			Int("missed", len(res.Missed)).
			Msg("reconcile sweep")
	}
}
