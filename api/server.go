/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and the route table.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:   Unique ID per request for tracing
  2. CORS:        Cross-origin requests for the frontend
  3. httplog:     Structured access log (ECS schema) on the handler's slog logger
  4. CleanPath:   Collapse double slashes
  5. Recoverer:   Panic recovery (500 instead of crash)
  6. Heartbeat:   GET /health for load balancers
  7. RateLimit:   Token bucket per client on /api

ROUTE GROUPS:
  /api/employees/*      Employees, rates, leave, entries per employee
  /api/entries/*        Compute, validate, trash, restore
  /api/services/*       Instructor service contexts
  /api/reports/*        Period aggregation
  /api/admin/leave/*    Year-end reconciliation
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - ratelimit.go: Per-client limiter
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// RouterOptions tunes the middleware stack. RateLimitRPS <= 0 disables
// rate limiting.
type RouterOptions struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	LogLevel       slog.Level
}

// DefaultRouterOptions matches the local frontend dev servers.
func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		RateLimitRPS:   20,
		RateLimitBurst: 40,
		LogLevel:       slog.LevelInfo,
	}
}

// NewLogger is the JSON slog logger shared by the access log, handlers and
// the scheduler.
func NewLogger(env string, level slog.Level) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(env != "production")
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "staff-pay-engine"),
		slog.String("env", env),
	)
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httplog.RequestLogger(h.Logger, &httplog.Options{
		Level:  opts.LogLevel,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.CleanPath)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetEmployee)
				r.Get("/rates", h.ListRates)
				r.Post("/rates", h.CreateRate)
				r.Get("/rate", h.ResolveRate)
				r.Get("/leave-value", h.GetLeaveValue)
				r.Get("/leave-balance", h.GetLeaveBalance)
				r.Get("/ledger", h.GetLedger)
				r.Get("/entries", h.ListEntries)
				r.Post("/entries", h.SaveEntries)
			})
		})

		// Entry routes
		r.Route("/entries", func(r chi.Router) {
			r.Post("/compute", h.ComputeEntries)
			r.Post("/validate", h.ValidateEntries)
			r.Delete("/{id}", h.TrashEntry)
			r.Post("/{id}/restore", h.RestoreEntry)
		})

		// Service routes
		r.Route("/services", func(r chi.Router) {
			r.Get("/", h.ListServices)
			r.Post("/", h.CreateService)
		})

		// Report routes
		r.Get("/reports/period", h.PeriodReport)

		// Admin routes
		r.Route("/admin/leave", func(r chi.Router) {
			r.Post("/reconcile", h.Reconcile)
			r.Get("/runs", h.ListReconciliationRuns)
			r.Get("/scheduler", h.GetSchedulerStatus)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/", h.LoadScenario)
			r.Get("/current", h.GetCurrentScenario)
		})
	})

	return r
}
