/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/leads/*   Lead management and arbitrated mutations
  /api/sales     Sale recording
  /api/reps/*    Per-rep ledger reads
  /api/admin/*   Commission status, pay runs, demo seed

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Lead routes
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", h.ListLeads)
			r.Post("/", h.CreateLead)
			r.Get("/{id}", h.GetLead)
			r.Get("/{id}/history", h.GetLeadHistory)
			r.Post("/{id}/mutations", h.MutateLead)
		})

		// Sale routes
		r.Post("/sales", h.RecordSale)

		// Rep ledger routes
		r.Route("/reps/{id}", func(r chi.Router) {
			r.Get("/ledger", h.GetLedger)
			r.Get("/commissions", h.ListRepCommissions)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/commissions/{id}/status", h.SetCommissionStatus)
			r.Post("/payruns", h.TriggerPayRun)
			r.Post("/seed", h.LoadDemoData)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Sales Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Sales Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/leads">/api/leads</a> - List leads</li>
<li>/api/reps/{id}/ledger - Ledger summary</li>
<li>/api/reps/{id}/commissions - Commission records</li>
</ul>
</body>
</html>`))
	})

	return r
}
