/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/timesheets/*     Timesheet lifecycle
  /api/admin/*          Collaborator table seeding (privileged)
  /healthz              Liveness probe

SECURITY NOTE:
  Authentication is the gateway's job; this layer trusts the forwarded
  identity headers (see handlers.go). Deploy behind something that strips
  client-supplied copies of those headers.

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-Id", "X-Actor-Role", "X-Employee-Id", "X-Company-Id"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/timesheets", func(r chi.Router) {
			r.Get("/", h.ListTimesheets)
			r.Post("/", h.CreateTimesheet)
			r.Get("/stats", h.GetStats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetTimesheet)
				r.Put("/", h.UpdateTimesheet)
				r.Delete("/", h.DeleteTimesheet)
				r.Post("/submit", h.SubmitTimesheet)
				r.Post("/approve", h.ApproveTimesheet)
				r.Post("/reject", h.RejectTimesheet)
				if h.Admin != nil {
					r.Get("/audit", h.GetAuditTrail)
				}
			})
		})

		// Seed routes, only wired when the store can serve them
		if h.Admin != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Post("/attendance", h.PutAttendance)
				r.Post("/shifts", h.PutShift)
				r.Post("/employees", h.PutEmployee)
			})
		}
	})

	return r
}
