/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:       Request logging
  2. Recoverer:    Panic recovery (500 instead of crash)
  3. RequestID:    Unique ID per request for tracing
  4. CORS:         Cross-origin requests for frontend
  5. Authenticate: Bearer-token validation (all /api routes)
  6. RequireWriter: Role gate on every balance-affecting route

ROUTE GROUPS:
  /api/funds/*          Funds and their transaction history
  /api/transactions/*   Bare income/expense records
  /api/offerings/*      Offerings split across funds
  /api/advances/*       Advances and repayments
  /api/bills/*          Bills (no ledger effect)
  /api/pettycash/*      Petty cash audit records
  /api/members/*        Contributors
  /api/seed             Demo data loader (dev)
  /metrics              Prometheus metrics

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Authentication
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/stewardly/treasury/auth"
	"github.com/stewardly/treasury/metrics"
)

// NewRouter creates a router with all routes configured. A nil verifier
// disables authentication; every caller then acts as admin.
func NewRouter(h *Handler, verifier *auth.Verifier) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(verifier))

		r.Route("/funds", func(r chi.Router) {
			r.Get("/", h.ListFunds)
			r.With(RequireWriter).Post("/", h.CreateFund)
			r.Get("/{id}", h.GetFund)
			r.Get("/{id}/transactions", h.GetFundTransactions)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.With(RequireWriter).Post("/", h.CreateTransaction)
			r.With(RequireWriter).Put("/{id}", h.UpdateTransaction)
			r.With(RequireWriter).Delete("/{id}", h.DeleteTransaction)
			r.With(RequireWriter).Delete("/", h.DeleteTransaction) // ?id= form
		})

		r.Route("/offerings", func(r chi.Router) {
			r.Get("/", h.ListOfferings)
			r.With(RequireWriter).Post("/", h.CreateOffering)
			r.Get("/{id}", h.GetOffering)
			r.With(RequireWriter).Put("/{id}", h.UpdateOffering)
			r.With(RequireWriter).Delete("/{id}", h.DeleteOffering)
			r.With(RequireWriter).Delete("/", h.DeleteOffering) // ?id= form
		})

		r.Route("/advances", func(r chi.Router) {
			r.Get("/", h.ListAdvances)
			r.With(RequireWriter).Post("/", h.PostAdvance)
			r.Get("/{id}", h.GetAdvance)
			r.With(RequireWriter).Put("/{id}", h.UpdateAdvance)
			r.With(RequireWriter).Delete("/{id}", h.DeleteAdvance)
			r.With(RequireWriter).Delete("/", h.DeleteAdvance) // ?id= form
		})

		r.Route("/bills", func(r chi.Router) {
			r.Get("/", h.ListBills)
			r.With(RequireWriter).Post("/", h.CreateBill)
			r.With(RequireWriter).Put("/{id}", h.UpdateBill)
			r.With(RequireWriter).Post("/{id}/toggle", h.ToggleBill)
			r.With(RequireWriter).Delete("/{id}", h.DeleteBill)
			r.With(RequireWriter).Delete("/", h.DeleteBill) // ?id= form
		})

		r.Route("/pettycash", func(r chi.Router) {
			r.Get("/", h.ListPettyCash)
			r.With(RequireWriter).Post("/", h.CreatePettyCash)
			r.With(RequireWriter).Put("/{id}", h.UpdatePettyCash)
			r.With(RequireWriter).Delete("/{id}", h.DeletePettyCash)
			r.With(RequireWriter).Delete("/", h.DeletePettyCash) // ?id= form
		})

		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.With(RequireWriter).Post("/", h.CreateMember)
		})

		r.With(RequireWriter).Post("/seed", h.Seed)
	})

	return r
}
