package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"comandas/internal/mw"
)

type Deps struct {
	Orders      OrderService
	Statuses    StatusService
	Settlements SettlementService
	Totals      TotalsService
	Events      EventSource
	TotalsFeed  TotalsSubscriber
	DB          Pinger

	// HealthChecks are extra dependencies reported by /api/health.
	HealthChecks []Checker

	JWTSecret   string
	CORSOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/api/health", HealthHandler(d.DB, d.Events, d.TotalsFeed, d.HealthChecks...))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(d.JWTSecret))

		r.Get("/api/orders", ListOpenOrdersHandler(d.Orders))
		r.Get("/api/orders/{id}", GetOrderHandler(d.Orders))
		r.Get("/api/ws", WebSocketHandler(d.Events, d.TotalsFeed, d.CORSOrigins))

		r.With(mw.RequireRole(mw.RoleWaiter)).Post("/api/orders", SubmitOrderHandler(d.Orders))
		r.With(mw.RequireRole(mw.RoleWaiter)).Delete("/api/orders/{id}", DeleteOrderHandler(d.Orders))

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(mw.RoleWaiter, mw.RoleCook))
			r.Patch("/api/orders/{id}/status", SetOrderStatusHandler(d.Statuses))
			r.Patch("/api/items/{id}/status", SetItemStatusHandler(d.Statuses))
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(mw.RoleCashier))
			r.Post("/api/settlements", SettleHandler(d.Settlements))
			r.Get("/api/totals", CurrentTotalsHandler(d.Totals))
			r.Get("/api/totals/{table}", TableDetailHandler(d.Totals))
		})
	})

	return r
}
