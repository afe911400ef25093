package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acdb/stockroom/internal/command"
	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/ledger"
	"github.com/acdb/stockroom/internal/metrics"
	"github.com/acdb/stockroom/internal/notify"
)

// Deps holds everything the router wires together.
type Deps struct {
	DB         *db.DB
	Ledger     *ledger.Ledger
	Dispatcher *command.Dispatcher
	Notifier   notify.Sender
	JWTSecret  string

	// Metrics and Gatherer are optional; /metrics is served only with a
	// Gatherer.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	// RateLimitPerMinute of zero disables rate limiting.
	RateLimitPerMinute int

	Info ServiceInfo
}

// NewRouter creates the API router with all endpoints registered. The
// returned stop function releases background resources.
func NewRouter(d Deps) (http.Handler, func()) {
	r := chi.NewRouter()

	var obs StatusObserver
	if d.Metrics != nil {
		obs = d.Metrics
	}
	r.Use(RequestIDMiddleware, LoggingMiddleware(obs))

	status := &StatusHandler{DB: d.DB, Service: d.Info}
	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret}
	inventory := &InventoryHandler{Ledger: d.Ledger}
	items := &ItemsHandler{Ledger: d.Ledger}
	commands := &CommandsHandler{Dispatcher: d.Dispatcher, Notifier: d.Notifier}

	r.Get("/", status.Index)
	r.Get("/info", status.Info)
	r.Get("/healthz", status.Health)
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	r.Post("/api/auth/login", authHandler.Login)

	stop := func() {}
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(d.JWTSecret, d.DB))
		if d.RateLimitPerMinute > 0 {
			rl := NewRateLimiter(d.RateLimitPerMinute, 10*time.Minute)
			stop = rl.Stop
			r.Use(rl.Middleware)
		}

		r.Post("/api/auth/logout", authHandler.Logout)

		r.Get("/api/categories", inventory.ListCategories)
		r.Get("/api/categories/{id}/lists", inventory.ListLists)
		r.Get("/api/lists/{id}/items", inventory.ListItems)
		r.Get("/api/items/{id}", items.Get)
		r.Get("/api/items/{id}/history", items.History)

		r.Post("/api/items/{id}/apply", items.Apply)
		r.Post("/api/items/{id}/return", items.Return)
		r.Post("/api/commands", commands.Run)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/api/categories", inventory.CreateCategory)
			r.Post("/api/lists", inventory.CreateList)
			r.Post("/api/lists/{id}/items", inventory.AddItems)
			r.Post("/api/items/{id}/approve", items.Approve)
			r.Post("/api/items/{id}/reject", items.Reject)
			r.Post("/api/items/{id}/lend", items.Lend)
			r.Post("/api/items/{id}/repair", items.Repair)
			r.Post("/api/items/{id}/scrap", items.Scrap)
		})
	})

	return r, stop
}
