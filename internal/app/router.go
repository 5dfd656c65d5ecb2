package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/auth"
	"github.com/stockpilot/stockpilot/internal/authz"
	"github.com/stockpilot/stockpilot/internal/catalog"
	"github.com/stockpilot/stockpilot/internal/customers"
	"github.com/stockpilot/stockpilot/internal/sales"
	"github.com/stockpilot/stockpilot/internal/stock"
	"github.com/stockpilot/stockpilot/internal/transfers"
	"github.com/stockpilot/stockpilot/internal/users"
	"github.com/stockpilot/stockpilot/internal/warehouses"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Guard             authz.Middleware
	AuthHandler       *auth.Handler
	CatalogHandler    *catalog.Handler
	WarehousesHandler *warehouses.Handler
	StockHandler      *stock.Handler
	SalesHandler      *sales.Handler
	TransfersHandler  *transfers.Handler
	CustomersHandler  *customers.Handler
	UsersHandler      *users.Handler
	AuditHandler      *audit.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Login and password reset stay reachable without a token.
	r.Group(func(r chi.Router) {
		params.AuthHandler.MountPublicRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.AuthHandler.Authenticator)

		params.AuthHandler.MountRoutes(r)
		params.CatalogHandler.MountRoutes(r)
		params.WarehousesHandler.MountRoutes(r)
		params.StockHandler.MountRoutes(r)
		params.SalesHandler.MountRoutes(r)
		params.TransfersHandler.MountRoutes(r)
		params.CustomersHandler.MountRoutes(r)
		params.UsersHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(params.Guard.Require(authz.ActionAuditView))
			params.AuditHandler.MountRoutes(r)
		})
	})

	return r
}
