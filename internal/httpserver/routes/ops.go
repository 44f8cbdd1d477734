package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/relayscope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/mw"
)

func init() { Register("ops", registerOps) }

// registerOps exposes health and infrastructure endpoints to allowed CIDRs only.
func registerOps(r chi.Router, d deps.Deps) {
	ops := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	ops.Get("/healthz", handlers.Healthz(d))
	ops.Get("/readyz", handlers.Readyz(d))
	ops.Get("/infra", handlers.Infra(d))
	if d.Metrics != nil {
		ops.Handle("/metrics", d.Metrics.Handler())
	}
}
