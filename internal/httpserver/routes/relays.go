package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/relayscope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/mw"
)

func init() { Register("relays", registerRelays) }

// registerRelays serves the read snapshots and the probe trigger.
func registerRelays(r chi.Router, d deps.Deps) {
	r.Get("/statuses", handlers.Statuses(d))
	r.With(mw.EnforceHost(d.AllowedHosts, d.Logger), mw.RateLimit(d.RateLimit)).Post("/probe", handlers.Probe(d))
	r.With(mw.RateLimit(d.RateLimit)).Get("/suggestions", handlers.Suggestions(d))
}
