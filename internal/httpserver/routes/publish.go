package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/relayscope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/mw"
)

func init() { Register("publish", registerPublish) }

func registerPublish(r chi.Router, d deps.Deps) {
	w := r.With(mw.EnforceHost(d.AllowedHosts, d.Logger), mw.RateLimit(d.RateLimit))
	w.Post("/publish", handlers.Publish(d))
	w.Post("/reviews", handlers.Review(d))
}
