package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
)

// Suggestions ranks relays used by the subject's contacts. The subject
// defaults to the signing key's owner; ?refresh=1 bypasses the cache.
func Suggestions(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		subject := strings.ToLower(strings.TrimSpace(q.Get("subject")))
		if subject == "" && d.Publisher != nil {
			subject = d.Publisher.Subject()
		}
		refresh := q.Get("refresh") == "1" || q.Get("refresh") == "true"

		if subject != "" && !refresh && d.Suggestions != nil {
			cached, err := d.Suggestions.Get(ctx, subject)
			if err != nil {
				d.Logger.Warn("suggestion cache read failed", logger.Error(err))
			}
			if cached != nil {
				w.Header().Set("X-Cache", "hit")
				writeJSON(w, http.StatusOK, cached)
				return
			}
		}

		set, err := d.Aggregator.Aggregate(ctx, subject, d.CurrentLists().All())
		if err != nil {
			if errors.Is(err, domain.ErrNoSubject) {
				writeError(w, http.StatusBadRequest, "subject is required")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if d.Suggestions != nil {
			if err := d.Suggestions.Put(ctx, set); err != nil {
				d.Logger.Warn("suggestion cache write failed", logger.Error(err))
			}
		}
		w.Header().Set("X-Cache", "miss")
		writeJSON(w, http.StatusOK, set)
	}
}
