package handlers

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/deps"
)

type statusesResponse struct {
	Statuses []domain.RelayStatus `json:"statuses"`
	Counts   map[domain.State]int `json:"counts"`
}

// Statuses returns a snapshot of the status index. ?url= narrows it to the
// given relays (comma separated, any URL form).
func Statuses(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := d.Index.List()

		if raw := strings.TrimSpace(r.URL.Query().Get("url")); raw != "" {
			statuses = statuses[:0]
			for _, u := range domain.Deduplicate(strings.Split(raw, ",")) {
				if s, ok := d.Index.Get(u); ok {
					statuses = append(statuses, s)
				}
			}
		}

		counts := make(map[domain.State]int)
		for _, s := range statuses {
			counts[s.State]++
		}
		writeJSON(w, http.StatusOK, statusesResponse{Statuses: statuses, Counts: counts})
	}
}
