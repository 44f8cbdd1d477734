package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/relayscope/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready  bool `json:"ready"`
	Relays int  `json:"relays"`
}

// Readyz reports ready once the status index has been populated at least once.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready := !d.Index.LastUpdate().IsZero()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readyzResponse{Ready: ready, Relays: d.Index.Count()})
	}
}
