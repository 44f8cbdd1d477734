package handlers

import (
	"net/http"
	"sort"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
)

type probeRequest struct {
	URLs []string `json:"urls"`
}

type probeResponse struct {
	Statuses []domain.RelayStatus `json:"statuses"`
	Rejected []string             `json:"rejected,omitempty"`
}

// Probe tests the given relays, or every configured relay for an empty
// body, and answers once all probes have settled.
func Probe(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req probeRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		urls := req.URLs
		if len(urls) == 0 {
			urls = d.CurrentLists().All()
		}

		var valid, rejected []string
		for _, u := range urls {
			if domain.IsValidRelayURL(u) {
				valid = append(valid, u)
			} else {
				rejected = append(rejected, u)
			}
		}
		if len(valid) == 0 {
			writeError(w, http.StatusBadRequest, "no valid relay urls to probe")
			return
		}

		results := d.Prober.ProbeMany(r.Context(), valid)

		statuses := make([]domain.RelayStatus, 0, len(results))
		for _, s := range results {
			statuses = append(statuses, s)
		}
		sort.Slice(statuses, func(i, j int) bool { return statuses[i].Identity < statuses[j].Identity })

		if d.StatusStore != nil {
			if err := d.StatusStore.SaveStatuses(r.Context(), statuses); err != nil {
				d.Logger.Warn("failed to persist probe results", logger.Error(err))
			}
		}

		writeJSON(w, http.StatusOK, probeResponse{Statuses: statuses, Rejected: rejected})
	}
}
