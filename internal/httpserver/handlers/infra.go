package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/deps"
)

type componentStatus struct {
	OK         bool           `json:"ok"`
	Relays     *int           `json:"relays,omitempty"`
	States     map[string]int `json:"states,omitempty"`
	LastUpdate string         `json:"last_update,omitempty"`
	Mode       string         `json:"mode,omitempty"`
	Impact     string         `json:"impact,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count := d.Index.Count()
		lastUpdate := "never"
		if t := d.Index.LastUpdate(); !t.IsZero() {
			lastUpdate = t.UTC().Format(time.RFC3339)
		}
		states := make(map[string]int)
		for state, n := range d.Index.CountByState() {
			states[string(state)] = n
		}

		components := map[string]componentStatus{
			"index": {
				OK:         count > 0,
				Relays:     &count,
				States:     states,
				LastUpdate: lastUpdate,
			},
			"redis":  checkRedis(r.Context(), d),
			"signer": checkSigner(d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	if idx, ok := components["index"]; ok && !idx.OK {
		return "critical" // nothing probed yet
	}
	if redis, ok := components["redis"]; ok && !redis.OK {
		return "degraded"
	}
	if signer, ok := components["signer"]; ok && !signer.OK {
		return "read-only"
	}
	return "operational"
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.StatusStore == nil {
		return componentStatus{
			OK:     true,
			Mode:   "memory",
			Impact: "statuses-not-persisted",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := d.StatusStore.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "statuses-not-persisted",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: "redis"}
}

func checkSigner(d deps.Deps) componentStatus {
	if d.Publisher == nil || d.Publisher.Subject() == "" {
		return componentStatus{
			OK:     false,
			Impact: "publishing-disabled",
			Error:  domain.ErrNoSubject.Error(),
		}
	}
	return componentStatus{OK: true, Mode: "local-key"}
}
