package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/relayscope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
)

// Reload re-reads the relay list file, re-probes, and drops cached suggestions.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Suggestions != nil {
			if err := d.Suggestions.Flush(r.Context()); err != nil {
				d.Logger.Warn("failed to flush suggestion cache", logger.Error(err))
			}
		}

		select {
		case d.ReloadTrigger <- struct{}{}:
			d.Logger.Info("manual reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "reload triggered"})
		default:
			d.Logger.Warn("reload already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			writeError(w, http.StatusTooManyRequests, "reload already in progress, please wait")
		}
	}
}
