package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/relayscope/internal/publish"
)

type publishResponse struct {
	*domain.PublicationOutcome
	Summary string `json:"summary"`
}

// Publish signs and publishes the posted relay lists, one record per
// non-empty category. Partial failure still answers 200; the outcome
// names the failed categories.
func Publish(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var lists domain.RelayLists
		if err := decodeBody(w, r, &lists); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		outcome, err := d.Publisher.Publish(r.Context(), lists, publishOptions(d, r))
		if err != nil {
			writePreconditionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, publishResponse{PublicationOutcome: outcome, Summary: outcome.Summary()})
	}
}

type reviewRequest struct {
	URL     string  `json:"url"`
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment"`
}

// Review publishes a relay review with a rating in [0,1].
func Review(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		rec, err := d.Publisher.Review(r.Context(), req.URL, req.Rating, req.Comment, publishOptions(d, r))
		if err != nil {
			writePreconditionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// publishOptions adds the client tag only for requests that reached us
// over TLS, directly or through a trusted proxy.
func publishOptions(d deps.Deps, r *http.Request) publish.Options {
	secure := r.TLS != nil
	if !secure && d.TrustProxy {
		secure = strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	}
	return publish.Options{SecureOrigin: secure, ClientName: d.ClientName}
}

func writePreconditionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoSubject):
		writeError(w, http.StatusPreconditionFailed, "no signing key configured")
	case errors.Is(err, domain.ErrNothingToPublish):
		writeError(w, http.StatusBadRequest, "nothing to publish")
	case errors.Is(err, domain.ErrUnsupportedScheme), errors.Is(err, domain.ErrInvalidRelayURL):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
