package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"resolvarr/services/debrid"
)

var logger = log.With().Str("component", "api").Logger()

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug().Err(err).Msg("write response")
	}
}

// StatusForError maps a backend error kind onto an HTTP status. Credential
// problems are upstream failures, so they surface as 502 rather than 401.
func StatusForError(err error) int {
	var e *debrid.Error
	if !errors.As(err, &e) {
		return http.StatusBadGateway
	}
	switch e.Kind {
	case debrid.KindInvalidHash:
		return http.StatusBadRequest
	case debrid.KindRateLimited:
		return http.StatusTooManyRequests
	case debrid.KindTorrentNotFound:
		return http.StatusNotFound
	case debrid.KindTimeout:
		return http.StatusGatewayTimeout
	case debrid.KindUnsupported:
		return http.StatusNotImplemented
	case debrid.KindNoBackends:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	if kind := debrid.KindOf(err); kind != 0 {
		resp.Kind = kind.String()
	}
	writeJSON(w, StatusForError(err), resp)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: "bad_request"})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
