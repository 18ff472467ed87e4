package handlers

import (
	"net/http"
	"strings"
	"time"

	"resolvarr/models"
)

// StreamsHandler answers cache probes and turns info-hashes into stream URLs.
type StreamsHandler struct {
	Registry backendRegistry
}

func NewStreamsHandler(registry backendRegistry) *StreamsHandler {
	return &StreamsHandler{Registry: registry}
}

// CheckCache fans the hashes out to every backend and returns the arbitrated
// status per hash.
func (h *StreamsHandler) CheckCache(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Hashes []string `json:"hashes"`
	}
	if err := decodeBody(r, &request); err != nil {
		badRequest(w, err.Error())
		return
	}

	hits, err := h.Registry.CheckCacheAcrossServices(r.Context(), request.Hashes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

// Resolve produces a playable stream, optionally on a preferred backend.
func (h *StreamsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Hash    string `json:"hash"`
		Backend string `json:"backend,omitempty"`
	}
	if err := decodeBody(r, &request); err != nil {
		badRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(request.Hash) == "" {
		badRequest(w, "hash is required")
		return
	}

	var preferred models.BackendType
	if request.Backend != "" {
		t, ok := models.ParseBackendType(request.Backend)
		if !ok {
			badRequest(w, "unknown backend "+request.Backend)
			return
		}
		preferred = t
	}

	start := time.Now()
	info, err := h.Registry.ResolveStream(r.Context(), request.Hash, preferred)
	if err != nil {
		logger.Warn().Err(err).Str("hash", request.Hash).Dur("took", time.Since(start)).Msg("resolve failed")
		writeError(w, err)
		return
	}
	logger.Info().Str("hash", request.Hash).Str("backend", string(info.Backend)).Dur("took", time.Since(start)).Msg("stream resolved")
	writeJSON(w, http.StatusOK, info)
}

// Unrestrict converts a hoster link through the named backend.
func (h *StreamsHandler) Unrestrict(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Backend string `json:"backend"`
		Link    string `json:"link"`
	}
	if err := decodeBody(r, &request); err != nil {
		badRequest(w, err.Error())
		return
	}
	t, ok := models.ParseBackendType(request.Backend)
	if !ok {
		badRequest(w, "unknown backend "+request.Backend)
		return
	}
	if strings.TrimSpace(request.Link) == "" {
		badRequest(w, "link is required")
		return
	}

	url, err := h.Registry.Unrestrict(r.Context(), t, request.Link)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
