package handlers

import (
	"context"
	"net/http"

	"resolvarr/models"
	"resolvarr/services/debrid"
)

type backendRegistry interface {
	AvailableBackends() []models.BackendType
	Reload(ctx context.Context) error
	CheckCacheAcrossServices(ctx context.Context, hashes []string) (map[string]models.CacheHit, error)
	ResolveStream(ctx context.Context, infoHash string, preferred models.BackendType) (*models.StreamInfo, error)
	Unrestrict(ctx context.Context, backend models.BackendType, link string) (string, error)
}

type healthChecker interface {
	Check(ctx context.Context) []debrid.BackendHealth
}

var (
	_ backendRegistry = (*debrid.Registry)(nil)
	_ healthChecker   = (*debrid.HealthService)(nil)
)

// BackendsHandler exposes the configured backends and their health.
type BackendsHandler struct {
	Registry backendRegistry
	Health   healthChecker
}

func NewBackendsHandler(registry backendRegistry, health healthChecker) *BackendsHandler {
	return &BackendsHandler{Registry: registry, Health: health}
}

// List returns the active backends in priority order.
func (h *BackendsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Registry.AvailableBackends()))
}

func (h *BackendsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	results := h.Health.Check(r.Context())
	if results == nil {
		results = []debrid.BackendHealth{}
	}
	writeJSON(w, http.StatusOK, results)
}

// Reload rebuilds the backend set from storage and returns the new order.
func (h *BackendsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Reload(r.Context()); err != nil {
		logger.Error().Err(err).Msg("backend reload failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, nonNil(h.Registry.AvailableBackends()))
}

func nonNil(types []models.BackendType) []models.BackendType {
	if types == nil {
		return []models.BackendType{}
	}
	return types
}
