package debrid

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks resolvarr/services/debrid Backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"resolvarr/models"
)

// Backend is the capability set every debrid service exposes. Implementations
// hold no mutable state beyond their rate limiter and are safe for concurrent use.
type Backend interface {
	Type() models.BackendType

	// ValidateToken reports whether the credential is accepted. A rejected
	// credential yields false together with an unauthorized error.
	ValidateToken(ctx context.Context) (bool, error)
	GetAccountInfo(ctx context.Context) (*models.AccountInfo, error)

	// CheckCache returns a status for the given info-hashes, keyed by lowercase hash.
	// An empty input returns an empty map without touching the network.
	CheckCache(ctx context.Context, hashes []string) (map[string]models.CacheStatus, error)

	// AddMagnet registers the torrent and returns the backend job id.
	AddMagnet(ctx context.Context, infoHash string) (string, error)

	// SelectFiles picks files of a job; an empty list selects every file.
	SelectFiles(ctx context.Context, jobID string, fileIDs []string) error

	// GetStreamURL fails with a fileNotReady error while the backend is still
	// processing and with torrentNotFound once the job has vanished or died.
	GetStreamURL(ctx context.Context, jobID string) (*models.StreamInfo, error)

	// Unrestrict converts a backend-hosted link into a directly fetchable URL.
	Unrestrict(ctx context.Context, link string) (string, error)
}

// BackendFactory builds a client from a resolved credential.
type BackendFactory func(credential string, opts ClientOptions) Backend

var (
	factoriesMu sync.RWMutex
	factories   = make(map[models.BackendType]BackendFactory)
)

// RegisterBackend makes a client constructor available to NewBackend.
func RegisterBackend(t models.BackendType, factory BackendFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[t] = factory
}

// NewBackend builds a client of the given type.
func NewBackend(t models.BackendType, credential string, opts ClientOptions) (Backend, error) {
	factoriesMu.RLock()
	factory, ok := factories[t]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend type %q", t)
	}
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("%s: empty credential", t)
	}
	return factory(strings.TrimSpace(credential), opts), nil
}

// RegisteredBackends lists the backend types with a registered factory.
func RegisteredBackends() []models.BackendType {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	types := make([]models.BackendType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
