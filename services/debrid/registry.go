package debrid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"resolvarr/models"
	"resolvarr/utils/parsett"
)

// ErrSecretNotFound is returned by a SecretStore when the key is absent.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves opaque credential references.
type SecretStore interface {
	GetSecret(ctx context.Context, key string) (string, error)
	SetSecret(ctx context.Context, value, key string) error
	DeleteSecret(ctx context.Context, key string) error
}

// ConfigStore persists backend configurations.
type ConfigStore interface {
	ListBackendConfigs(ctx context.Context) ([]models.BackendConfig, error)
	GetBackendConfig(ctx context.Context, id string) (*models.BackendConfig, error)
	SaveBackendConfig(ctx context.Context, cfg models.BackendConfig) error
	DeleteBackendConfig(ctx context.Context, id string) error
}

// ResolutionObserver receives registry level outcomes (metrics).
type ResolutionObserver interface {
	ObserveCacheProbe(backend models.BackendType, outcome string)
	ObserveResolution(backend models.BackendType, outcome string, attempts int, took time.Duration)
}

type noopResolutionObserver struct{}

func (noopResolutionObserver) ObserveCacheProbe(models.BackendType, string) {}
func (noopResolutionObserver) ObserveResolution(models.BackendType, string, int, time.Duration) {
}

// registryState is published as one unit; it is never mutated after Store.
type registryState struct {
	backends   map[models.BackendType]Backend
	priorities map[models.BackendType]int
	order      []models.BackendType // priority ascending, then type name
}

var emptyState = &registryState{
	backends:   map[models.BackendType]Backend{},
	priorities: map[models.BackendType]int{},
}

// Registry owns the configured backend clients and coordinates cache probes
// and stream resolution across them.
type Registry struct {
	configs  ConfigStore
	secrets  SecretStore
	factory  func(models.BackendType, string, ClientOptions) (Backend, error)
	options  func(models.BackendType) ClientOptions
	poll     PollPolicy
	observer ResolutionObserver
	logger   zerolog.Logger

	state  atomic.Pointer[registryState]
	mu     sync.Mutex
	reload singleflight.Group
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithBackendFactory replaces NewBackend as the client constructor.
func WithBackendFactory(factory func(models.BackendType, string, ClientOptions) (Backend, error)) RegistryOption {
	return func(r *Registry) { r.factory = factory }
}

// WithClientOptions supplies per-backend client options (rate limits, observer).
func WithClientOptions(fn func(models.BackendType) ClientOptions) RegistryOption {
	return func(r *Registry) { r.options = fn }
}

// WithPollPolicy overrides the resolve poll loop settings.
func WithPollPolicy(p PollPolicy) RegistryOption {
	return func(r *Registry) { r.poll = p }
}

// WithResolutionObserver registers a metrics sink.
func WithResolutionObserver(o ResolutionObserver) RegistryOption {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// NewRegistry creates an empty registry. Call Reload to load backends.
func NewRegistry(configs ConfigStore, secrets SecretStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		configs:  configs,
		secrets:  secrets,
		factory:  NewBackend,
		options:  func(models.BackendType) ClientOptions { return ClientOptions{} },
		poll:     DefaultPollPolicy(),
		observer: noopResolutionObserver{},
		logger:   log.With().Str("component", "registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.state.Store(emptyState)
	return r
}

func (r *Registry) snapshot() *registryState {
	if s := r.state.Load(); s != nil {
		return s
	}
	return emptyState
}

// Reload rebuilds the client set from the config and secret stores and
// publishes it atomically. Concurrent callers share one in-flight reload.
// On error the previous set stays active.
func (r *Registry) Reload(ctx context.Context) error {
	_, err, _ := r.reload.Do("reload", func() (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		next, err := r.buildState(ctx)
		if err != nil {
			return nil, err
		}
		r.state.Store(next)
		r.logger.Info().Int("backends", len(next.order)).Strs("order", typeNames(next.order)).Msg("backends loaded")
		return nil, nil
	})
	return err
}

func (r *Registry) buildState(ctx context.Context) (*registryState, error) {
	if r.configs == nil {
		return emptyState, nil
	}
	configs, err := r.configs.ListBackendConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list backend configs: %w", err)
	}
	sort.SliceStable(configs, func(i, j int) bool {
		if configs[i].Priority != configs[j].Priority {
			return configs[i].Priority < configs[j].Priority
		}
		return configs[i].ID < configs[j].ID
	})

	next := &registryState{
		backends:   make(map[models.BackendType]Backend, len(configs)),
		priorities: make(map[models.BackendType]int, len(configs)),
	}
	for _, cfg := range configs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !cfg.Active {
			continue
		}
		if _, dup := next.backends[cfg.Type]; dup {
			r.logger.Warn().Str("id", cfg.ID).Str("backend", string(cfg.Type)).Msg("duplicate backend config ignored")
			continue
		}
		if r.secrets == nil {
			continue
		}
		credential, err := r.secrets.GetSecret(ctx, cfg.CredentialRef)
		if err != nil || strings.TrimSpace(credential) == "" {
			r.logger.Warn().Err(err).Str("id", cfg.ID).Str("backend", string(cfg.Type)).Msg("credential unavailable, backend skipped")
			continue
		}
		client, err := r.factory(cfg.Type, credential, r.options(cfg.Type))
		if err != nil {
			r.logger.Warn().Err(err).Str("id", cfg.ID).Str("backend", string(cfg.Type)).Msg("backend client not created")
			continue
		}
		next.backends[cfg.Type] = client
		next.priorities[cfg.Type] = cfg.Priority
		next.order = append(next.order, cfg.Type)
	}
	sortByPriority(next.order, next.priorities)
	return next, nil
}

func sortByPriority(types []models.BackendType, priorities map[models.BackendType]int) {
	sort.SliceStable(types, func(i, j int) bool {
		pi, pj := priorities[types[i]], priorities[types[j]]
		if pi != pj {
			return pi < pj
		}
		return types[i] < types[j]
	})
}

func typeNames(types []models.BackendType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// AvailableBackends returns the configured backend types ordered by priority
// and then name.
func (r *Registry) AvailableBackends() []models.BackendType {
	s := r.snapshot()
	out := make([]models.BackendType, len(s.order))
	copy(out, s.order)
	return out
}

// Priority returns the configured priority of a backend.
func (r *Registry) Priority(t models.BackendType) (int, bool) {
	p, ok := r.snapshot().priorities[t]
	return p, ok
}

// Backend returns the configured client of the given type.
func (r *Registry) Backend(t models.BackendType) (Backend, bool) {
	b, ok := r.snapshot().backends[t]
	return b, ok
}

// Unrestrict converts a backend-hosted link using the given backend.
func (r *Registry) Unrestrict(ctx context.Context, t models.BackendType, link string) (string, error) {
	b, ok := r.Backend(t)
	if !ok {
		return "", newError(t, KindNoBackends, "backend "+string(t)+" is not configured")
	}
	return b.Unrestrict(ctx, link)
}

type probeResult struct {
	backend  models.BackendType
	priority int
	statuses map[string]models.CacheStatus
}

// CheckCacheAcrossServices probes every configured backend concurrently and
// merges the answers. A failing backend contributes nothing. For each hash a
// cached answer beats any non-cached one, a cached answer from a strictly
// lower priority number beats another cached one, and otherwise the first
// answer in priority order is kept. Every input hash is present in the result.
func (r *Registry) CheckCacheAcrossServices(ctx context.Context, hashes []string) (map[string]models.CacheHit, error) {
	normalized := normalizeHashes(hashes)
	result := make(map[string]models.CacheHit, len(normalized))
	if len(normalized) == 0 {
		return result, nil
	}

	s := r.snapshot()
	if len(s.order) > 0 {
		p := pool.NewWithResults[probeResult]().WithMaxGoroutines(len(s.order))
		for _, t := range s.order {
			backend := s.backends[t]
			priority := s.priorities[t]
			p.Go(func() probeResult {
				statuses, err := backend.CheckCache(ctx, normalized)
				if err != nil {
					r.logger.Warn().Err(err).Str("backend", string(backend.Type())).Msg("cache probe failed")
					r.observer.ObserveCacheProbe(backend.Type(), "error")
					return probeResult{backend: backend.Type(), priority: priority}
				}
				r.observer.ObserveCacheProbe(backend.Type(), "ok")
				return probeResult{backend: backend.Type(), priority: priority, statuses: statuses}
			})
		}
		probes := p.Wait()
		mergeProbes(result, normalized, probes)
	}

	for _, h := range normalized {
		if _, ok := result[h]; !ok {
			result[h] = models.CacheHit{Status: models.UnknownCache()}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func mergeProbes(result map[string]models.CacheHit, wanted []string, probes []probeResult) {
	sort.SliceStable(probes, func(i, j int) bool {
		if probes[i].priority != probes[j].priority {
			return probes[i].priority < probes[j].priority
		}
		return probes[i].backend < probes[j].backend
	})

	asked := make(map[string]struct{}, len(wanted))
	for _, h := range wanted {
		asked[h] = struct{}{}
	}
	winnerPriority := make(map[string]int, len(wanted))

	for _, probe := range probes {
		for h, status := range normalizeStatuses(probe.statuses) {
			if _, ok := asked[h]; !ok {
				continue
			}
			current, seen := result[h]
			switch {
			case !seen:
			case status.IsCached() && !current.Status.IsCached():
			case status.IsCached() && current.Status.IsCached() && probe.priority < winnerPriority[h]:
			default:
				continue
			}
			result[h] = models.CacheHit{Status: status, Backend: probe.backend}
			winnerPriority[h] = probe.priority
		}
	}
}

// normalizeStatuses folds keys onto their normalized hash. When a backend
// reports the same hash under several spellings the first in sorted key order
// is kept.
func normalizeStatuses(statuses map[string]models.CacheStatus) map[string]models.CacheStatus {
	keys := make([]string, 0, len(statuses))
	for k := range statuses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]models.CacheStatus, len(keys))
	for _, k := range keys {
		h := NormalizeHash(k)
		if _, dup := out[h]; dup {
			continue
		}
		out[h] = statuses[k]
	}
	return out
}

// selectBackend picks the preferred backend when it is configured, otherwise
// the first backend in priority order.
func (r *Registry) selectBackend(preferred models.BackendType) (Backend, error) {
	s := r.snapshot()
	if preferred != "" {
		if b, ok := s.backends[preferred]; ok {
			return b, nil
		}
		r.logger.Debug().Str("preferred", string(preferred)).Msg("preferred backend not configured, using priority order")
	}
	if len(s.order) == 0 {
		return nil, newError("", KindNoBackends, "no backends configured")
	}
	return s.backends[s.order[0]], nil
}

// ResolveStream turns an info-hash into a playable stream on one backend:
// add the magnet, select all files, then poll until the stream is ready.
func (r *Registry) ResolveStream(ctx context.Context, infoHash string, preferred models.BackendType) (*models.StreamInfo, error) {
	hash := NormalizeHash(infoHash)
	if !ValidHash(hash) {
		return nil, invalidHash(preferred, hash)
	}
	backend, err := r.selectBackend(preferred)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	logger := r.logger.With().Str("backend", string(backend.Type())).Str("hash", hash).Logger()
	logger.Info().Msg("resolving stream")

	info, attempts, err := r.resolveOn(ctx, backend, hash)
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			outcome = "canceled"
		}
	}
	r.observer.ObserveResolution(backend.Type(), outcome, attempts, time.Since(start))
	if err != nil {
		logger.Warn().Err(err).Int("attempts", attempts).Msg("stream resolution failed")
		return nil, err
	}

	info.Backend = backend.Type()
	info.Identity = models.StreamIdentity(backend.Type(), hash, info.FileName)
	fillQuality(info)
	logger.Info().Int("attempts", attempts).Str("file", info.FileName).Dur("took", time.Since(start)).Msg("stream resolved")
	return info, nil
}

func (r *Registry) resolveOn(ctx context.Context, backend Backend, hash string) (*models.StreamInfo, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	jobID, err := backend.AddMagnet(ctx, hash)
	if err != nil {
		return nil, 0, err
	}
	if err := backend.SelectFiles(ctx, jobID, nil); err != nil {
		return nil, 0, err
	}
	return r.poll.Poll(ctx, func(ctx context.Context) (*models.StreamInfo, error) {
		return backend.GetStreamURL(ctx, jobID)
	})
}

// fillQuality derives empty quality fields from the file name.
func fillQuality(info *models.StreamInfo) {
	if info.FileName == "" {
		return
	}
	parsed := parsett.Parse(info.FileName)
	if info.Quality == "" {
		info.Quality = parsed.Resolution
	}
	if info.Codec == "" {
		info.Codec = parsed.Codec
	}
	if info.Audio == "" {
		info.Audio = parsed.Audio
	}
	if info.Source == "" {
		info.Source = parsed.Source
	}
	if info.HDR == "" {
		info.HDR = parsed.HDR
	}
}
