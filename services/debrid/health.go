package debrid

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"resolvarr/models"
)

// HealthService checks credentials and account state of every configured backend.
type HealthService struct {
	registry *Registry
	timeout  time.Duration
}

// NewHealthService creates a health service over the registry's backends.
// A zero timeout means each check only inherits the caller's context.
func NewHealthService(registry *Registry, timeout time.Duration) *HealthService {
	return &HealthService{registry: registry, timeout: timeout}
}

// BackendHealth is the health status of one backend.
type BackendHealth struct {
	Backend      models.BackendType  `json:"backend"`
	DisplayName  string              `json:"displayName"`
	Priority     int                 `json:"priority"`
	Valid        bool                `json:"valid"`
	Account      *models.AccountInfo `json:"account,omitempty"`
	ErrorKind    string              `json:"errorKind,omitempty"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	CheckedAt    time.Time           `json:"checkedAt"`
}

// Check validates every backend concurrently and returns one entry per
// backend in AvailableBackends order.
func (s *HealthService) Check(ctx context.Context) []BackendHealth {
	types := s.registry.AvailableBackends()
	results := make([]BackendHealth, len(types))

	p := pool.New().WithMaxGoroutines(max(len(types), 1))
	for i, t := range types {
		p.Go(func() {
			results[i] = s.checkOne(ctx, t)
		})
	}
	p.Wait()
	return results
}

func (s *HealthService) checkOne(ctx context.Context, t models.BackendType) BackendHealth {
	health := BackendHealth{
		Backend:     t,
		DisplayName: t.DisplayName(),
		CheckedAt:   time.Now().UTC(),
	}
	health.Priority, _ = s.registry.Priority(t)

	backend, ok := s.registry.Backend(t)
	if !ok {
		health.ErrorKind = KindNoBackends.String()
		health.ErrorMessage = "backend is no longer configured"
		return health
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	valid, err := backend.ValidateToken(ctx)
	if err != nil {
		health.ErrorKind = KindOf(err).String()
		health.ErrorMessage = err.Error()
		log.Warn().Err(err).Str("backend", string(t)).Msg("backend health check failed")
		return health
	}
	health.Valid = valid
	if !valid {
		return health
	}

	account, err := backend.GetAccountInfo(ctx)
	if err != nil {
		health.ErrorKind = KindOf(err).String()
		health.ErrorMessage = err.Error()
		return health
	}
	health.Account = account
	return health
}
