package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"resolvarr/config"
	"resolvarr/internal/database"
	"resolvarr/internal/logging"
	"resolvarr/internal/metrics"
	"resolvarr/models"
	"resolvarr/services/debrid"
	"resolvarr/services/secrets"
)

// app holds everything a command needs; build it with newApp and Close it.
type app struct {
	settings  config.Settings
	db        *database.DB
	configs   *database.BackendConfigStore
	secrets   *secrets.Store
	metrics   *metrics.Manager
	registry  *debrid.Registry
	health    *debrid.HealthService
	logCloser io.Closer
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	settings, err := config.NewManager(configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	logCloser, err := logging.Setup(settings.Log)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, settings.Database.Path)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	secretStore, err := secrets.NewStore(afero.NewOsFs(), settings.Secrets.Dir, settings.Secrets.Passphrase)
	if err != nil {
		db.Close()
		logCloser.Close()
		return nil, fmt.Errorf("open secret store: %w", err)
	}

	a := &app{
		settings:  settings,
		db:        db,
		configs:   database.NewBackendConfigStore(db),
		secrets:   secretStore,
		metrics:   metrics.NewManager(),
		logCloser: logCloser,
	}
	a.registry = debrid.NewRegistry(a.configs, a.secrets,
		debrid.WithClientOptions(clientOptions(settings.Backends, a.metrics)),
		debrid.WithPollPolicy(pollPolicy(settings.Backends.Poll)),
		debrid.WithResolutionObserver(a.metrics),
	)
	a.health = debrid.NewHealthService(a.registry, settings.Backends.HealthTimeout)

	if err := a.registry.Reload(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) metricsHandler() http.Handler {
	if !a.settings.Metrics.Enabled {
		return nil
	}
	return a.metrics.Handler()
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("database close")
	}
	_ = a.logCloser.Close()
}

func clientOptions(s config.BackendSettings, observer debrid.RequestObserver) func(models.BackendType) debrid.ClientOptions {
	return func(t models.BackendType) debrid.ClientOptions {
		limit := s.RateLimits[string(t)]
		return debrid.ClientOptions{
			BaseURL:   s.BaseURLs[string(t)],
			Timeout:   s.RequestTimeout,
			UserAgent: s.UserAgent,
			RateLimit: limit.RPS,
			Burst:     limit.Burst,
			Observer:  observer,
		}
	}
}

func pollPolicy(s config.PollSettings) debrid.PollPolicy {
	p := debrid.DefaultPollPolicy()
	if s.InitialDelay > 0 {
		p.InitialDelay = s.InitialDelay
	}
	if s.MaxDelay > 0 {
		p.MaxDelay = s.MaxDelay
	}
	if s.MaxAttempts > 0 {
		p.MaxAttempts = s.MaxAttempts
	}
	return p
}
