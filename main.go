package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"resolvarr/api"
	"resolvarr/handlers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "resolvarr",
		Short:        "Resolve torrent info-hashes into playable streams through debrid services",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $RESOLVARR_CONFIG or ./config.yaml)")

	root.AddCommand(
		runServeCommand(&configPath),
		runBackendsCommand(&configPath),
		runCheckCommand(&configPath),
		runResolveCommand(&configPath),
	)
	return root
}

func runServeCommand(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if port > 0 {
				a.settings.Server.Port = port
			}
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override server port from config")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	r := mux.NewRouter()
	api.Register(r,
		handlers.NewBackendsHandler(a.registry, a.health),
		handlers.NewStreamsHandler(a.registry),
		handlers.NewRankingHandler(a.settings.Ranking),
		a.metricsHandler(),
	)

	srv := &http.Server{
		Addr:              a.settings.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Strs("backends", backendNames(a.registry.AvailableBackends())).Msg("resolvarr listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutdown signal received, cleaning up")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}
