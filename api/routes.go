package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"resolvarr/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register wires the HTTP API onto r. A nil metrics handler leaves /metrics
// unrouted.
func Register(
	r *mux.Router,
	backendsHandler *handlers.BackendsHandler,
	streamsHandler *handlers.StreamsHandler,
	rankingHandler *handlers.RankingHandler,
	metricsHandler http.Handler,
) {
	r.Use(accessLogMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	api.HandleFunc("/backends", backendsHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/backends/health", backendsHandler.HealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/backends/reload", backendsHandler.Reload).Methods(http.MethodPost)

	api.HandleFunc("/cache/check", streamsHandler.CheckCache).Methods(http.MethodPost)
	api.HandleFunc("/streams/resolve", streamsHandler.Resolve).Methods(http.MethodPost)
	api.HandleFunc("/streams/unrestrict", streamsHandler.Unrestrict).Methods(http.MethodPost)

	api.HandleFunc("/rank", rankingHandler.Rank).Methods(http.MethodPost)
	api.HandleFunc("/failover", rankingHandler.Failover).Methods(http.MethodPost)
	api.HandleFunc("/failover/next", rankingHandler.NextStream).Methods(http.MethodPost)

	api.PathPrefix("/").HandlerFunc(handleOptions).Methods(http.MethodOptions)

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}
}
