package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resolvarr/handlers"
	"resolvarr/internal/metrics"
	"resolvarr/services/debrid"
	"resolvarr/services/ranking"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	registry := debrid.NewRegistry(nil, nil)
	require.NoError(t, registry.Reload(context.Background()))

	r := mux.NewRouter()
	Register(r,
		handlers.NewBackendsHandler(registry, debrid.NewHealthService(registry, 0)),
		handlers.NewStreamsHandler(registry),
		handlers.NewRankingHandler(ranking.Preferences{}),
		metrics.NewManager().Handler(),
	)
	return r
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		body   string
		code   int
	}{
		{http.MethodGet, "/api/backends", "", http.StatusOK},
		{http.MethodGet, "/api/backends/health", "", http.StatusOK},
		{http.MethodPost, "/api/backends/reload", "", http.StatusOK},
		{http.MethodPost, "/api/cache/check", `{"hashes":["0123456789abcdef0123456789abcdef01234567"]}`, http.StatusOK},
		{http.MethodPost, "/api/streams/resolve", `{"hash":"0123456789abcdef0123456789abcdef01234567"}`, http.StatusServiceUnavailable},
		{http.MethodPost, "/api/rank", `{"candidates":[]}`, http.StatusOK},
		{http.MethodPost, "/api/failover", `{"primary":{"streamUrl":"a"},"alternates":[]}`, http.StatusOK},
		{http.MethodPost, "/api/failover/next", `{"after":{"streamUrl":"a"},"queue":[{"streamUrl":"a"}]}`, http.StatusNoContent},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodOptions, "/api/streams/resolve", "", http.StatusOK},
		{http.MethodGet, "/api/streams/resolve", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestCORSHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/backends", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
