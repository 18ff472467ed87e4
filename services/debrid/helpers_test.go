package debrid

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"resolvarr/models"
)

// instantTimer fires immediately and remembers every requested delay.
type instantTimer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (t *instantTimer) After(d time.Duration) <-chan time.Time {
	t.mu.Lock()
	t.delays = append(t.delays, d)
	t.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (t *instantTimer) recorded() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.delays...)
}

func testHash(i int) string {
	return fmt.Sprintf("%040x", i)
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

type recordedRequest struct {
	backend   models.BackendType
	operation string
	outcome   string
}

type recordingObserver struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (o *recordingObserver) ObserveRequest(backend models.BackendType, operation, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, recordedRequest{backend: backend, operation: operation, outcome: outcome})
}
