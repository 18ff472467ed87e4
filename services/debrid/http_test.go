package debrid

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resolvarr/models"
)

func TestEncodeFormKeepsMagnetReadable(t *testing.T) {
	form := url.Values{}
	form.Set("magnet", "magnet:?xt=urn:btih:abc&dn=A Movie+Extras=1")
	form.Set("agent", "resolvarr")

	got := encodeForm(form)
	assert.Equal(t, "agent=resolvarr&magnet=magnet:?xt%3Durn:btih:abc%26dn%3DA%20Movie%2BExtras%3D1", got)
}

func TestEncodeFormEscapesOnce(t *testing.T) {
	assert.Equal(t, "link=https://host/a%25b", encodeForm(url.Values{"link": {"https://host/a%b"}}))
	assert.Equal(t, "user@x=a;b,c", encodeForm(url.Values{"user@x": {"a;b,c"}}))
	assert.Empty(t, encodeForm(nil))
}

func TestAPIClientMapsStatusAndObserves(t *testing.T) {
	var gotAuth, gotAgent string
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ok":
			_, _ = io.WriteString(w, `{"value":42}`)
		case "/unauthorized":
			w.WriteHeader(http.StatusUnauthorized)
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "upstream exploded")
		case "/garbage":
			_, _ = io.WriteString(w, "not json")
		}
	}))

	observer := &recordingObserver{}
	api := newAPIClient(models.BackendTorBox, "unused", ClientOptions{
		BaseURL:   srv.URL + "/",
		UserAgent: "test-agent",
		Observer:  observer,
	}, bearer("secret"))

	var out struct {
		Value int `json:"value"`
	}
	require.NoError(t, api.getJSON(context.Background(), "ok", "/ok", nil, &out))
	assert.Equal(t, 42, out.Value)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "test-agent", gotAgent)

	err := api.getJSON(context.Background(), "unauthorized", "/unauthorized", nil, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = api.getJSON(context.Background(), "limited", "/limited", nil, nil)
	assert.ErrorIs(t, err, ErrRateLimited)

	err = api.getJSON(context.Background(), "broken", "/broken", nil, nil)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindHTTP, apiErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "upstream exploded", apiErr.Body)

	err = api.getJSON(context.Background(), "garbage", "/garbage", nil, &out)
	assert.Equal(t, KindHTTP, KindOf(err))

	observer.mu.Lock()
	defer observer.mu.Unlock()
	require.Len(t, observer.requests, 5)
	assert.Equal(t, recordedRequest{backend: models.BackendTorBox, operation: "ok", outcome: "ok"}, observer.requests[0])
	assert.Equal(t, "unauthorized", observer.requests[1].outcome)
	assert.Equal(t, "rate_limited", observer.requests[2].outcome)
	assert.Equal(t, "http_error", observer.requests[3].outcome)
}

func TestAPIClientNetworkAndCancellation(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	api := newAPIClient(models.BackendPremiumize, srv.URL, ClientOptions{}, nil)
	err := api.getJSON(context.Background(), "down", "/", nil, nil)
	assert.ErrorIs(t, err, ErrNetwork)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = api.getJSON(ctx, "canceled", "/", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
