package debrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"resolvarr/models"
)

const (
	defaultUserAgent      = "resolvarr/1.0"
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 16 << 20
)

// sharedTransport enables connection pooling across backend clients.
var sharedTransport = func() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 10
	t.IdleConnTimeout = 90 * time.Second
	t.ForceAttemptHTTP2 = true
	return t
}()

// RequestObserver receives one callback per backend HTTP round trip.
type RequestObserver interface {
	ObserveRequest(backend models.BackendType, operation string, outcome string, took time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(models.BackendType, string, string, time.Duration) {}

// ClientOptions tunes how a backend client talks to its service.
type ClientOptions struct {
	// BaseURL overrides the service endpoint (tests point this at httptest servers).
	BaseURL    string
	HTTPClient *http.Client
	// Timeout bounds each request when HTTPClient is nil; zero means 30s.
	Timeout   time.Duration
	UserAgent string
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	Observer  RequestObserver
}

func (o ClientOptions) baseURL(fallback string) string {
	if strings.TrimSpace(o.BaseURL) != "" {
		return strings.TrimSuffix(o.BaseURL, "/")
	}
	return fallback
}

// apiClient is the request helper every backend client embeds.
type apiClient struct {
	backend    models.BackendType
	baseURL    string
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	observer   RequestObserver
	authorize  func(req *http.Request)
	logger     zerolog.Logger
}

func newAPIClient(backend models.BackendType, baseURL string, opts ClientOptions, authorize func(*http.Request)) apiClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout, Transport: sharedTransport}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	observer := opts.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	if authorize == nil {
		authorize = func(*http.Request) {}
	}
	return apiClient{
		backend:    backend,
		baseURL:    opts.baseURL(baseURL),
		httpClient: httpClient,
		userAgent:  userAgent,
		limiter:    limiter,
		observer:   observer,
		authorize:  authorize,
		logger:     log.With().Str("component", "debrid").Str("backend", string(backend)).Logger(),
	}
}

func bearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// request describes one call against the backend API.
type request struct {
	operation   string
	method      string
	path        string // appended to baseURL verbatim; callers escape path segments
	query       url.Values
	body        io.Reader
	contentType string
}

// do executes req and returns the raw body of a 2xx response. Any other
// outcome is returned as a taxonomy *Error; the body is kept for httpError.
func (c *apiClient) do(ctx context.Context, r request) ([]byte, error) {
	start := time.Now()
	body, err := c.roundTrip(ctx, r)
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "canceled"
		}
	}
	c.observer.ObserveRequest(c.backend, r.operation, outcome, time.Since(start))
	c.logger.Debug().
		Str("op", r.operation).
		Str("method", r.method).
		Str("path", redactPath(r.path)).
		Str("outcome", outcome).
		Dur("took", time.Since(start)).
		Msg("backend request")
	return body, err
}

func (c *apiClient) roundTrip(ctx context.Context, r request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, networkError(c.backend, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, r.body)
	if err != nil {
		return nil, networkError(c.backend, fmt.Errorf("build %s request: %w", r.operation, err))
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, networkError(c.backend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, networkError(c.backend, fmt.Errorf("read %s response: %w", r.operation, err))
	}

	if apiErr := statusError(c.backend, resp.StatusCode, body); apiErr != nil {
		return body, apiErr
	}
	return body, nil
}

func (c *apiClient) getJSON(ctx context.Context, operation, path string, query url.Values, out any) error {
	body, err := c.do(ctx, request{operation: operation, method: http.MethodGet, path: path, query: query})
	if err != nil {
		return err
	}
	return c.decode(operation, body, out)
}

func (c *apiClient) postForm(ctx context.Context, operation, path string, form url.Values, out any) error {
	body, err := c.do(ctx, request{
		operation:   operation,
		method:      http.MethodPost,
		path:        path,
		body:        strings.NewReader(encodeForm(form)),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return err
	}
	return c.decode(operation, body, out)
}

func (c *apiClient) postJSON(ctx context.Context, operation, path string, payload any, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", operation, err)
	}
	body, err := c.do(ctx, request{
		operation:   operation,
		method:      http.MethodPost,
		path:        path,
		body:        bytes.NewReader(encoded),
		contentType: "application/json",
	})
	if err != nil {
		return err
	}
	return c.decode(operation, body, out)
}

func (c *apiClient) decode(operation string, body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return httpError(c.backend, http.StatusOK, fmt.Sprintf("decode %s response: %v (body: %s)", operation, err, truncate(string(body), 256)))
	}
	return nil
}

// formAllowed is the URL-query-allowed character set minus '+', '&' and '='.
// Values containing magnet URIs keep ':', '/', '?' and '@' readable while
// separators that would corrupt the body are escaped exactly once.
var formAllowed = func() [256]bool {
	var allowed [256]bool
	for c := 'a'; c <= 'z'; c++ {
		allowed[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		allowed[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		allowed[c] = true
	}
	for _, c := range "-._~!$'()*,;:@/?" {
		allowed[c] = true
	}
	return allowed
}()

func percentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if formAllowed[c] {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

// encodeForm renders values as an application/x-www-form-urlencoded body with
// keys sorted and the restricted allowed-set above.
func encodeForm(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(percentEncode(k))
			b.WriteByte('=')
			b.WriteString(percentEncode(v))
		}
	}
	return b.String()
}

// redactPath trims long hash lists out of log lines.
func redactPath(p string) string {
	if idx := strings.Index(p, "?"); idx >= 0 {
		p = p[:idx]
	}
	return truncate(p, 96)
}
