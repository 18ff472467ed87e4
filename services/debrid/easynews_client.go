package debrid

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"resolvarr/models"
)

const easyNewsBaseURL = "https://members.easynews.com"

// EasyNewsClient covers the Usenet provider. It has no torrent cache, so
// the magnet workflow is unsupported and cache probes report unknown.
type EasyNewsClient struct {
	api      apiClient
	username string
	password string
}

var _ Backend = (*EasyNewsClient)(nil)

// NewEasyNewsClient creates an EasyNews client from a "user:pass" credential.
func NewEasyNewsClient(credential string, opts ClientOptions) *EasyNewsClient {
	username, password, _ := strings.Cut(strings.TrimSpace(credential), ":")
	c := &EasyNewsClient{username: username, password: password}
	c.api = newAPIClient(models.BackendEasyNews, easyNewsBaseURL, opts, func(req *http.Request) {
		req.SetBasicAuth(username, password)
	})
	return c
}

func init() {
	RegisterBackend(models.BackendEasyNews, func(credential string, opts ClientOptions) Backend {
		return NewEasyNewsClient(credential, opts)
	})
}

func (c *EasyNewsClient) Type() models.BackendType { return models.BackendEasyNews }

func (c *EasyNewsClient) ValidateToken(ctx context.Context) (bool, error) {
	if c.username == "" || c.password == "" {
		return false, newError(c.Type(), KindUnauthorized, "credential must be user:pass")
	}
	q := url.Values{}
	q.Set("gps", "test")
	q.Set("pno", "1")
	q.Set("sS", "5")
	q.Set("pby", "1")
	if _, err := c.api.do(ctx, request{operation: "search", method: http.MethodGet, path: "/2.0/search/solr-search/", query: q}); err != nil {
		return false, err
	}
	return true, nil
}

func (c *EasyNewsClient) GetAccountInfo(ctx context.Context) (*models.AccountInfo, error) {
	if _, err := c.ValidateToken(ctx); err != nil {
		return nil, err
	}
	return &models.AccountInfo{Username: c.username, IsPremium: true}, nil
}

// CheckCache reports unknown for every hash without touching the network.
func (c *EasyNewsClient) CheckCache(ctx context.Context, hashes []string) (map[string]models.CacheStatus, error) {
	normalized := normalizeHashes(hashes)
	result := make(map[string]models.CacheStatus, len(normalized))
	for _, h := range normalized {
		result[h] = models.UnknownCache()
	}
	return result, nil
}

func (c *EasyNewsClient) AddMagnet(ctx context.Context, infoHash string) (string, error) {
	return "", unsupported(c.Type(), "magnets are not supported on usenet")
}

func (c *EasyNewsClient) SelectFiles(ctx context.Context, jobID string, fileIDs []string) error {
	return unsupported(c.Type(), "file selection is not supported on usenet")
}

func (c *EasyNewsClient) GetStreamURL(ctx context.Context, jobID string) (*models.StreamInfo, error) {
	return nil, unsupported(c.Type(), "torrent streams are not supported on usenet")
}

// Unrestrict embeds the account credentials in a members download link so
// players without auth header support can fetch it.
func (c *EasyNewsClient) Unrestrict(ctx context.Context, link string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return "", httpError(c.Type(), http.StatusBadRequest, "invalid link")
	}
	if c.username == "" {
		return "", newError(c.Type(), KindUnauthorized, "credential must be user:pass")
	}
	u.User = url.UserPassword(c.username, c.password)
	return u.String(), nil
}
