package debrid

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"resolvarr/models"
)

const offcloudBaseURL = "https://offcloud.com/api"

// OffcloudClient talks to the Offcloud API, which authenticates with a
// `key` query parameter instead of a header.
type OffcloudClient struct {
	api apiClient
}

var _ Backend = (*OffcloudClient)(nil)

// NewOffcloudClient creates an Offcloud client authenticated with an API key.
func NewOffcloudClient(apiKey string, opts ClientOptions) *OffcloudClient {
	key := strings.TrimSpace(apiKey)
	return &OffcloudClient{
		api: newAPIClient(models.BackendOffcloud, offcloudBaseURL, opts, func(req *http.Request) {
			q := req.URL.Query()
			q.Set("key", key)
			req.URL.RawQuery = q.Encode()
		}),
	}
}

func init() {
	RegisterBackend(models.BackendOffcloud, func(credential string, opts ClientOptions) Backend {
		return NewOffcloudClient(credential, opts)
	})
}

func (c *OffcloudClient) Type() models.BackendType { return models.BackendOffcloud }

// offcloudError is present on every payload; a non-empty value is a failure.
type offcloudError struct {
	Error string `json:"error,omitempty"`
}

func (e offcloudError) err(backend models.BackendType) error {
	if e.Error == "" {
		return nil
	}
	msg := strings.ToLower(e.Error)
	switch {
	case strings.Contains(msg, "log in"), strings.Contains(msg, "noauth"), strings.Contains(msg, "api key"):
		return newError(backend, KindUnauthorized, e.Error)
	case strings.Contains(msg, "premium"):
		return newError(backend, KindNotPremium, e.Error)
	case strings.Contains(msg, "not found"):
		return torrentNotFound(backend, e.Error)
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "magnet"):
		return invalidHash(backend, e.Error)
	}
	return httpError(backend, http.StatusOK, e.Error)
}

type offcloudAccount struct {
	offcloudError
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	IsPremium      bool   `json:"isPremium"`
	ExpirationDate string `json:"expirationDate"`
}

type offcloudCache struct {
	offcloudError
	CachedItems []string `json:"cachedItems"`
}

type offcloudRequest struct {
	offcloudError
	RequestID string `json:"requestId"`
	FileName  string `json:"fileName"`
	Status    string `json:"status"`
	FileSize  int64  `json:"fileSize"`
	URL       string `json:"url"`
}

type offcloudStatus struct {
	offcloudError
	Requests []offcloudRequest `json:"requests"`
}

type offcloudInstant struct {
	offcloudError
	URL      string `json:"url"`
	FileName string `json:"fileName"`
}

func (c *OffcloudClient) ValidateToken(ctx context.Context) (bool, error) {
	if _, err := c.GetAccountInfo(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (c *OffcloudClient) GetAccountInfo(ctx context.Context) (*models.AccountInfo, error) {
	var acct offcloudAccount
	if err := c.api.getJSON(ctx, "account_stats", "/account/stats", nil, &acct); err != nil {
		return nil, err
	}
	if err := acct.err(c.Type()); err != nil {
		return nil, err
	}
	info := &models.AccountInfo{
		Username:  acct.Email,
		Email:     acct.Email,
		IsPremium: acct.IsPremium,
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "02-01-2006"} {
		if expiry, err := time.Parse(layout, acct.ExpirationDate); err == nil {
			info.PremiumExpiry = &expiry
			break
		}
	}
	return info, nil
}

func (c *OffcloudClient) CheckCache(ctx context.Context, hashes []string) (map[string]models.CacheStatus, error) {
	normalized := normalizeHashes(hashes)
	result := make(map[string]models.CacheStatus, len(normalized))
	if len(normalized) == 0 {
		return result, nil
	}

	var cache offcloudCache
	if err := c.api.postJSON(ctx, "cache", "/cache", map[string][]string{"hashes": normalized}, &cache); err != nil {
		return nil, err
	}
	if err := cache.err(c.Type()); err != nil {
		return nil, err
	}

	cached := make(map[string]struct{}, len(cache.CachedItems))
	for _, h := range cache.CachedItems {
		cached[NormalizeHash(h)] = struct{}{}
	}
	for _, h := range normalized {
		if _, ok := cached[h]; ok {
			result[h] = models.Cached("", "", 0)
		} else {
			result[h] = models.NotCached()
		}
	}
	return result, nil
}

func (c *OffcloudClient) AddMagnet(ctx context.Context, infoHash string) (string, error) {
	hash := NormalizeHash(infoHash)
	if !ValidHash(hash) {
		return "", invalidHash(c.Type(), hash)
	}
	var created offcloudRequest
	if err := c.api.postJSON(ctx, "cloud", "/cloud", map[string]string{"url": magnetURI(hash)}, &created); err != nil {
		return "", err
	}
	if err := created.err(c.Type()); err != nil {
		return "", err
	}
	if created.RequestID == "" {
		return "", httpError(c.Type(), http.StatusOK, "cloud returned no request id")
	}
	c.api.logger.Debug().Str("hash", hash).Str("job", created.RequestID).Msg("cloud request created")
	return created.RequestID, nil
}

// SelectFiles is a no-op: Offcloud downloads whole torrents.
func (c *OffcloudClient) SelectFiles(ctx context.Context, jobID string, fileIDs []string) error {
	return nil
}

func (c *OffcloudClient) GetStreamURL(ctx context.Context, jobID string) (*models.StreamInfo, error) {
	var status offcloudStatus
	if err := c.api.postJSON(ctx, "cloud_status", "/cloud/status", map[string][]string{"requestIds": {jobID}}, &status); err != nil {
		return nil, err
	}
	if err := status.err(c.Type()); err != nil {
		return nil, err
	}
	var req *offcloudRequest
	for i := range status.Requests {
		if status.Requests[i].RequestID == jobID {
			req = &status.Requests[i]
			break
		}
	}
	if req == nil {
		return nil, torrentNotFound(c.Type(), "request "+jobID+" not found")
	}

	switch strings.ToLower(req.Status) {
	case "downloaded":
	case "error", "canceled", "cancelled":
		return nil, torrentNotFound(c.Type(), req.Status)
	default:
		return nil, fileNotReady(c.Type(), req.Status)
	}

	link := req.URL
	if link == "" {
		explored, err := c.explore(ctx, jobID)
		if err != nil {
			return nil, err
		}
		link = explored
	}
	name := fileNameFromURL(link)
	if name == "" || path.Ext(name) == "" {
		name = req.FileName
	}
	return &models.StreamInfo{
		StreamURL: link,
		FileName:  name,
		SizeBytes: req.FileSize,
		Backend:   c.Type(),
	}, nil
}

// explore lists a multi-file request and picks the first entry in a video
// container, falling back to the first entry.
func (c *OffcloudClient) explore(ctx context.Context, jobID string) (string, error) {
	var entries []string
	if err := c.api.getJSON(ctx, "cloud_explore", "/cloud/explore/"+url.PathEscape(jobID), nil, &entries); err != nil {
		if KindOf(err) == KindHTTP {
			return "", torrentNotFound(c.Type(), "explore "+jobID+": "+err.Error())
		}
		return "", err
	}
	if len(entries) == 0 {
		return "", fileNotReady(c.Type(), "explore returned no files")
	}
	for _, entry := range entries {
		ext := strings.ToLower(path.Ext(fileNameFromURL(entry)))
		if _, ok := exploreContainers[ext]; ok {
			return entry, nil
		}
	}
	return entries[0], nil
}

func (c *OffcloudClient) Unrestrict(ctx context.Context, link string) (string, error) {
	var instant offcloudInstant
	if err := c.api.postJSON(ctx, "instant", "/instant", map[string]string{"url": strings.TrimSpace(link)}, &instant); err != nil {
		return "", err
	}
	if err := instant.err(c.Type()); err != nil {
		return "", err
	}
	if instant.URL == "" {
		return "", httpError(c.Type(), http.StatusOK, "instant returned no url")
	}
	return instant.URL, nil
}
