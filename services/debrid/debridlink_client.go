package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"resolvarr/models"
)

const debridLinkBaseURL = "https://debrid-link.com/api/v2"

// DebridLinkClient talks to the Debrid-Link v2 API.
type DebridLinkClient struct {
	api apiClient
}

var _ Backend = (*DebridLinkClient)(nil)

// NewDebridLinkClient creates a Debrid-Link client authenticated with an API key.
func NewDebridLinkClient(apiKey string, opts ClientOptions) *DebridLinkClient {
	return &DebridLinkClient{
		api: newAPIClient(models.BackendDebridLink, debridLinkBaseURL, opts, bearer(strings.TrimSpace(apiKey))),
	}
}

func init() {
	RegisterBackend(models.BackendDebridLink, func(credential string, opts ClientOptions) Backend {
		return NewDebridLinkClient(credential, opts)
	})
}

func (c *DebridLinkClient) Type() models.BackendType { return models.BackendDebridLink }

type debridLinkResponse[T any] struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Value   T      `json:"value"`
}

type debridLinkAccount struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	AccountType int    `json:"accountType"` // 0 free, 1 premium, 2 vip
	PremiumLeft int64  `json:"premiumLeft"` // seconds
}

type debridLinkFile struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Size            int64   `json:"size"`
	DownloadURL     string  `json:"downloadUrl"`
	DownloadPercent float64 `json:"downloadPercent"`
}

type debridLinkCached struct {
	Name       string           `json:"name"`
	HashString string           `json:"hashString"`
	Files      []debridLinkFile `json:"files"`
}

type debridLinkTorrent struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	HashString      string           `json:"hashString"`
	Status          int              `json:"status"`
	ErrorID         int              `json:"errorId"`
	DownloadPercent float64          `json:"downloadPercent"`
	TotalSize       int64            `json:"totalSize"`
	Files           []debridLinkFile `json:"files"`
}

type debridLinkDownload struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"downloadUrl"`
}

func (c *DebridLinkClient) mapError(code string) error {
	switch code {
	case "badToken", "badSign", "hidedToken", "notAuthorized", "authorization_pending", "expired_token":
		return newError(c.Type(), KindUnauthorized, code)
	case "accountLocked", "notFreeAccount", "notPremium", "onlyPremium":
		return newError(c.Type(), KindNotPremium, code)
	case "floodDetected", "maxLinkHost", "maxLink":
		return newError(c.Type(), KindRateLimited, code)
	case "hashNotValid", "notValidMagnet", "badArguments", "torrentTooBig":
		return invalidHash(c.Type(), code)
	case "notFound", "unknowR", "fileNotFound":
		return torrentNotFound(c.Type(), code)
	}
	return httpError(c.Type(), http.StatusOK, code)
}

func debridLinkCall[T any](ctx context.Context, c *DebridLinkClient, r request) (T, error) {
	var zero T
	body, err := c.api.do(ctx, r)
	var envelope debridLinkResponse[T]
	decodeErr := json.Unmarshal(body, &envelope)
	if err != nil {
		if decodeErr == nil && envelope.Error != "" && KindOf(err) == KindHTTP {
			return zero, c.mapError(envelope.Error)
		}
		return zero, err
	}
	if decodeErr != nil {
		return zero, httpError(c.Type(), http.StatusOK, fmt.Sprintf("decode %s response: %v", r.operation, decodeErr))
	}
	if !envelope.Success {
		return zero, c.mapError(envelope.Error)
	}
	return envelope.Value, nil
}

func formRequest(operation, path string, form url.Values) request {
	return request{
		operation:   operation,
		method:      http.MethodPost,
		path:        path,
		body:        strings.NewReader(encodeForm(form)),
		contentType: "application/x-www-form-urlencoded",
	}
}

func (c *DebridLinkClient) ValidateToken(ctx context.Context) (bool, error) {
	if _, err := c.GetAccountInfo(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (c *DebridLinkClient) GetAccountInfo(ctx context.Context) (*models.AccountInfo, error) {
	acct, err := debridLinkCall[debridLinkAccount](ctx, c, request{operation: "account", method: http.MethodGet, path: "/account/infos"})
	if err != nil {
		return nil, err
	}
	info := &models.AccountInfo{
		Username:  acct.Username,
		Email:     acct.Email,
		IsPremium: acct.AccountType > 0 && acct.PremiumLeft > 0,
	}
	if acct.PremiumLeft > 0 {
		expiry := time.Now().Add(time.Duration(acct.PremiumLeft) * time.Second).UTC()
		info.PremiumExpiry = &expiry
	}
	return info, nil
}

func (c *DebridLinkClient) CheckCache(ctx context.Context, hashes []string) (map[string]models.CacheStatus, error) {
	normalized := normalizeHashes(hashes)
	result := make(map[string]models.CacheStatus, len(normalized))
	if len(normalized) == 0 {
		return result, nil
	}

	// value is an object keyed by hash, or an empty array when nothing is cached
	raw, err := debridLinkCall[json.RawMessage](ctx, c, request{
		operation: "seedbox_cached",
		method:    http.MethodGet,
		path:      "/seedbox/cached",
		query:     url.Values{"url": {strings.Join(normalized, ",")}},
	})
	if err != nil {
		return nil, err
	}
	var cached map[string]debridLinkCached
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &cached); err != nil {
			return nil, httpError(c.Type(), http.StatusOK, "decode cached response: "+err.Error())
		}
	}
	lowered := make(map[string]debridLinkCached, len(cached))
	for k, v := range cached {
		lowered[NormalizeHash(k)] = v
	}

	for _, h := range normalized {
		entry, ok := lowered[h]
		if !ok {
			result[h] = models.NotCached()
			continue
		}
		files := make([]remoteFile, 0, len(entry.Files))
		for i, f := range entry.Files {
			files = append(files, remoteFile{ID: strconv.Itoa(i), Name: f.Name, Size: f.Size})
		}
		if best, ok := largestFile(files); ok {
			result[h] = models.Cached(best.ID, best.Name, best.Size)
		} else {
			result[h] = models.Cached("", entry.Name, 0)
		}
	}
	return result, nil
}

func (c *DebridLinkClient) AddMagnet(ctx context.Context, infoHash string) (string, error) {
	hash := NormalizeHash(infoHash)
	if !ValidHash(hash) {
		return "", invalidHash(c.Type(), hash)
	}
	form := url.Values{}
	form.Set("url", magnetURI(hash))
	form.Set("async", "true")
	torrent, err := debridLinkCall[debridLinkTorrent](ctx, c, formRequest("seedbox_add", "/seedbox/add", form))
	if err != nil {
		return "", err
	}
	if torrent.ID == "" {
		return "", httpError(c.Type(), http.StatusOK, "seedbox add returned no id")
	}
	c.api.logger.Debug().Str("hash", hash).Str("job", torrent.ID).Msg("torrent added")
	return torrent.ID, nil
}

// SelectFiles is a no-op: the seedbox keeps every file.
func (c *DebridLinkClient) SelectFiles(ctx context.Context, jobID string, fileIDs []string) error {
	return nil
}

func (c *DebridLinkClient) GetStreamURL(ctx context.Context, jobID string) (*models.StreamInfo, error) {
	torrents, err := debridLinkCall[[]debridLinkTorrent](ctx, c, request{
		operation: "seedbox_list",
		method:    http.MethodGet,
		path:      "/seedbox/list",
		query:     url.Values{"ids": {jobID}},
	})
	if err != nil {
		return nil, err
	}
	var torrent *debridLinkTorrent
	for i := range torrents {
		if torrents[i].ID == jobID {
			torrent = &torrents[i]
			break
		}
	}
	if torrent == nil {
		return nil, torrentNotFound(c.Type(), "torrent "+jobID+" not found")
	}
	if torrent.ErrorID != 0 {
		return nil, torrentNotFound(c.Type(), fmt.Sprintf("seedbox error %d", torrent.ErrorID))
	}

	files := make([]remoteFile, 0, len(torrent.Files))
	for _, f := range torrent.Files {
		if f.DownloadURL == "" || f.DownloadPercent < 100 {
			continue
		}
		files = append(files, remoteFile{ID: f.ID, Name: f.Name, Size: f.Size, Link: f.DownloadURL})
	}
	best, ok := largestFile(files)
	if !ok || torrent.DownloadPercent < 100 {
		return nil, fileNotReady(c.Type(), strconv.FormatFloat(torrent.DownloadPercent, 'f', 0, 64)+"%")
	}
	return &models.StreamInfo{
		StreamURL: best.Link,
		FileName:  best.Name,
		SizeBytes: best.Size,
		Backend:   c.Type(),
	}, nil
}

func (c *DebridLinkClient) Unrestrict(ctx context.Context, link string) (string, error) {
	dl, err := debridLinkCall[debridLinkDownload](ctx, c, formRequest("downloader_add", "/downloader/add", url.Values{"url": {strings.TrimSpace(link)}}))
	if err != nil {
		return "", err
	}
	if dl.DownloadURL == "" {
		return "", httpError(c.Type(), http.StatusOK, "downloader returned no url")
	}
	return dl.DownloadURL, nil
}
