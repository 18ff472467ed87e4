package debrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"resolvarr/models"
)

const torBoxBaseURL = "https://api.torbox.app/v1/api"

// TorBoxClient talks to the TorBox API. Download links are issued on demand,
// so GetStreamURL hands out "torrentID:fileID" references that Unrestrict
// exchanges for a signed URL.
type TorBoxClient struct {
	api   apiClient
	token string
}

var _ Backend = (*TorBoxClient)(nil)

// NewTorBoxClient creates a TorBox client authenticated with an API key.
func NewTorBoxClient(apiKey string, opts ClientOptions) *TorBoxClient {
	token := strings.TrimSpace(apiKey)
	return &TorBoxClient{
		api:   newAPIClient(models.BackendTorBox, torBoxBaseURL, opts, bearer(token)),
		token: token,
	}
}

func init() {
	RegisterBackend(models.BackendTorBox, func(credential string, opts ClientOptions) Backend {
		return NewTorBoxClient(credential, opts)
	})
}

func (c *TorBoxClient) Type() models.BackendType { return models.BackendTorBox }

type torBoxResponse[T any] struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Data    T      `json:"data"`
}

type torBoxUser struct {
	ID               int    `json:"id"`
	Email            string `json:"email"`
	Plan             int    `json:"plan"`
	PremiumExpiresAt string `json:"premium_expires_at"`
}

type torBoxCachedFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type torBoxCached struct {
	Name  string             `json:"name"`
	Size  int64              `json:"size"`
	Hash  string             `json:"hash"`
	Files []torBoxCachedFile `json:"files"`
}

type torBoxCreated struct {
	TorrentID int    `json:"torrent_id"`
	Hash      string `json:"hash"`
}

type torBoxFile struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Size      int64  `json:"size"`
}

type torBoxTorrent struct {
	ID               int          `json:"id"`
	Hash             string       `json:"hash"`
	Name             string       `json:"name"`
	Size             int64        `json:"size"`
	DownloadState    string       `json:"download_state"`
	DownloadFinished bool         `json:"download_finished"`
	DownloadPresent  bool         `json:"download_present"`
	Progress         float64      `json:"progress"`
	Files            []torBoxFile `json:"files"`
}

func (c *TorBoxClient) mapError(code, detail string) error {
	switch strings.ToUpper(code) {
	case "NO_AUTH", "BAD_TOKEN", "AUTH_ERROR":
		return newError(c.Type(), KindUnauthorized, detail)
	case "PLAN_RESTRICTED_FEATURE", "ACTIVE_LIMIT", "MONTHLY_LIMIT":
		return newError(c.Type(), KindNotPremium, detail)
	case "ITEM_NOT_FOUND", "DOWNLOAD_NOT_FOUND", "DATABASE_ERROR":
		return torrentNotFound(c.Type(), detail)
	case "INVALID_OPTION", "MISSING_REQUIRED_OPTION", "UNKNOWN_MAGNET":
		return invalidHash(c.Type(), detail)
	case "DOWNLOAD_NOT_CACHED", "DOWNLOAD_SERVER_ERROR":
		return fileNotReady(c.Type(), detail)
	}
	return httpError(c.Type(), http.StatusOK, code+": "+detail)
}

// torBoxCall decodes the {success,error,detail,data} envelope, preferring the
// envelope's error code over the bare HTTP status when both are present.
func torBoxCall[T any](ctx context.Context, c *TorBoxClient, r request) (T, error) {
	var zero T
	body, err := c.api.do(ctx, r)
	var envelope torBoxResponse[T]
	decodeErr := json.Unmarshal(body, &envelope)
	if err != nil {
		if decodeErr == nil && envelope.Error != "" && KindOf(err) == KindHTTP {
			return zero, c.mapError(envelope.Error, envelope.Detail)
		}
		return zero, err
	}
	if decodeErr != nil {
		return zero, httpError(c.Type(), http.StatusOK, fmt.Sprintf("decode %s response: %v", r.operation, decodeErr))
	}
	if !envelope.Success {
		return zero, c.mapError(envelope.Error, envelope.Detail)
	}
	return envelope.Data, nil
}

func (c *TorBoxClient) ValidateToken(ctx context.Context) (bool, error) {
	if _, err := c.GetAccountInfo(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (c *TorBoxClient) GetAccountInfo(ctx context.Context) (*models.AccountInfo, error) {
	user, err := torBoxCall[torBoxUser](ctx, c, request{operation: "user", method: http.MethodGet, path: "/user/me"})
	if err != nil {
		return nil, err
	}
	info := &models.AccountInfo{
		Username:  user.Email,
		Email:     user.Email,
		IsPremium: user.Plan > 0,
	}
	if expiry, err := time.Parse(time.RFC3339, user.PremiumExpiresAt); err == nil {
		info.PremiumExpiry = &expiry
	}
	return info, nil
}

func (c *TorBoxClient) CheckCache(ctx context.Context, hashes []string) (map[string]models.CacheStatus, error) {
	normalized := normalizeHashes(hashes)
	result := make(map[string]models.CacheStatus, len(normalized))
	if len(normalized) == 0 {
		return result, nil
	}

	q := url.Values{}
	q.Set("hash", strings.Join(normalized, ","))
	q.Set("format", "object")
	q.Set("list_files", "true")
	cached, err := torBoxCall[map[string]torBoxCached](ctx, c, request{
		operation: "check_cached",
		method:    http.MethodGet,
		path:      "/torrents/checkcached",
		query:     q,
	})
	if err != nil {
		return nil, err
	}

	lowered := make(map[string]torBoxCached, len(cached))
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
			result[h] = models.Cached("", entry.Name, entry.Size)
		}
	}
	return result, nil
}

func (c *TorBoxClient) AddMagnet(ctx context.Context, infoHash string) (string, error) {
	hash := NormalizeHash(infoHash)
	if !ValidHash(hash) {
		return "", invalidHash(c.Type(), hash)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("magnet", magnetURI(hash)); err != nil {
		return "", fmt.Errorf("write magnet field: %w", err)
	}
	if err := writer.WriteField("seed", "3"); err != nil {
		return "", fmt.Errorf("write seed field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	created, err := torBoxCall[torBoxCreated](ctx, c, request{
		operation:   "create_torrent",
		method:      http.MethodPost,
		path:        "/torrents/createtorrent",
		body:        &buf,
		contentType: writer.FormDataContentType(),
	})
	if err != nil {
		return "", err
	}
	if created.TorrentID == 0 {
		return "", httpError(c.Type(), http.StatusOK, "create torrent returned no id")
	}
	c.api.logger.Debug().Str("hash", hash).Int("job", created.TorrentID).Msg("torrent created")
	return strconv.Itoa(created.TorrentID), nil
}

// SelectFiles is a no-op: TorBox downloads every file.
func (c *TorBoxClient) SelectFiles(ctx context.Context, jobID string, fileIDs []string) error {
	return nil
}

func (c *TorBoxClient) GetStreamURL(ctx context.Context, jobID string) (*models.StreamInfo, error) {
	q := url.Values{}
	q.Set("id", jobID)
	q.Set("bypass_cache", "true")
	torrent, err := torBoxCall[*torBoxTorrent](ctx, c, request{
		operation: "mylist",
		method:    http.MethodGet,
		path:      "/torrents/mylist",
		query:     q,
	})
	if err != nil {
		return nil, err
	}
	if torrent == nil {
		return nil, torrentNotFound(c.Type(), "torrent "+jobID+" not found")
	}

	state := strings.ToLower(torrent.DownloadState)
	switch {
	case torrent.DownloadFinished && torrent.DownloadPresent:
	case state == "error" || state == "failed" || strings.HasPrefix(state, "failed"):
		return nil, torrentNotFound(c.Type(), torrent.DownloadState)
	default:
		return nil, fileNotReady(c.Type(), torrent.DownloadState+" "+strconv.FormatFloat(torrent.Progress*100, 'f', 0, 64)+"%")
	}

	files := make([]remoteFile, 0, len(torrent.Files))
	for _, f := range torrent.Files {
		name := f.ShortName
		if name == "" {
			name = f.Name
		}
		files = append(files, remoteFile{ID: strconv.Itoa(f.ID), Name: name, Size: f.Size})
	}
	best, ok := largestFile(files)
	if !ok {
		return nil, fileNotReady(c.Type(), "no files yet")
	}

	link, err := c.Unrestrict(ctx, strconv.Itoa(torrent.ID)+":"+best.ID)
	if err != nil {
		return nil, err
	}
	return &models.StreamInfo{
		StreamURL: link,
		FileName:  best.Name,
		SizeBytes: best.Size,
		Backend:   c.Type(),
	}, nil
}

// Unrestrict resolves a "torrentID:fileID" reference into a download URL.
func (c *TorBoxClient) Unrestrict(ctx context.Context, link string) (string, error) {
	torrentID, fileID, ok := strings.Cut(strings.TrimSpace(link), ":")
	if !ok || torrentID == "" || fileID == "" {
		return "", httpError(c.Type(), http.StatusBadRequest, "link must be torrentID:fileID")
	}
	q := url.Values{}
	q.Set("token", c.token)
	q.Set("torrent_id", torrentID)
	q.Set("file_id", fileID)
	download, err := torBoxCall[string](ctx, c, request{
		operation: "requestdl",
		method:    http.MethodGet,
		path:      "/torrents/requestdl",
		query:     q,
	})
	if err != nil {
		return "", err
	}
	if download == "" {
		return "", httpError(c.Type(), http.StatusOK, "requestdl returned no url")
	}
	return download, nil
}
