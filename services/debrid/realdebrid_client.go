package debrid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"resolvarr/models"
)

const (
	realDebridBaseURL = "https://api.real-debrid.com/rest/1.0"
	// instantAvailability takes hashes as path segments; 48 hashes of 40
	// chars keeps the URL under the service's 2000 character limit.
	realDebridMaxHashesPerRequest = 48
)

// RealDebridClient talks to the Real-Debrid REST API.
type RealDebridClient struct {
	api apiClient
}

var _ Backend = (*RealDebridClient)(nil)

// NewRealDebridClient creates a Real-Debrid client authenticated with an API token.
func NewRealDebridClient(token string, opts ClientOptions) *RealDebridClient {
	return &RealDebridClient{
		api: newAPIClient(models.BackendRealDebrid, realDebridBaseURL, opts, bearer(strings.TrimSpace(token))),
	}
}

func init() {
	RegisterBackend(models.BackendRealDebrid, func(credential string, opts ClientOptions) Backend {
		return NewRealDebridClient(credential, opts)
	})
}

func (c *RealDebridClient) Type() models.BackendType { return models.BackendRealDebrid }

type realDebridUser struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Points     int    `json:"points"`
	Type       string `json:"type"` // "premium" or "free"
	Premium    int64  `json:"premium"`
	Expiration string `json:"expiration"`
}

type realDebridAddMagnet struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

type realDebridTorrentFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

type realDebridTorrentInfo struct {
	ID       string                  `json:"id"`
	Filename string                  `json:"filename"`
	Hash     string                  `json:"hash"`
	Bytes    int64                   `json:"bytes"`
	Status   string                  `json:"status"`
	Progress float64                 `json:"progress"`
	Files    []realDebridTorrentFile `json:"files"`
	Links    []string                `json:"links"`
}

type realDebridUnrestrict struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Download string `json:"download"`
}

type realDebridInstantFile struct {
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
}

func (c *RealDebridClient) user(ctx context.Context) (*realDebridUser, error) {
	var u realDebridUser
	if err := c.api.getJSON(ctx, "user", "/user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *RealDebridClient) ValidateToken(ctx context.Context) (bool, error) {
	if _, err := c.user(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RealDebridClient) GetAccountInfo(ctx context.Context) (*models.AccountInfo, error) {
	u, err := c.user(ctx)
	if err != nil {
		return nil, err
	}
	info := &models.AccountInfo{
		Username:  u.Username,
		Email:     u.Email,
		IsPremium: strings.EqualFold(u.Type, "premium") && u.Premium > 0,
	}
	if expiry, err := time.Parse(time.RFC3339, u.Expiration); err == nil {
		info.PremiumExpiry = &expiry
	}
	return info, nil
}

// CheckCache queries instantAvailability in batches. Hashes that are not
// valid hex never reach the URL and report unknown.
func (c *RealDebridClient) CheckCache(ctx context.Context, hashes []string) (map[string]models.CacheStatus, error) {
	result := make(map[string]models.CacheStatus, len(hashes))
	valid := make([]string, 0, len(hashes))
	for _, h := range normalizeHashes(hashes) {
		if !ValidHash(h) {
			result[h] = models.UnknownCache()
			continue
		}
		valid = append(valid, h)
	}

	for start := 0; start < len(valid); start += realDebridMaxHashesPerRequest {
		end := min(start+realDebridMaxHashesPerRequest, len(valid))
		batch := valid[start:end]

		var raw map[string]json.RawMessage
		if err := c.api.getJSON(ctx, "instant_availability", "/torrents/instantAvailability/"+strings.Join(batch, "/"), nil, &raw); err != nil {
			return nil, err
		}
		lowered := make(map[string]json.RawMessage, len(raw))
		for k, v := range raw {
			lowered[NormalizeHash(k)] = v
		}
		for _, h := range batch {
			result[h] = parseRealDebridAvailability(lowered[h])
		}
	}
	return result, nil
}

// parseRealDebridAvailability reads {"rd":[{"<fileId>":{"filename","filesize"}}]}.
// Uncached hashes come back as an empty array.
func parseRealDebridAvailability(raw json.RawMessage) models.CacheStatus {
	if len(raw) == 0 {
		return models.NotCached()
	}
	var hosts map[string][]map[string]realDebridInstantFile
	if err := json.Unmarshal(raw, &hosts); err != nil {
		return models.NotCached()
	}
	variants := hosts["rd"]
	if len(variants) == 0 {
		return models.NotCached()
	}
	files := make([]remoteFile, 0, len(variants[0]))
	for id, f := range variants[0] {
		files = append(files, remoteFile{ID: id, Name: f.Filename, Size: f.Filesize})
	}
	// map iteration is random; order by id so equal sizes resolve the same way
	sortRemoteFilesByID(files)
	best, ok := largestFile(files)
	if !ok {
		return models.Cached("", "", 0)
	}
	return models.Cached(best.ID, best.Name, best.Size)
}

func (c *RealDebridClient) AddMagnet(ctx context.Context, infoHash string) (string, error) {
	hash := NormalizeHash(infoHash)
	if !ValidHash(hash) {
		return "", invalidHash(c.Type(), hash)
	}
	form := url.Values{}
	form.Set("magnet", magnetURI(hash))

	var added realDebridAddMagnet
	if err := c.api.postForm(ctx, "add_magnet", "/torrents/addMagnet", form, &added); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Kind == KindHTTP && apiErr.StatusCode == http.StatusBadRequest {
			return "", invalidHash(c.Type(), hash)
		}
		return "", err
	}
	if added.ID == "" {
		return "", httpError(c.Type(), http.StatusOK, "add magnet returned no torrent id")
	}
	c.api.logger.Debug().Str("hash", hash).Str("job", added.ID).Msg("magnet added")
	return added.ID, nil
}

func (c *RealDebridClient) SelectFiles(ctx context.Context, jobID string, fileIDs []string) error {
	files := "all"
	if len(fileIDs) > 0 {
		files = strings.Join(fileIDs, ",")
	}
	form := url.Values{}
	form.Set("files", files)
	err := c.api.postForm(ctx, "select_files", "/torrents/selectFiles/"+url.PathEscape(jobID), form, nil)
	return c.notFound(err, jobID)
}

func (c *RealDebridClient) GetStreamURL(ctx context.Context, jobID string) (*models.StreamInfo, error) {
	var info realDebridTorrentInfo
	if err := c.api.getJSON(ctx, "torrent_info", "/torrents/info/"+url.PathEscape(jobID), nil, &info); err != nil {
		return nil, c.notFound(err, jobID)
	}

	switch info.Status {
	case "downloaded":
	case "magnet_error", "error", "virus", "dead":
		return nil, torrentNotFound(c.Type(), "torrent "+info.Status)
	default:
		return nil, fileNotReady(c.Type(), info.Status+" "+strconv.FormatFloat(info.Progress, 'f', 0, 64)+"%")
	}

	// links line up with the selected files in order
	selected := make([]remoteFile, 0, len(info.Files))
	for _, f := range info.Files {
		if f.Selected != 1 {
			continue
		}
		idx := len(selected)
		if idx >= len(info.Links) {
			break
		}
		selected = append(selected, remoteFile{
			ID:   strconv.Itoa(f.ID),
			Name: path.Base(f.Path),
			Size: f.Bytes,
			Link: info.Links[idx],
		})
	}
	if len(selected) == 0 && len(info.Links) > 0 {
		selected = append(selected, remoteFile{Name: info.Filename, Size: info.Bytes, Link: info.Links[0]})
	}
	best, ok := largestFile(selected)
	if !ok {
		return nil, fileNotReady(c.Type(), "no links yet")
	}

	unrestricted, err := c.unrestrict(ctx, best.Link)
	if err != nil {
		return nil, err
	}
	name := best.Name
	if name == "" {
		name = unrestricted.Filename
	}
	size := best.Size
	if size == 0 {
		size = unrestricted.Filesize
	}
	return &models.StreamInfo{
		StreamURL: unrestricted.Download,
		FileName:  name,
		SizeBytes: size,
		Backend:   c.Type(),
	}, nil
}

func (c *RealDebridClient) unrestrict(ctx context.Context, link string) (*realDebridUnrestrict, error) {
	form := url.Values{}
	form.Set("link", strings.TrimSpace(link))
	var out realDebridUnrestrict
	if err := c.api.postForm(ctx, "unrestrict", "/unrestrict/link", form, &out); err != nil {
		return nil, err
	}
	if out.Download == "" {
		return nil, httpError(c.Type(), http.StatusOK, "unrestrict returned no download url")
	}
	return &out, nil
}

func (c *RealDebridClient) Unrestrict(ctx context.Context, link string) (string, error) {
	out, err := c.unrestrict(ctx, link)
	if err != nil {
		return "", err
	}
	return out.Download, nil
}

func (c *RealDebridClient) notFound(err error, jobID string) error {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindHTTP && apiErr.StatusCode == http.StatusNotFound {
		return torrentNotFound(c.Type(), "torrent "+jobID+" not found")
	}
	return err
}
