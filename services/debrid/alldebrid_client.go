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

const (
	allDebridBaseURL = "https://api.alldebrid.com/v4"
	allDebridAgent   = "resolvarr"
)

// AllDebridClient handles API interactions with the AllDebrid service.
type AllDebridClient struct {
	api   apiClient
	agent string
}

var _ Backend = (*AllDebridClient)(nil)

// NewAllDebridClient creates a new AllDebrid API client.
func NewAllDebridClient(apiKey string, opts ClientOptions) *AllDebridClient {
	return &AllDebridClient{
		api:   newAPIClient(models.BackendAllDebrid, allDebridBaseURL, opts, bearer(strings.TrimSpace(apiKey))),
		agent: allDebridAgent,
	}
}

func init() {
	RegisterBackend(models.BackendAllDebrid, func(credential string, opts ClientOptions) Backend {
		return NewAllDebridClient(credential, opts)
	})
}

func (c *AllDebridClient) Type() models.BackendType { return models.BackendAllDebrid }

// allDebridResponse is the generic API response wrapper.
type allDebridResponse[T any] struct {
	Status string          `json:"status"` // "success" or "error"
	Data   T               `json:"data,omitempty"`
	Error  *allDebridError `json:"error,omitempty"`
}

type allDebridError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type allDebridUserData struct {
	User struct {
		Username     string `json:"username"`
		Email        string `json:"email"`
		IsPremium    bool   `json:"isPremium"`
		PremiumUntil int64  `json:"premiumUntil"`
	} `json:"user"`
}

type allDebridMagnet struct {
	Magnet string          `json:"magnet,omitempty"`
	Name   string          `json:"name,omitempty"`
	ID     int             `json:"id,omitempty"`
	Hash   string          `json:"hash,omitempty"`
	Size   int64           `json:"size,omitempty"`
	Ready  bool            `json:"ready,omitempty"`
	Error  *allDebridError `json:"error,omitempty"`
}

type allDebridMagnetUploadData struct {
	Magnets []allDebridMagnet `json:"magnets"`
}

type allDebridStatus struct {
	ID         int                 `json:"id"`
	Filename   string              `json:"filename"`
	Size       int64               `json:"size"`
	Hash       string              `json:"hash,omitempty"`
	Status     string              `json:"status"`
	StatusCode int                 `json:"statusCode"`
	Links      []allDebridLink     `json:"links,omitempty"`
	Files      []allDebridFileNode `json:"files,omitempty"` // v4.1 nested file tree
}

// allDebridLink is the v4 flat link entry.
type allDebridLink struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// allDebridFileNode is a file or directory in the v4.1 nested tree.
type allDebridFileNode struct {
	N string              `json:"n"`           // name
	S int64               `json:"s,omitempty"` // size (for files)
	L string              `json:"l,omitempty"` // link (for files)
	E []allDebridFileNode `json:"e,omitempty"` // entries (for directories)
}

// allDebridStatusData holds either a single magnet object or an array.
type allDebridStatusData struct {
	Magnets json.RawMessage `json:"magnets"`
}

type allDebridUnlock struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	ID       string `json:"id,omitempty"`
	Delayed  int    `json:"delayed,omitempty"`
}

type allDebridInstantData struct {
	Magnets []struct {
		Magnet  string              `json:"magnet"`
		Hash    string              `json:"hash"`
		Instant bool                `json:"instant"`
		Files   []allDebridFileNode `json:"files,omitempty"`
	} `json:"magnets"`
}

// AllDebrid magnet status codes
const (
	allDebridStatusInQueue             = 0
	allDebridStatusDownloading         = 1
	allDebridStatusCompressingMoving   = 2
	allDebridStatusUploading           = 3
	allDebridStatusReady               = 4
	allDebridStatusUploadFail          = 5
	allDebridStatusInternalErrorUnpack = 6
	allDebridStatusNotDownloaded20Min  = 7
	allDebridStatusFileTooBig          = 8
	allDebridStatusInternalError       = 9
	allDebridStatusDownloadTook72h     = 10
	allDebridStatusDeletedOnHoster     = 11
)

// allDebridCall runs one request and unwraps the {status,data,error} envelope.
func allDebridCall[T any](ctx context.Context, c *AllDebridClient, r request) (T, error) {
	var zero T
	body, err := c.api.do(ctx, r)
	var envelope allDebridResponse[T]
	if len(body) > 0 {
		if decodeErr := json.Unmarshal(body, &envelope); decodeErr != nil && err == nil {
			return zero, httpError(c.Type(), http.StatusOK, fmt.Sprintf("decode %s response: %v", r.operation, decodeErr))
		}
	}
	if envelope.Error != nil {
		if mapped := c.mapErrorCode(envelope.Error); mapped != nil {
			return zero, mapped
		}
	}
	if err != nil {
		return zero, err
	}
	if envelope.Status != "success" {
		msg := "unknown error"
		if envelope.Error != nil {
			msg = envelope.Error.Code + ": " + envelope.Error.Message
		}
		return zero, httpError(c.Type(), http.StatusOK, msg)
	}
	return envelope.Data, nil
}

// mapErrorCode translates AllDebrid error codes. It returns nil for codes
// without a dedicated kind.
func (c *AllDebridClient) mapErrorCode(e *allDebridError) error {
	code := strings.ToUpper(e.Code)
	switch {
	case strings.HasPrefix(code, "AUTH_"):
		return newError(c.Type(), KindUnauthorized, e.Message)
	case code == "MUST_BE_PREMIUM" || code == "FREE_TRIAL_LIMIT_REACHED":
		return newError(c.Type(), KindNotPremium, e.Message)
	case code == "MAGNET_INVALID_ID" || code == "MAGNET_INVALID_STATUS":
		return torrentNotFound(c.Type(), e.Message)
	case strings.HasPrefix(code, "MAGNET_INVALID") || code == "MAGNET_NO_URI":
		return invalidHash(c.Type(), e.Message)
	case code == "LINK_IS_MISSING" || code == "LINK_HOST_NOT_SUPPORTED":
		return httpError(c.Type(), http.StatusBadRequest, e.Code+": "+e.Message)
	case strings.HasSuffix(code, "_TOO_MANY_REQUESTS") || code == "FLOOD_LIMIT":
		return newError(c.Type(), KindRateLimited, e.Message)
	}
	return nil
}

func (c *AllDebridClient) query(extra url.Values) url.Values {
	q := url.Values{}
	q.Set("agent", c.agent)
	for k, v := range extra {
		q[k] = v
	}
	return q
}

func (c *AllDebridClient) form(values url.Values) request {
	values.Set("agent", c.agent)
	return request{
		method:      http.MethodPost,
		body:        strings.NewReader(encodeForm(values)),
		contentType: "application/x-www-form-urlencoded",
	}
}

func (c *AllDebridClient) ValidateToken(ctx context.Context) (bool, error) {
	if _, err := c.GetAccountInfo(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (c *AllDebridClient) GetAccountInfo(ctx context.Context) (*models.AccountInfo, error) {
	data, err := allDebridCall[allDebridUserData](ctx, c, request{
		operation: "user",
		method:    http.MethodGet,
		path:      "/user",
		query:     c.query(nil),
	})
	if err != nil {
		return nil, err
	}
	info := &models.AccountInfo{
		Username:  data.User.Username,
		Email:     data.User.Email,
		IsPremium: data.User.IsPremium,
	}
	if data.User.PremiumUntil > 0 {
		expiry := time.Unix(data.User.PremiumUntil, 0).UTC()
		info.PremiumExpiry = &expiry
	}
	return info, nil
}

func (c *AllDebridClient) CheckCache(ctx context.Context, hashes []string) (map[string]models.CacheStatus, error) {
	normalized := normalizeHashes(hashes)
	result := make(map[string]models.CacheStatus, len(normalized))
	if len(normalized) == 0 {
		return result, nil
	}

	q := c.query(nil)
	for _, h := range normalized {
		q.Add("magnets[]", h)
	}
	data, err := allDebridCall[allDebridInstantData](ctx, c, request{
		operation: "instant",
		method:    http.MethodGet,
		path:      "/magnet/instant",
		query:     q,
	})
	if err != nil {
		return nil, err
	}

	for _, h := range normalized {
		result[h] = models.NotCached()
	}
	for _, m := range data.Magnets {
		hash := NormalizeHash(m.Hash)
		if _, asked := result[hash]; !asked || !m.Instant {
			continue
		}
		files := flattenFileTree(m.Files, "", nil)
		if best, ok := largestFile(files); ok {
			result[hash] = models.Cached(best.ID, best.Name, best.Size)
		} else {
			result[hash] = models.Cached("", "", 0)
		}
	}
	return result, nil
}

func (c *AllDebridClient) AddMagnet(ctx context.Context, infoHash string) (string, error) {
	hash := NormalizeHash(infoHash)
	if !ValidHash(hash) {
		return "", invalidHash(c.Type(), hash)
	}

	form := url.Values{}
	form.Set("magnets[]", magnetURI(hash))
	r := c.form(form)
	r.operation = "magnet_upload"
	r.path = "/magnet/upload"

	data, err := allDebridCall[allDebridMagnetUploadData](ctx, c, r)
	if err != nil {
		return "", err
	}
	if len(data.Magnets) == 0 {
		return "", httpError(c.Type(), http.StatusOK, "no magnet data returned")
	}
	magnet := data.Magnets[0]
	if magnet.Error != nil {
		if mapped := c.mapErrorCode(magnet.Error); mapped != nil {
			return "", mapped
		}
		return "", invalidHash(c.Type(), magnet.Error.Message)
	}
	c.api.logger.Debug().Int("id", magnet.ID).Str("hash", magnet.Hash).Bool("ready", magnet.Ready).Msg("magnet added")
	return strconv.Itoa(magnet.ID), nil
}

// SelectFiles is a no-op: AllDebrid processes every file of a magnet.
func (c *AllDebridClient) SelectFiles(ctx context.Context, jobID string, fileIDs []string) error {
	return nil
}

func (c *AllDebridClient) status(ctx context.Context, jobID string) (*allDebridStatus, error) {
	// status with files lives on v4.1
	base := strings.Replace(c.api.baseURL, "/v4", "/v4.1", 1)
	statusClient := c.api
	statusClient.baseURL = base

	body, err := statusClient.do(ctx, request{
		operation: "magnet_status",
		method:    http.MethodGet,
		path:      "/magnet/status",
		query:     c.query(url.Values{"id": {strings.TrimSpace(jobID)}}),
	})
	var envelope allDebridResponse[allDebridStatusData]
	if len(body) > 0 {
		if decodeErr := json.Unmarshal(body, &envelope); decodeErr != nil && err == nil {
			return nil, httpError(c.Type(), http.StatusOK, fmt.Sprintf("decode magnet_status response: %v", decodeErr))
		}
	}
	if envelope.Error != nil {
		if mapped := c.mapErrorCode(envelope.Error); mapped != nil {
			return nil, mapped
		}
	}
	if err != nil {
		return nil, err
	}
	if envelope.Status != "success" {
		return nil, httpError(c.Type(), http.StatusOK, "magnet status failed")
	}

	raw := envelope.Data.Magnets
	if len(raw) == 0 || string(raw) == "null" {
		return nil, torrentNotFound(c.Type(), "magnet "+jobID+" not found")
	}
	var st allDebridStatus
	if raw[0] == '{' {
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, httpError(c.Type(), http.StatusOK, "decode single magnet: "+err.Error())
		}
		return &st, nil
	}
	var magnets []allDebridStatus
	if err := json.Unmarshal(raw, &magnets); err != nil {
		return nil, httpError(c.Type(), http.StatusOK, "decode magnets array: "+err.Error())
	}
	if len(magnets) == 0 {
		return nil, torrentNotFound(c.Type(), "magnet "+jobID+" not found")
	}
	return &magnets[0], nil
}

func (c *AllDebridClient) GetStreamURL(ctx context.Context, jobID string) (*models.StreamInfo, error) {
	st, err := c.status(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch st.StatusCode {
	case allDebridStatusReady:
	case allDebridStatusInQueue, allDebridStatusDownloading, allDebridStatusCompressingMoving, allDebridStatusUploading:
		return nil, fileNotReady(c.Type(), strings.ToLower(st.Status))
	case allDebridStatusUploadFail, allDebridStatusInternalErrorUnpack,
		allDebridStatusNotDownloaded20Min, allDebridStatusFileTooBig,
		allDebridStatusInternalError, allDebridStatusDownloadTook72h,
		allDebridStatusDeletedOnHoster:
		return nil, torrentNotFound(c.Type(), st.Status)
	default:
		return nil, fileNotReady(c.Type(), fmt.Sprintf("status code %d", st.StatusCode))
	}

	var files []remoteFile
	if len(st.Files) > 0 {
		files = flattenFileTree(st.Files, "", nil)
	} else {
		for i, link := range st.Links {
			files = append(files, remoteFile{ID: strconv.Itoa(i + 1), Name: link.Filename, Size: link.Size, Link: link.Link})
		}
	}
	best, ok := largestFile(files)
	if !ok {
		return nil, fileNotReady(c.Type(), "no links yet")
	}

	unlocked, err := c.unlock(ctx, best.Link)
	if err != nil {
		return nil, err
	}
	return &models.StreamInfo{
		StreamURL: unlocked.Link,
		FileName:  best.Name,
		SizeBytes: best.Size,
		Backend:   c.Type(),
	}, nil
}

// flattenFileTree walks the v4.1 nested tree and collects files with their
// full paths. Files without a link (instant listings) are kept too.
func flattenFileTree(nodes []allDebridFileNode, basePath string, out []remoteFile) []remoteFile {
	for _, node := range nodes {
		p := node.N
		if basePath != "" {
			p = basePath + "/" + node.N
		}
		if len(node.E) > 0 {
			out = flattenFileTree(node.E, p, out)
			continue
		}
		out = append(out, remoteFile{
			ID:   strconv.Itoa(len(out) + 1),
			Name: node.N,
			Size: node.S,
			Link: node.L,
		})
	}
	return out
}

func (c *AllDebridClient) unlock(ctx context.Context, link string) (*allDebridUnlock, error) {
	trimmed := strings.TrimSpace(link)
	if trimmed == "" {
		return nil, httpError(c.Type(), http.StatusBadRequest, "link is required")
	}
	r := c.form(url.Values{"link": {trimmed}})
	r.operation = "link_unlock"
	r.path = "/link/unlock"

	data, err := allDebridCall[allDebridUnlock](ctx, c, r)
	if err != nil {
		return nil, err
	}
	if data.Delayed > 0 || data.Link == "" {
		return nil, fileNotReady(c.Type(), "link is being processed")
	}
	return &data, nil
}

func (c *AllDebridClient) Unrestrict(ctx context.Context, link string) (string, error) {
	data, err := c.unlock(ctx, link)
	if err != nil {
		return "", err
	}
	return data.Link, nil
}
