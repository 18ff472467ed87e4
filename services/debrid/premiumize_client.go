package debrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"resolvarr/models"
)

const premiumizeBaseURL = "https://www.premiumize.me/api"

// PremiumizeClient talks to the Premiumize.me API.
type PremiumizeClient struct {
	api apiClient
}

var _ Backend = (*PremiumizeClient)(nil)

// NewPremiumizeClient creates a Premiumize client authenticated with an API key.
func NewPremiumizeClient(apiKey string, opts ClientOptions) *PremiumizeClient {
	return &PremiumizeClient{
		api: newAPIClient(models.BackendPremiumize, premiumizeBaseURL, opts, bearer(strings.TrimSpace(apiKey))),
	}
}

func init() {
	RegisterBackend(models.BackendPremiumize, func(credential string, opts ClientOptions) Backend {
		return NewPremiumizeClient(credential, opts)
	})
}

func (c *PremiumizeClient) Type() models.BackendType { return models.BackendPremiumize }

// premiumizeStatus is embedded in every response.
type premiumizeStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s premiumizeStatus) err(backend models.BackendType) error {
	if s.Status == "success" {
		return nil
	}
	msg := strings.ToLower(s.Message)
	switch {
	case strings.Contains(msg, "not logged in"), strings.Contains(msg, "invalid api key"), strings.Contains(msg, "customer_id and pin"):
		return newError(backend, KindUnauthorized, s.Message)
	case strings.Contains(msg, "premium"):
		return newError(backend, KindNotPremium, s.Message)
	case strings.Contains(msg, "too many"):
		return newError(backend, KindRateLimited, s.Message)
	}
	return httpError(backend, http.StatusOK, s.Message)
}

type premiumizeAccount struct {
	premiumizeStatus
	CustomerID   json.Number `json:"customer_id"`
	PremiumUntil int64       `json:"premium_until"`
}

// premiumizeCacheCheck holds parallel arrays indexed like the request items.
type premiumizeCacheCheck struct {
	premiumizeStatus
	Response []bool            `json:"response"`
	Filename []string          `json:"filename"`
	Filesize []json.RawMessage `json:"filesize"` // string or number
}

type premiumizeTransferCreate struct {
	premiumizeStatus
	ID   string `json:"id"`
	Name string `json:"name"`
}

type premiumizeTransfer struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Message  string  `json:"message"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	FolderID string  `json:"folder_id"`
	FileID   string  `json:"file_id"`
}

type premiumizeTransferList struct {
	premiumizeStatus
	Transfers []premiumizeTransfer `json:"transfers"`
}

type premiumizeItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"` // "file" or "folder"
	Size       int64  `json:"size"`
	Link       string `json:"link"`
	StreamLink string `json:"stream_link"`
}

type premiumizeFolder struct {
	premiumizeStatus
	Content []premiumizeItem `json:"content"`
}

type premiumizeItemDetails struct {
	premiumizeStatus
	premiumizeItem
}

type premiumizeDirectDL struct {
	premiumizeStatus
	Content []struct {
		Path       string `json:"path"`
		Size       int64  `json:"size"`
		Link       string `json:"link"`
		StreamLink string `json:"stream_link"`
	} `json:"content"`
}

// premiumizeEnvelope lets get and post check the status of any response type.
type premiumizeEnvelope interface {
	envelope() premiumizeStatus
}

func (s premiumizeStatus) envelope() premiumizeStatus { return s }

func (c *PremiumizeClient) get(ctx context.Context, op, path string, q url.Values, out premiumizeEnvelope) error {
	if err := c.api.getJSON(ctx, op, path, q, out); err != nil {
		return err
	}
	return out.envelope().err(c.Type())
}

func (c *PremiumizeClient) post(ctx context.Context, op, path string, form url.Values, out premiumizeEnvelope) error {
	if err := c.api.postForm(ctx, op, path, form, out); err != nil {
		return err
	}
	return out.envelope().err(c.Type())
}

func (c *PremiumizeClient) ValidateToken(ctx context.Context) (bool, error) {
	if _, err := c.GetAccountInfo(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (c *PremiumizeClient) GetAccountInfo(ctx context.Context) (*models.AccountInfo, error) {
	var acct premiumizeAccount
	if err := c.get(ctx, "account_info", "/account/info", nil, &acct); err != nil {
		return nil, err
	}
	info := &models.AccountInfo{Username: acct.CustomerID.String()}
	if acct.PremiumUntil > 0 {
		expiry := time.Unix(acct.PremiumUntil, 0).UTC()
		info.PremiumExpiry = &expiry
		info.IsPremium = expiry.After(time.Now())
	}
	return info, nil
}

func (c *PremiumizeClient) CheckCache(ctx context.Context, hashes []string) (map[string]models.CacheStatus, error) {
	normalized := normalizeHashes(hashes)
	result := make(map[string]models.CacheStatus, len(normalized))
	if len(normalized) == 0 {
		return result, nil
	}

	q := url.Values{}
	for _, h := range normalized {
		q.Add("items[]", h)
	}
	var check premiumizeCacheCheck
	if err := c.get(ctx, "cache_check", "/cache/check", q, &check); err != nil {
		return nil, err
	}

	for i, h := range normalized {
		if i >= len(check.Response) {
			result[h] = models.UnknownCache()
			continue
		}
		if !check.Response[i] {
			result[h] = models.NotCached()
			continue
		}
		var name string
		if i < len(check.Filename) {
			name = check.Filename[i]
		}
		var size int64
		if i < len(check.Filesize) {
			size = parseFlexibleInt(check.Filesize[i])
		}
		result[h] = models.Cached("", name, size)
	}
	return result, nil
}

// parseFlexibleInt accepts 123 or "123".
func parseFlexibleInt(raw json.RawMessage) int64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (c *PremiumizeClient) AddMagnet(ctx context.Context, infoHash string) (string, error) {
	hash := NormalizeHash(infoHash)
	if !ValidHash(hash) {
		return "", invalidHash(c.Type(), hash)
	}
	var created premiumizeTransferCreate
	if err := c.post(ctx, "transfer_create", "/transfer/create", url.Values{"src": {magnetURI(hash)}}, &created); err != nil {
		if KindOf(err) == KindHTTP && strings.Contains(strings.ToLower(err.Error()), "magnet") {
			return "", invalidHash(c.Type(), hash)
		}
		return "", err
	}
	if created.ID == "" {
		return "", httpError(c.Type(), http.StatusOK, "transfer create returned no id")
	}
	c.api.logger.Debug().Str("hash", hash).Str("job", created.ID).Msg("transfer created")
	return created.ID, nil
}

// SelectFiles is a no-op: Premiumize transfers always fetch the whole torrent.
func (c *PremiumizeClient) SelectFiles(ctx context.Context, jobID string, fileIDs []string) error {
	return nil
}

func (c *PremiumizeClient) GetStreamURL(ctx context.Context, jobID string) (*models.StreamInfo, error) {
	var list premiumizeTransferList
	if err := c.get(ctx, "transfer_list", "/transfer/list", nil, &list); err != nil {
		return nil, err
	}
	var transfer *premiumizeTransfer
	for i := range list.Transfers {
		if list.Transfers[i].ID == jobID {
			transfer = &list.Transfers[i]
			break
		}
	}
	if transfer == nil {
		return nil, torrentNotFound(c.Type(), "transfer "+jobID+" not found")
	}

	switch transfer.Status {
	case "finished", "seeding":
	case "error", "timeout", "deleted", "banned":
		reason := transfer.Status
		if transfer.Message != "" {
			reason += ": " + transfer.Message
		}
		return nil, torrentNotFound(c.Type(), reason)
	default:
		return nil, fileNotReady(c.Type(), transfer.Status+" "+strconv.FormatFloat(transfer.Progress*100, 'f', 0, 64)+"%")
	}

	if transfer.FileID != "" {
		var item premiumizeItemDetails
		if err := c.get(ctx, "item_details", "/item/details", url.Values{"id": {transfer.FileID}}, &item); err != nil {
			return nil, err
		}
		return c.streamInfo(item.premiumizeItem), nil
	}
	if transfer.FolderID == "" {
		return nil, fileNotReady(c.Type(), "transfer has no content yet")
	}

	var folder premiumizeFolder
	if err := c.get(ctx, "folder_list", "/folder/list", url.Values{"id": {transfer.FolderID}}, &folder); err != nil {
		return nil, err
	}
	files := make([]remoteFile, 0, len(folder.Content))
	byID := make(map[string]premiumizeItem, len(folder.Content))
	for _, item := range folder.Content {
		if item.Type != "file" {
			continue
		}
		files = append(files, remoteFile{ID: item.ID, Name: item.Name, Size: item.Size, Link: item.Link})
		byID[item.ID] = item
	}
	best, ok := largestFile(files)
	if !ok {
		return nil, fileNotReady(c.Type(), "folder is empty")
	}
	return c.streamInfo(byID[best.ID]), nil
}

func (c *PremiumizeClient) streamInfo(item premiumizeItem) *models.StreamInfo {
	link := item.Link
	if link == "" {
		link = item.StreamLink
	}
	return &models.StreamInfo{
		StreamURL: link,
		FileName:  item.Name,
		SizeBytes: item.Size,
		Backend:   c.Type(),
	}
}

func (c *PremiumizeClient) Unrestrict(ctx context.Context, link string) (string, error) {
	var dl premiumizeDirectDL
	if err := c.post(ctx, "directdl", "/transfer/directdl", url.Values{"src": {strings.TrimSpace(link)}}, &dl); err != nil {
		return "", err
	}
	for _, entry := range dl.Content {
		if entry.Link != "" {
			return entry.Link, nil
		}
	}
	return "", httpError(c.Type(), http.StatusOK, "directdl returned no link")
}
