package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CacheState is the tag of a CacheStatus.
type CacheState int

const (
	CacheStateUnknown CacheState = iota
	CacheStateNotCached
	CacheStateCached
)

func (s CacheState) String() string {
	switch s {
	case CacheStateCached:
		return "cached"
	case CacheStateNotCached:
		return "not_cached"
	default:
		return "unknown"
	}
}

// CacheStatus reports whether a backend already holds a torrent. The file
// fields are only meaningful for the cached state and may be empty even then.
type CacheStatus struct {
	State    CacheState
	FileID   string
	FileName string
	FileSize int64
}

// Cached builds a cached status with optional file details.
func Cached(fileID, fileName string, fileSize int64) CacheStatus {
	return CacheStatus{State: CacheStateCached, FileID: fileID, FileName: fileName, FileSize: fileSize}
}

// NotCached builds a not-cached status.
func NotCached() CacheStatus { return CacheStatus{State: CacheStateNotCached} }

// UnknownCache builds an unknown status.
func UnknownCache() CacheStatus { return CacheStatus{State: CacheStateUnknown} }

// IsCached reports whether the status is the cached variant.
func (c CacheStatus) IsCached() bool { return c.State == CacheStateCached }

type cacheStatusJSON struct {
	State    string `json:"state"`
	FileID   string `json:"fileId,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
}

func (c CacheStatus) MarshalJSON() ([]byte, error) {
	out := cacheStatusJSON{State: c.State.String()}
	if c.IsCached() {
		out.FileID = c.FileID
		out.FileName = c.FileName
		out.FileSize = c.FileSize
	}
	return json.Marshal(out)
}

func (c *CacheStatus) UnmarshalJSON(data []byte) error {
	var in cacheStatusJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.State {
	case "cached":
		*c = Cached(in.FileID, in.FileName, in.FileSize)
	case "not_cached":
		*c = NotCached()
	case "unknown", "":
		*c = UnknownCache()
	default:
		return fmt.Errorf("unknown cache state %q", in.State)
	}
	return nil
}

// CacheHit pairs an arbitrated cache status with the backend whose answer won.
// Backend is empty when no backend answered for the hash.
type CacheHit struct {
	Status  CacheStatus `json:"status"`
	Backend BackendType `json:"backend,omitempty"`
}

// TorrentResult is a torrent search result as returned by an indexer.
type TorrentResult struct {
	InfoHash        string      `json:"infoHash"`
	Title           string      `json:"title"`
	SizeBytes       int64       `json:"sizeBytes"`
	Seeders         int         `json:"seeders"`
	Leechers        int         `json:"leechers"`
	Quality         string      `json:"quality,omitempty"` // resolution, e.g. 2160p
	Codec           string      `json:"codec,omitempty"`
	Audio           string      `json:"audio,omitempty"`
	Source          string      `json:"source,omitempty"`
	HDR             string      `json:"hdr,omitempty"`
	IndexerName     string      `json:"indexerName,omitempty"`
	MagnetURI       string      `json:"magnetUri,omitempty"`
	IsCached        bool        `json:"isCached"`
	CachedOnService BackendType `json:"cachedOnService,omitempty"`
}

// StreamInfo is a playable stream produced by a backend.
type StreamInfo struct {
	StreamURL string      `json:"streamUrl"`
	Quality   string      `json:"quality,omitempty"`
	Codec     string      `json:"codec,omitempty"`
	Audio     string      `json:"audio,omitempty"`
	Source    string      `json:"source,omitempty"`
	HDR       string      `json:"hdr,omitempty"`
	FileName  string      `json:"fileName"`
	SizeBytes int64       `json:"sizeBytes,omitempty"` // 0 when the backend did not report it
	Backend   BackendType `json:"backend"`
	Identity  string      `json:"identity"`
}

var streamIdentityNamespace = uuid.MustParse("6f1c8c2e-3d8e-4d55-9d4e-8f3b8c1a2b71")

// StreamIdentity derives the stable identity of a stream from the backend,
// the torrent info-hash and the file name. Resolving the same file twice on
// the same backend yields the same identity even though the URL changes.
func StreamIdentity(backend BackendType, infoHash, fileName string) string {
	key := strings.Join([]string{
		string(backend),
		strings.ToLower(strings.TrimSpace(infoHash)),
		strings.TrimSpace(fileName),
	}, "|")
	return uuid.NewSHA1(streamIdentityNamespace, []byte(key)).String()
}
