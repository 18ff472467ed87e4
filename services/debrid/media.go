package debrid

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var infoHashPattern = regexp.MustCompile(`^([0-9a-f]{40}|[0-9a-f]{64})$`)

// NormalizeHash lowercases and trims an info-hash.
func NormalizeHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

// ValidHash reports whether hash is a 40 (v1) or 64 (v2) character hex info-hash.
func ValidHash(hash string) bool {
	return infoHashPattern.MatchString(NormalizeHash(hash))
}

// normalizeHashes lowercases, drops blanks and dedupes while keeping input order.
func normalizeHashes(hashes []string) []string {
	seen := make(map[string]struct{}, len(hashes))
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		n := NormalizeHash(h)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// magnetURI builds a bare magnet link for an info-hash.
func magnetURI(hash string) string {
	return "magnet:?xt=urn:btih:" + NormalizeHash(hash)
}

var videoExtensions = map[string]struct{}{
	".mkv":  {},
	".mp4":  {},
	".m4v":  {},
	".avi":  {},
	".mov":  {},
	".webm": {},
	".mpg":  {},
	".mpeg": {},
	".ts":   {},
	".m2ts": {},
	".wmv":  {},
}

// exploreContainers are the extensions an Offcloud explore entry must carry to
// be picked over the first entry.
var exploreContainers = map[string]struct{}{
	".mkv":  {},
	".mp4":  {},
	".m4v":  {},
	".avi":  {},
	".mov":  {},
	".webm": {},
}

func isVideoFile(name string) bool {
	_, ok := videoExtensions[strings.ToLower(path.Ext(name))]
	return ok
}

// remoteFile is the backend-neutral view of one file in a job.
type remoteFile struct {
	ID   string
	Name string
	Size int64
	Link string
}

// largestFile returns the biggest file, preferring video files when any exist.
// Ties keep the earliest entry.
func largestFile(files []remoteFile) (remoteFile, bool) {
	var (
		best      remoteFile
		found     bool
		bestVideo bool
	)
	for _, f := range files {
		video := isVideoFile(f.Name)
		switch {
		case !found:
		case video && !bestVideo:
		case video == bestVideo && f.Size > best.Size:
		default:
			continue
		}
		best, found, bestVideo = f, true, video
	}
	return best, found
}

// sortRemoteFilesByID orders files by numeric id, falling back to string order.
func sortRemoteFilesByID(files []remoteFile) {
	sort.SliceStable(files, func(i, j int) bool {
		a, errA := strconv.Atoi(files[i].ID)
		b, errB := strconv.Atoi(files[j].ID)
		if errA == nil && errB == nil {
			return a < b
		}
		return files[i].ID < files[j].ID
	})
}

// fileNameFromURL extracts the last path segment of a download URL.
func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return ""
	}
	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "/" || name == "." {
		return ""
	}
	return name
}
