// Package ranking orders torrent search results by playback quality.
//
// Scores are built from tiers whose unit is larger than the maximum sum of
// every lower tier, so a better resolution always outranks any combination of
// HDR, codec, audio, source, preference, seeder and size bonuses.
package ranking

import (
	"sort"
	"strings"

	"github.com/sourcegraph/conc/iter"
	"golang.org/x/text/cases"

	"resolvarr/models"
	"resolvarr/utils/parsett"
)

// Preferences are the user controlled bonuses.
type Preferences struct {
	PreferCached       bool   `json:"preferCached" mapstructure:"prefer_cached"`
	PreferSpatialAudio bool   `json:"preferSpatialAudio" mapstructure:"prefer_spatial_audio"`
	PreferredHDR       string `json:"preferredHdr,omitempty" mapstructure:"preferred_hdr"`
}

const (
	maxSeeders = 500
	maxSizeGiB = 100
	gib        = 1 << 30

	sizeRange   = maxSizeGiB + 1 // 0..100
	seederUnit  = sizeRange
	unitPrefs   = seederUnit*maxSeeders + sizeRange // > seeders + size
	unitSource  = unitPrefs * 8                     // prefs sum to at most 7 units
	unitSpatial = unitSource * 5                    // source tops out at 4
	unitCodec   = unitSpatial * 2
	unitHDR     = unitCodec * 5 // codec tops out at 4
	unitRes     = unitHDR * 4   // hdr tops out at 3

	cacheBonus   = 4 * unitPrefs
	spatialBonus = 2 * unitPrefs
	hdrBonus     = 1 * unitPrefs
)

// ResolutionTier ranks a resolution: 2160p=5 ... SD=1, unknown=0.
func ResolutionTier(value string) int64 {
	if strings.EqualFold(strings.TrimSpace(value), "sd") {
		return 1
	}
	switch parsett.NormalizeResolution(value) {
	case "2160p":
		return 5
	case "1440p":
		return 4
	case "1080p":
		return 3
	case "720p":
		return 2
	case "576p", "480p":
		return 1
	}
	return 0
}

// HDRTier ranks HDR formats: DV=3, HDR10+/HDR10/HDR=2, HLG=1, SDR=0.
func HDRTier(value string) int64 {
	switch parsett.NormalizeHDR(value) {
	case "DV":
		return 3
	case "HDR10+", "HDR10", "HDR":
		return 2
	case "HLG":
		return 1
	}
	return 0
}

// CodecTier ranks codecs: H.265=4, H.264=3, AV1=2, XviD=1, unknown=0.
func CodecTier(value string) int64 {
	switch parsett.NormalizeCodec(value) {
	case "H.265":
		return 4
	case "H.264":
		return 3
	case "AV1":
		return 2
	case "XviD":
		return 1
	}
	return 0
}

// SourceTier ranks sources: remux=4, Blu-ray=3, web-dl=2, webrip/hdtv=1.
func SourceTier(value string) int64 {
	switch parsett.NormalizeSource(value) {
	case "REMUX":
		return 4
	case "BluRay":
		return 3
	case "WEB-DL":
		return 2
	case "WEBRip", "HDTV":
		return 1
	}
	return 0
}

// Score computes the deterministic quality score of a candidate.
func Score(r models.TorrentResult, prefs Preferences) int64 {
	var score int64
	score += ResolutionTier(r.Quality) * unitRes
	hdr := HDRTier(r.HDR)
	score += hdr * unitHDR
	score += CodecTier(r.Codec) * unitCodec

	spatial := parsett.IsSpatialAudio(r.Audio)
	if spatial {
		score += unitSpatial
	}
	score += SourceTier(r.Source) * unitSource

	if prefs.PreferCached && (r.IsCached || r.CachedOnService != "") {
		score += cacheBonus
	}
	if prefs.PreferSpatialAudio && spatial {
		score += spatialBonus
	}
	if pref := HDRTier(prefs.PreferredHDR); pref > 0 && pref == hdr {
		score += hdrBonus
	}

	seeders := int64(min(max(r.Seeders, 0), maxSeeders))
	score += seeders * seederUnit

	if r.SizeBytes > 0 {
		score += min(r.SizeBytes/gib, maxSizeGiB)
	}
	return score
}

type scored struct {
	result models.TorrentResult
	score  int64
	hash   string
	title  string
}

func newScored(r models.TorrentResult, prefs Preferences) scored {
	return scored{
		result: r,
		score:  Score(r, prefs),
		hash:   strings.ToLower(strings.TrimSpace(r.InfoHash)),
		title:  cases.Fold().String(r.Title),
	}
}

// less orders by score descending, then info-hash, folded title and indexer.
func less(a, b scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.hash != b.hash {
		return a.hash < b.hash
	}
	if a.title != b.title {
		return a.title < b.title
	}
	return a.result.IndexerName < b.result.IndexerName
}

func finish(items []scored) []models.TorrentResult {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	out := make([]models.TorrentResult, len(items))
	for i := range items {
		out[i] = items[i].result
	}
	return out
}

// Rank returns the candidates best first. The input slice is not modified.
func Rank(results []models.TorrentResult, prefs Preferences) []models.TorrentResult {
	items := make([]scored, len(results))
	for i, r := range results {
		items[i] = newScored(r, prefs)
	}
	return finish(items)
}

// RankParallel scores candidates concurrently and sorts them with the same
// comparator as Rank, so both return the same order.
func RankParallel(results []models.TorrentResult, prefs Preferences) []models.TorrentResult {
	items := iter.Map(results, func(r *models.TorrentResult) scored {
		return newScored(*r, prefs)
	})
	return finish(items)
}

// Enrich fills empty quality fields of each result from its title.
func Enrich(results []models.TorrentResult) []models.TorrentResult {
	out := make([]models.TorrentResult, len(results))
	for i, r := range results {
		if r.Quality == "" || r.Codec == "" || r.Audio == "" || r.Source == "" || r.HDR == "" {
			parsed := parsett.Parse(r.Title)
			if r.Quality == "" {
				r.Quality = parsed.Resolution
			}
			if r.Codec == "" {
				r.Codec = parsed.Codec
			}
			if r.Audio == "" {
				r.Audio = parsed.Audio
			}
			if r.Source == "" {
				r.Source = parsed.Source
			}
			if r.HDR == "" {
				r.HDR = parsed.HDR
			}
		}
		r.InfoHash = strings.ToLower(strings.TrimSpace(r.InfoHash))
		out[i] = r
	}
	return out
}
