// Package failover plans the order in which stream candidates are tried when
// playback of the current one fails.
package failover

import (
	"sort"

	"resolvarr/models"
	"resolvarr/services/ranking"
	"resolvarr/utils/parsett"
)

const (
	maxSizeBonus = 50
	gib          = 1 << 30
)

// key identifies a stream for de-duplication. Streams without an identity
// fall back to their URL.
func key(s models.StreamInfo) string {
	if s.Identity != "" {
		return s.Identity
	}
	return s.StreamURL
}

// FallbackScore rates a fallback candidate. The weights are independent of
// the ranking tiers: a large SDR file can outrank a small HDR one.
func FallbackScore(s models.StreamInfo) int {
	score := 0
	switch ranking.HDRTier(s.HDR) {
	case 3:
		score += 40
	case 2:
		score += 30
	case 1:
		score += 20
	}
	switch ranking.CodecTier(s.Codec) {
	case 4:
		score += 20
	case 3:
		score += 15
	case 2:
		score += 10
	case 1:
		score += 5
	}
	if parsett.IsSpatialAudio(s.Audio) {
		score += 25
	}
	if s.SizeBytes > 0 {
		score += int(min(s.SizeBytes/gib, maxSizeBonus))
	}
	return score
}

// BuildQueue returns primary followed by the distinct alternates. Alternates
// matching the primary or an earlier alternate are dropped. When more than one
// fallback remains they are ordered by FallbackScore, ties by identity.
func BuildQueue(primary models.StreamInfo, alternates []models.StreamInfo) []models.StreamInfo {
	queue := make([]models.StreamInfo, 0, len(alternates)+1)
	queue = append(queue, primary)
	seen := map[string]struct{}{key(primary): {}}

	for _, alt := range alternates {
		k := key(alt)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		queue = append(queue, alt)
	}

	if len(queue) > 2 {
		fallbacks := queue[1:]
		scores := make(map[string]int, len(fallbacks))
		for _, s := range fallbacks {
			scores[key(s)] = FallbackScore(s)
		}
		sort.SliceStable(fallbacks, func(i, j int) bool {
			si, sj := scores[key(fallbacks[i])], scores[key(fallbacks[j])]
			if si != sj {
				return si > sj
			}
			return key(fallbacks[i]) < key(fallbacks[j])
		})
	}
	return queue
}

// NextStream returns the entry after `after` in queue. It reports false
// when `after` is not in the queue or is the last entry.
func NextStream(after models.StreamInfo, queue []models.StreamInfo) (models.StreamInfo, bool) {
	k := key(after)
	for i, s := range queue {
		if key(s) != k {
			continue
		}
		if i+1 < len(queue) {
			return queue[i+1], true
		}
		return models.StreamInfo{}, false
	}
	return models.StreamInfo{}, false
}
