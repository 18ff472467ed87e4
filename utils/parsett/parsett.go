package parsett

import (
	"regexp"
	"strings"

	"github.com/moistari/rls"
)

// ParsedTitle holds the normalized quality signals of a release title.
// Empty fields mean the signal was not found.
type ParsedTitle struct {
	Title      string `json:"title"`
	Year       int    `json:"year,omitempty"`
	Resolution string `json:"resolution,omitempty"` // 2160p, 1440p, 1080p, 720p, 576p, 480p
	Source     string `json:"source,omitempty"`     // REMUX, BluRay, WEB-DL, WEBRip, HDTV, DVD
	Codec      string `json:"codec,omitempty"`      // H.265, H.264, AV1, XviD
	HDR        string `json:"hdr,omitempty"`        // DV, HDR10+, HDR10, HDR, HLG
	Audio      string `json:"audio,omitempty"`
	Group      string `json:"group,omitempty"`
}

// Parse extracts quality signals from a release title or file name. rls
// does the tokenizing; anything it leaves empty is looked up in the raw title.
func Parse(title string) ParsedTitle {
	r := rls.ParseString(title)
	out := ParsedTitle{
		Title: r.Title,
		Year:  r.Year,
		Group: r.Group,
	}

	out.Resolution = NormalizeResolution(r.Resolution)
	if out.Resolution == "" {
		out.Resolution = NormalizeResolution(title)
	}

	out.Source = NormalizeSource(strings.Join(append([]string{r.Source}, r.Other...), " "))
	if out.Source == "" || (out.Source != "REMUX" && remuxPattern.MatchString(title)) {
		if s := NormalizeSource(title); s != "" {
			out.Source = s
		}
	}

	out.Codec = NormalizeCodec(strings.Join(r.Codec, " "))
	if out.Codec == "" {
		out.Codec = NormalizeCodec(title)
	}

	out.HDR = NormalizeHDR(strings.Join(r.HDR, " "))
	if out.HDR == "" {
		out.HDR = NormalizeHDR(title)
	}

	out.Audio = NormalizeAudio(strings.Join(r.Audio, " "))
	if out.Audio == "" || !IsSpatialAudio(out.Audio) {
		if a := NormalizeAudio(title); a != "" && (out.Audio == "" || IsSpatialAudio(a)) {
			out.Audio = a
		}
	}
	return out
}

// ParseBatch parses every title and returns title -> parsed result.
func ParseBatch(titles []string) map[string]ParsedTitle {
	out := make(map[string]ParsedTitle, len(titles))
	for _, t := range titles {
		if _, ok := out[t]; ok {
			continue
		}
		out[t] = Parse(t)
	}
	return out
}

var (
	resolutionPatterns = []struct {
		re    *regexp.Regexp
		value string
	}{
		{regexp.MustCompile(`(?i)(^|[^a-z0-9])(2160p?|4k|uhd)([^a-z0-9]|$)`), "2160p"},
		{regexp.MustCompile(`(?i)(^|[^a-z0-9])1440p?([^a-z0-9]|$)`), "1440p"},
		{regexp.MustCompile(`(?i)(^|[^a-z0-9])1080[pi]?([^a-z0-9]|$)`), "1080p"},
		{regexp.MustCompile(`(?i)(^|[^a-z0-9])720p?([^a-z0-9]|$)`), "720p"},
		{regexp.MustCompile(`(?i)(^|[^a-z0-9])576[pi]?([^a-z0-9]|$)`), "576p"},
		{regexp.MustCompile(`(?i)(^|[^a-z0-9])480[pi]?([^a-z0-9]|$)`), "480p"},
	}

	remuxPattern  = regexp.MustCompile(`(?i)(^|[^a-z0-9])(bd)?remux([^a-z0-9]|$)`)
	blurayPattern = regexp.MustCompile(`(?i)(^|[^a-z0-9])(blu-?ray|bdrip|brrip|bd25|bd50|uhd[ .-]?bluray)([^a-z0-9]|$)`)
	webdlPattern  = regexp.MustCompile(`(?i)(^|[^a-z0-9])(web-?dl|web)([^a-z0-9]|$)`)
	webripPattern = regexp.MustCompile(`(?i)(^|[^a-z0-9])web-?rip([^a-z0-9]|$)`)
	hdtvPattern   = regexp.MustCompile(`(?i)(^|[^a-z0-9])(hdtv|pdtv|dsr|tvrip)([^a-z0-9]|$)`)
	dvdPattern    = regexp.MustCompile(`(?i)(^|[^a-z0-9])(dvd(rip|r|5|9)?)([^a-z0-9]|$)`)

	h265Pattern = regexp.MustCompile(`(?i)(^|[^a-z0-9])(h\.?265|x\.?265|hevc)([^a-z0-9]|$)`)
	h264Pattern = regexp.MustCompile(`(?i)(^|[^a-z0-9])(h\.?264|x\.?264|avc)([^a-z0-9]|$)`)
	av1Pattern  = regexp.MustCompile(`(?i)(^|[^a-z0-9])av1([^a-z0-9]|$)`)
	xvidPattern = regexp.MustCompile(`(?i)(^|[^a-z0-9])(xvid|divx)([^a-z0-9]|$)`)

	dvPattern      = regexp.MustCompile(`(?i)(^|[^a-z0-9])(dv|dovi|dolby[ .-]?vision)([^a-z0-9]|$)`)
	hdr10pPattern  = regexp.MustCompile(`(?i)(^|[^a-z0-9])hdr10(\+|p|plus)`)
	hdr10Pattern   = regexp.MustCompile(`(?i)(^|[^a-z0-9])hdr10([^a-z0-9+]|$)`)
	hdrPattern     = regexp.MustCompile(`(?i)(^|[^a-z0-9])hdr([^a-z0-9]|$)`)
	hlgPattern     = regexp.MustCompile(`(?i)(^|[^a-z0-9])hlg([^a-z0-9]|$)`)
	atmosPattern   = regexp.MustCompile(`(?i)(^|[^a-z0-9])atmos([^a-z0-9]|$)`)
	dtsxPattern    = regexp.MustCompile(`(?i)(^|[^a-z0-9])dts[ .:-]?x([^a-z0-9]|$)`)
	auroPattern    = regexp.MustCompile(`(?i)(^|[^a-z0-9])auro[ .-]?3d([^a-z0-9]|$)`)
	truehdPattern  = regexp.MustCompile(`(?i)(^|[^a-z0-9])true[ .-]?hd([^a-z0-9]|$)`)
	dtshdPattern   = regexp.MustCompile(`(?i)(^|[^a-z0-9])dts[ .-]?hd([ .-]?ma)?([^a-z0-9]|$)`)
	ddpPattern     = regexp.MustCompile(`(?i)(^|[^a-z0-9])(ddp|dd\+|e-?ac-?3)`)
	ddPattern      = regexp.MustCompile(`(?i)(^|[^a-z0-9])(dd|ac-?3|dolby[ .-]?digital)([^a-z+]|$)`)
	dtsPattern     = regexp.MustCompile(`(?i)(^|[^a-z0-9])dts([^a-z0-9]|$)`)
	aacPattern     = regexp.MustCompile(`(?i)(^|[^a-z0-9])aac`)
	spatialPattern = regexp.MustCompile(`(?i)(atmos|dts[ .:-]?x([^a-z0-9]|$)|auro[ .-]?3d)`)
)

// NormalizeResolution maps resolution spellings (4K, UHD, 1080i, ...) to
// the canonical form.
func NormalizeResolution(value string) string {
	for _, p := range resolutionPatterns {
		if p.re.MatchString(value) {
			return p.value
		}
	}
	return ""
}

// NormalizeSource maps source spellings to REMUX, BluRay, WEB-DL, WEBRip,
// HDTV or DVD. Remux wins over every other source token.
func NormalizeSource(value string) string {
	switch {
	case remuxPattern.MatchString(value):
		return "REMUX"
	case blurayPattern.MatchString(value):
		return "BluRay"
	case webripPattern.MatchString(value):
		return "WEBRip"
	case webdlPattern.MatchString(value):
		return "WEB-DL"
	case hdtvPattern.MatchString(value):
		return "HDTV"
	case dvdPattern.MatchString(value):
		return "DVD"
	}
	return ""
}

// NormalizeCodec maps codec spellings (x265, HEVC, AVC, ...) to the canonical form.
func NormalizeCodec(value string) string {
	switch {
	case h265Pattern.MatchString(value):
		return "H.265"
	case h264Pattern.MatchString(value):
		return "H.264"
	case av1Pattern.MatchString(value):
		return "AV1"
	case xvidPattern.MatchString(value):
		return "XviD"
	}
	return ""
}

// NormalizeHDR returns the strongest HDR format mentioned in value.
func NormalizeHDR(value string) string {
	switch {
	case dvPattern.MatchString(value):
		return "DV"
	case hdr10pPattern.MatchString(value):
		return "HDR10+"
	case hdr10Pattern.MatchString(value):
		return "HDR10"
	case hdrPattern.MatchString(value):
		return "HDR"
	case hlgPattern.MatchString(value):
		return "HLG"
	}
	return ""
}

// NormalizeAudio returns the most notable audio format mentioned in value,
// preferring spatial formats.
func NormalizeAudio(value string) string {
	switch {
	case atmosPattern.MatchString(value):
		return "Atmos"
	case dtsxPattern.MatchString(value):
		return "DTS:X"
	case auroPattern.MatchString(value):
		return "Auro-3D"
	case truehdPattern.MatchString(value):
		return "TrueHD"
	case dtshdPattern.MatchString(value):
		return "DTS-HD MA"
	case ddpPattern.MatchString(value):
		return "DDP"
	case dtsPattern.MatchString(value):
		return "DTS"
	case ddPattern.MatchString(value):
		return "DD"
	case aacPattern.MatchString(value):
		return "AAC"
	}
	return ""
}

// IsSpatialAudio reports whether value names Atmos, DTS:X or Auro-3D.
func IsSpatialAudio(value string) bool {
	return spatialPattern.MatchString(value)
}
