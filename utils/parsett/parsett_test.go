package parsett

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeResolution(t *testing.T) {
	cases := map[string]string{
		"Movie.2019.2160p.WEB":     "2160p",
		"Movie 4K HDR":             "2160p",
		"UHD BluRay":               "2160p",
		"Show.S01E01.1080i.HDTV":   "1080p",
		"Show.S01E01.720p.x264":    "720p",
		"dvdrip.576p":              "576p",
		"Movie.DTS-HD.MA.5.1":      "",
		"Movie.2010.BluRay.x264":   "",
		"Movie.1440p.WEB-DL.H.264": "1440p",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeResolution(in), in)
	}
}

func TestNormalizeSource(t *testing.T) {
	cases := map[string]string{
		"Movie.2160p.BluRay.REMUX": "REMUX",
		"Movie.BDRemux.1080p":      "REMUX",
		"Movie.1080p.BluRay.x264":  "BluRay",
		"Movie.1080p.BRRip":        "BluRay",
		"Show.S01.WEBRip.x264":     "WEBRip",
		"Show.S01.WEB-DL.x264":     "WEB-DL",
		"Show.S01.1080p.WEB.h264":  "WEB-DL",
		"Show.S01E02.HDTV.x264":    "HDTV",
		"Movie.DVDRip.XviD":        "DVD",
		"Movie.2001":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeSource(in), in)
	}
}

func TestNormalizeCodecAndHDR(t *testing.T) {
	assert.Equal(t, "H.265", NormalizeCodec("x265"))
	assert.Equal(t, "H.265", NormalizeCodec("HEVC 10bit"))
	assert.Equal(t, "H.264", NormalizeCodec("H.264"))
	assert.Equal(t, "AV1", NormalizeCodec("AV1"))
	assert.Equal(t, "XviD", NormalizeCodec("DivX"))
	assert.Empty(t, NormalizeCodec("MPEG2"))

	assert.Equal(t, "DV", NormalizeHDR("DoVi HDR10"))
	assert.Equal(t, "HDR10+", NormalizeHDR("HDR10Plus"))
	assert.Equal(t, "HDR10+", NormalizeHDR("HDR10+"))
	assert.Equal(t, "HDR10", NormalizeHDR("Movie.HDR10.HEVC"))
	assert.Equal(t, "HDR", NormalizeHDR("Movie.HDR.x265"))
	assert.Equal(t, "HLG", NormalizeHDR("HLG"))
	assert.Empty(t, NormalizeHDR("SDR"))
}

func TestNormalizeAudio(t *testing.T) {
	cases := map[string]string{
		"TrueHD.7.1.Atmos": "Atmos",
		"DTS-X":            "DTS:X",
		"DTS:X 7.1":        "DTS:X",
		"Auro-3D":          "Auro-3D",
		"TrueHD 7.1":       "TrueHD",
		"DTS-HD.MA.5.1":    "DTS-HD MA",
		"DDP5.1":           "DDP",
		"DD+ 5.1":          "DDP",
		"DTS 5.1":          "DTS",
		"AC3":              "DD",
		"AAC2.0":           "AAC",
		"FLAC":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeAudio(in), in)
	}
}

func TestIsSpatialAudio(t *testing.T) {
	assert.True(t, IsSpatialAudio("Atmos"))
	assert.True(t, IsSpatialAudio("DTS:X"))
	assert.True(t, IsSpatialAudio("Auro-3D"))
	assert.False(t, IsSpatialAudio("DTS-HD MA"))
	assert.False(t, IsSpatialAudio("TrueHD"))
}

func TestParse(t *testing.T) {
	p := Parse("The.Matrix.1999.2160p.UHD.BluRay.REMUX.DV.HDR10.HEVC.TrueHD.7.1.Atmos-FGT")
	assert.Equal(t, "2160p", p.Resolution)
	assert.Equal(t, "REMUX", p.Source)
	assert.Equal(t, "H.265", p.Codec)
	assert.Equal(t, "DV", p.HDR)
	assert.Equal(t, "Atmos", p.Audio)
	assert.Equal(t, 1999, p.Year)

	empty := Parse("")
	assert.Empty(t, empty.Resolution)
	assert.Empty(t, empty.Codec)
}

func TestParseBatch(t *testing.T) {
	out := ParseBatch([]string{"A.720p.x264", "A.720p.x264", "B.1080p.x265"})
	assert.Len(t, out, 2)
	assert.Equal(t, "720p", out["A.720p.x264"].Resolution)
	assert.Equal(t, "H.265", out["B.1080p.x265"].Codec)
}
