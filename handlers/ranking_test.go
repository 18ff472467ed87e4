package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resolvarr/models"
	"resolvarr/services/ranking"
)

func TestRankingHandler_RankEnrichesAndOrders(t *testing.T) {
	h := NewRankingHandler(ranking.Preferences{PreferCached: true})
	body := `{"candidates":[
		{"infoHash":"AAAA","title":"Show.S01E01.720p.WEB-DL.x264","seeders":900},
		{"infoHash":"bbbb","title":"Show.S01E01.2160p.WEB-DL.DV.HEVC","seeders":3}
	]}`
	rec := post(t, h.Rank, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ranked []models.TorrentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ranked))
	require.Len(t, ranked, 2)
	assert.Equal(t, "bbbb", ranked[0].InfoHash)
	assert.Equal(t, "2160p", ranked[0].Quality)
	assert.Equal(t, "aaaa", ranked[1].InfoHash, "hashes are lowercased")
}

func TestRankingHandler_RankPreferencesOverride(t *testing.T) {
	h := NewRankingHandler(ranking.Preferences{})
	body := `{"parallel":true,"preferences":{"preferCached":true},"candidates":[
		{"infoHash":"aaaa","title":"Film.1080p.BluRay.x264","quality":"1080p","isCached":false,"seeders":50},
		{"infoHash":"bbbb","title":"Film.1080p.BluRay.x264","quality":"1080p","isCached":true,"seeders":1}
	]}`
	rec := post(t, h.Rank, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var ranked []models.TorrentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ranked))
	assert.Equal(t, "bbbb", ranked[0].InfoHash)
}

func TestRankingHandler_Failover(t *testing.T) {
	h := NewRankingHandler(ranking.Preferences{})
	body := `{"primary":{"streamUrl":"p","identity":"p"},"alternates":[
		{"streamUrl":"a","identity":"a","hdr":"DV"},
		{"streamUrl":"p2","identity":"p"},
		{"streamUrl":"b","identity":"b"}
	]}`
	rec := post(t, h.Failover, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var queue []models.StreamInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queue))
	require.Len(t, queue, 3)
	assert.Equal(t, []string{"p", "a", "b"}, []string{queue[0].Identity, queue[1].Identity, queue[2].Identity})
}

func TestRankingHandler_NextStream(t *testing.T) {
	h := NewRankingHandler(ranking.Preferences{})
	queue := `[{"streamUrl":"p","identity":"p"},{"streamUrl":"a","identity":"a"}]`

	rec := post(t, h.NextStream, `{"after":{"identity":"p"},"queue":`+queue+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var next models.StreamInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
	assert.Equal(t, "a", next.Identity)

	rec = post(t, h.NextStream, `{"after":{"identity":"a"},"queue":`+queue+`}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
