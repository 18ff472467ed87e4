package debrid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resolvarr/models"
)

func TestRealDebridCheckCacheBatchesAndSkipsInvalid(t *testing.T) {
	var (
		mu      sync.Mutex
		batches [][]string
	)
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "/torrents/instantAvailability/"
		assert.True(t, strings.HasPrefix(r.URL.Path, prefix), r.URL.Path)
		hashes := strings.Split(strings.TrimPrefix(r.URL.Path, prefix), "/")
		mu.Lock()
		batches = append(batches, hashes)
		mu.Unlock()

		resp := map[string]any{}
		for _, h := range hashes {
			if h == testHash(0) {
				resp[strings.ToUpper(h)] = map[string]any{
					"rd": []map[string]any{{
						"1": map[string]any{"filename": "readme.txt", "filesize": 90000},
						"2": map[string]any{"filename": "Movie.2160p.mkv", "filesize": 50000},
					}},
				}
				continue
			}
			resp[h] = []any{}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))

	hashes := []string{"not-a-hash/../user"}
	for i := 0; i < 100; i++ {
		hashes = append(hashes, testHash(i))
	}

	client := NewRealDebridClient("token", ClientOptions{BaseURL: srv.URL})
	statuses, err := client.CheckCache(context.Background(), hashes)
	require.NoError(t, err)

	require.Len(t, batches, 3)
	for _, b := range batches {
		assert.LessOrEqual(t, len(b), realDebridMaxHashesPerRequest)
		for _, h := range b {
			assert.True(t, ValidHash(h), "invalid hash %q reached the url", h)
		}
	}

	require.Len(t, statuses, 101)
	assert.Equal(t, models.UnknownCache(), statuses["not-a-hash/../user"])
	assert.Equal(t, models.Cached("2", "Movie.2160p.mkv", 50000), statuses[testHash(0)])
	assert.Equal(t, models.NotCached(), statuses[testHash(99)])
}

func TestRealDebridEmptyCheckMakesNoRequest(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	}))
	client := NewRealDebridClient("token", ClientOptions{BaseURL: srv.URL})
	statuses, err := client.CheckCache(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestRealDebridResolveFlow(t *testing.T) {
	hash := testHash(42)
	var infoCalls int
	var selectBody, addBody string

	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/torrents/addMagnet":
			body, _ := io.ReadAll(r.Body)
			addBody = string(body)
			_, _ = io.WriteString(w, `{"id":"JOB1","uri":"https://real-debrid.com/torrents/JOB1"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/torrents/selectFiles/JOB1":
			body, _ := io.ReadAll(r.Body)
			selectBody = string(body)
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/torrents/info/JOB1":
			infoCalls++
			if infoCalls == 1 {
				_, _ = io.WriteString(w, `{"id":"JOB1","status":"downloading","progress":37}`)
				return
			}
			_, _ = io.WriteString(w, `{
				"id":"JOB1","filename":"Movie","status":"downloaded","progress":100,
				"files":[
					{"id":1,"path":"/Movie/sample.mkv","bytes":100,"selected":1},
					{"id":2,"path":"/Movie/info.nfo","bytes":5,"selected":0},
					{"id":3,"path":"/Movie/Movie.1080p.x264.mkv","bytes":8000,"selected":1}
				],
				"links":["https://real-debrid.com/d/SAMPLE","https://real-debrid.com/d/MAIN"]
			}`)
		case r.URL.Path == "/unrestrict/link":
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "link=https://real-debrid.com/d/MAIN", string(body))
			_, _ = io.WriteString(w, `{"id":"U1","filename":"Movie.1080p.x264.mkv","filesize":8000,"download":"https://cdn.real-debrid.com/d/MAIN/Movie.1080p.x264.mkv"}`)
		case r.URL.Path == "/torrents/info/GONE":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"unknown_ressource","error_code":7}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	client := NewRealDebridClient("token", ClientOptions{BaseURL: srv.URL})
	ctx := context.Background()

	jobID, err := client.AddMagnet(ctx, strings.ToUpper(hash))
	require.NoError(t, err)
	assert.Equal(t, "JOB1", jobID)
	assert.Equal(t, "magnet=magnet:?xt%3Durn:btih:"+hash, addBody)

	require.NoError(t, client.SelectFiles(ctx, jobID, nil))
	assert.Equal(t, "files=all", selectBody)

	_, err = client.GetStreamURL(ctx, jobID)
	assert.ErrorIs(t, err, ErrFileNotReady)

	info, err := client.GetStreamURL(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.real-debrid.com/d/MAIN/Movie.1080p.x264.mkv", info.StreamURL)
	assert.Equal(t, "Movie.1080p.x264.mkv", info.FileName)
	assert.Equal(t, int64(8000), info.SizeBytes)
	assert.Equal(t, models.BackendRealDebrid, info.Backend)

	_, err = client.GetStreamURL(ctx, "GONE")
	assert.ErrorIs(t, err, ErrTorrentNotFound)
}

func TestRealDebridRejectsInvalidHashLocally(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	}))
	client := NewRealDebridClient("token", ClientOptions{BaseURL: srv.URL})
	_, err := client.AddMagnet(context.Background(), "xyz")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestRealDebridValidateToken(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"id":1,"username":"neo","email":"neo@example.com","type":"premium","premium":86400,"expiration":"2030-01-02T03:04:05.000Z"}`)
	}))

	good := NewRealDebridClient("good", ClientOptions{BaseURL: srv.URL})
	ok, err := good.ValidateToken(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	account, err := good.GetAccountInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "neo", account.Username)
	assert.True(t, account.IsPremium)
	require.NotNil(t, account.PremiumExpiry)
	assert.Equal(t, 2030, account.PremiumExpiry.Year())

	bad := NewRealDebridClient("bad", ClientOptions{BaseURL: srv.URL})
	ok, err = bad.ValidateToken(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
