package debrid

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resolvarr/models"
)

func TestPremiumizeCheckCacheParallelArrays(t *testing.T) {
	a, b, c := testHash(30), testHash(31), testHash(32)
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{a, b, c}, r.URL.Query()["items[]"])
		_, _ = io.WriteString(w, `{"status":"success","response":[true,false],"filename":["Movie.mkv",""],"filesize":["4096",0]}`)
	}))
	client := NewPremiumizeClient("key", ClientOptions{BaseURL: srv.URL})

	statuses, err := client.CheckCache(context.Background(), []string{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, models.Cached("", "Movie.mkv", 4096), statuses[a])
	assert.Equal(t, models.NotCached(), statuses[b])
	assert.Equal(t, models.UnknownCache(), statuses[c], "missing array entries are unknown")
}

func TestPremiumizeTransferStates(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transfer/list":
			_, _ = io.WriteString(w, `{"status":"success","transfers":[
				{"id":"RUN","status":"running","progress":0.4},
				{"id":"BAD","status":"error","message":"dead torrent"},
				{"id":"DONE","status":"finished","folder_id":"F1"}
			]}`)
		case "/folder/list":
			assert.Equal(t, "F1", r.URL.Query().Get("id"))
			_, _ = io.WriteString(w, `{"status":"success","content":[
				{"id":"x","name":"Subs","type":"folder"},
				{"id":"y","name":"small.mkv","type":"file","size":10,"link":"https://pm.example/small.mkv"},
				{"id":"z","name":"Movie.mkv","type":"file","size":900,"link":"https://pm.example/Movie.mkv"}
			]}`)
		case "/account/info":
			_, _ = io.WriteString(w, `{"status":"error","message":"Not logged in."}`)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))
	client := NewPremiumizeClient("key", ClientOptions{BaseURL: srv.URL})
	ctx := context.Background()

	_, err := client.GetStreamURL(ctx, "RUN")
	assert.ErrorIs(t, err, ErrFileNotReady)

	_, err = client.GetStreamURL(ctx, "BAD")
	assert.ErrorIs(t, err, ErrTorrentNotFound)

	_, err = client.GetStreamURL(ctx, "MISSING")
	assert.ErrorIs(t, err, ErrTorrentNotFound)

	info, err := client.GetStreamURL(ctx, "DONE")
	require.NoError(t, err)
	assert.Equal(t, "https://pm.example/Movie.mkv", info.StreamURL)
	assert.Equal(t, int64(900), info.SizeBytes)

	_, err = client.GetAccountInfo(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
