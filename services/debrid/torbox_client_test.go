package debrid

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resolvarr/models"
)

func TestTorBoxResolveFlow(t *testing.T) {
	hash := testHash(3)
	finished := false
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/torrents/createtorrent":
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "magnet:?xt=urn:btih:"+hash, r.FormValue("magnet"))
			_, _ = io.WriteString(w, `{"success":true,"data":{"torrent_id":314,"hash":"`+hash+`"}}`)
		case "/torrents/mylist":
			assert.Equal(t, "314", r.URL.Query().Get("id"))
			if !finished {
				_, _ = io.WriteString(w, `{"success":true,"data":{"id":314,"download_state":"downloading","progress":0.5}}`)
				return
			}
			_, _ = io.WriteString(w, `{"success":true,"data":{"id":314,"download_state":"uploading","download_finished":true,"download_present":true,
				"files":[{"id":0,"name":"Movie/sample.mkv","short_name":"sample.mkv","size":10},{"id":1,"name":"Movie/Movie.mkv","short_name":"Movie.mkv","size":999}]}}`)
		case "/torrents/requestdl":
			q := r.URL.Query()
			assert.Equal(t, "key", q.Get("token"))
			assert.Equal(t, "314", q.Get("torrent_id"))
			assert.Equal(t, "1", q.Get("file_id"))
			_, _ = io.WriteString(w, `{"success":true,"data":"https://store.torbox.app/dl/Movie.mkv"}`)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))

	client := NewTorBoxClient("key", ClientOptions{BaseURL: srv.URL})
	ctx := context.Background()

	id, err := client.AddMagnet(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "314", id)

	_, err = client.GetStreamURL(ctx, id)
	assert.ErrorIs(t, err, ErrFileNotReady)

	finished = true
	info, err := client.GetStreamURL(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://store.torbox.app/dl/Movie.mkv", info.StreamURL)
	assert.Equal(t, "Movie.mkv", info.FileName)
	assert.Equal(t, int64(999), info.SizeBytes)
}

func TestTorBoxEnvelopeErrors(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/user/me") {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"success":false,"error":"BAD_TOKEN","detail":"bad token"}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"success":false,"error":"ITEM_NOT_FOUND","detail":"no such torrent"}`)
	}))
	client := NewTorBoxClient("key", ClientOptions{BaseURL: srv.URL})

	ok, err := client.ValidateToken(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = client.GetStreamURL(context.Background(), "9")
	assert.ErrorIs(t, err, ErrTorrentNotFound)

	_, err = client.Unrestrict(context.Background(), "no-separator")
	assert.Equal(t, KindHTTP, KindOf(err))
}

func TestTorBoxCheckCache(t *testing.T) {
	cached, missing := testHash(20), testHash(21)
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, cached+","+missing, r.URL.Query().Get("hash"))
		assert.Equal(t, "object", r.URL.Query().Get("format"))
		_, _ = io.WriteString(w, `{"success":true,"data":{"`+strings.ToUpper(cached)+`":{"name":"Pack","size":3000,"hash":"`+cached+`",
			"files":[{"name":"Pack/a.mkv","size":1000},{"name":"Pack/b.mkv","size":2000}]}}}`)
	}))
	client := NewTorBoxClient("key", ClientOptions{BaseURL: srv.URL})

	statuses, err := client.CheckCache(context.Background(), []string{cached, missing})
	require.NoError(t, err)
	assert.Equal(t, models.Cached("1", "Pack/b.mkv", 2000), statuses[cached])
	assert.Equal(t, models.NotCached(), statuses[missing])
}
