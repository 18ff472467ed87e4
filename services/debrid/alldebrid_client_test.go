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

func TestAllDebridPicksLargestFileOfTree(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("agent"); got != "resolvarr" && r.Method == http.MethodGet {
			t.Errorf("missing agent param, got %q", got)
		}
		switch r.URL.Path {
		case "/v4.1/magnet/status":
			assert.Equal(t, "77", r.URL.Query().Get("id"))
			_, _ = io.WriteString(w, `{"status":"success","data":{"magnets":{
				"id":77,"filename":"Show.S01","status":"Ready","statusCode":4,
				"files":[
					{"n":"Show.S01","e":[
						{"n":"Show.S01E01.mkv","s":1500,"l":"https://alldebrid.com/f/E01"},
						{"n":"Show.S01E02.mkv","s":2500,"l":"https://alldebrid.com/f/E02"},
						{"n":"Extras","e":[{"n":"behind.the.scenes.zip","s":9000,"l":"https://alldebrid.com/f/ZIP"}]}
					]}
				]}}}`)
		case "/v4/link/unlock":
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "agent=resolvarr&link=https://alldebrid.com/f/E02", string(body))
			_, _ = io.WriteString(w, `{"status":"success","data":{"link":"https://cdn.alldebrid.com/E02.mkv","filename":"Show.S01E02.mkv","filesize":2500}}`)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))

	client := NewAllDebridClient("key", ClientOptions{BaseURL: srv.URL + "/v4"})
	info, err := client.GetStreamURL(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.alldebrid.com/E02.mkv", info.StreamURL)
	assert.Equal(t, "Show.S01E02.mkv", info.FileName)
	assert.Equal(t, int64(2500), info.SizeBytes)
	assert.Equal(t, models.BackendAllDebrid, info.Backend)
}

func TestAllDebridDelayedLinkIsNotReady(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v4.1/magnet/status":
			_, _ = io.WriteString(w, `{"status":"success","data":{"magnets":[{"id":5,"status":"Ready","statusCode":4,
				"links":[{"link":"https://alldebrid.com/f/ONE","filename":"one.mp4","size":10}]}]}}`)
		case "/v4/link/unlock":
			_, _ = io.WriteString(w, `{"status":"success","data":{"delayed":123}}`)
		}
	}))

	client := NewAllDebridClient("key", ClientOptions{BaseURL: srv.URL + "/v4"})
	_, err := client.GetStreamURL(context.Background(), "5")
	assert.ErrorIs(t, err, ErrFileNotReady)
}

func TestAllDebridMalformedStatusBody(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"success","data":`)
	}))

	client := NewAllDebridClient("key", ClientOptions{BaseURL: srv.URL + "/v4"})
	_, err := client.GetStreamURL(context.Background(), "5")
	require.Error(t, err)
	assert.Equal(t, KindHTTP, KindOf(err))
	assert.Contains(t, err.Error(), "decode magnet_status response")
}

func TestAllDebridStatusCodes(t *testing.T) {
	tests := []struct {
		body string
		want *Error
	}{
		{`{"status":"success","data":{"magnets":{"id":1,"status":"Downloading","statusCode":1}}}`, ErrFileNotReady},
		{`{"status":"success","data":{"magnets":{"id":1,"status":"Upload fail","statusCode":5}}}`, ErrTorrentNotFound},
		{`{"status":"success","data":{"magnets":[]}}`, ErrTorrentNotFound},
		{`{"status":"error","error":{"code":"AUTH_BAD_APIKEY","message":"bad key"}}`, ErrUnauthorized},
		{`{"status":"error","error":{"code":"MAGNET_INVALID_ID","message":"invalid id"}}`, ErrTorrentNotFound},
		{`{"status":"error","error":{"code":"MUST_BE_PREMIUM","message":"premium"}}`, ErrNotPremium},
	}
	for _, tt := range tests {
		srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, tt.body)
		}))
		client := NewAllDebridClient("key", ClientOptions{BaseURL: srv.URL + "/v4"})
		_, err := client.GetStreamURL(context.Background(), "1")
		assert.ErrorIs(t, err, tt.want, tt.body)
	}
}

func TestAllDebridCheckCacheAndUpload(t *testing.T) {
	cached, missing := testHash(1), testHash(2)
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v4/magnet/instant":
			assert.ElementsMatch(t, []string{cached, missing}, r.URL.Query()["magnets[]"])
			_, _ = io.WriteString(w, `{"status":"success","data":{"magnets":[
				{"hash":"`+cached+`","instant":true,"files":[{"n":"a.mkv","s":10},{"n":"b.mkv","s":20}]},
				{"hash":"`+missing+`","instant":false}
			]}}`)
		case "/v4/magnet/upload":
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "agent=resolvarr&magnets%5B%5D=magnet:?xt%3Durn:btih:"+cached, string(body))
			_, _ = io.WriteString(w, `{"status":"success","data":{"magnets":[{"id":991,"hash":"`+cached+`","ready":true}]}}`)
		}
	}))

	client := NewAllDebridClient("key", ClientOptions{BaseURL: srv.URL + "/v4"})
	statuses, err := client.CheckCache(context.Background(), []string{cached, missing})
	require.NoError(t, err)
	assert.Equal(t, models.Cached("2", "b.mkv", 20), statuses[cached])
	assert.Equal(t, models.NotCached(), statuses[missing])

	id, err := client.AddMagnet(context.Background(), cached)
	require.NoError(t, err)
	assert.Equal(t, "991", id)
	assert.NoError(t, client.SelectFiles(context.Background(), id, nil))
}
