package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/ytnote/internal/domain"
	providerx "github.com/John-Robertt/ytnote/internal/provider"
)

const testID = domain.VideoID("dQw4w9WgXcQ")

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

func TestParse_WatchPage(t *testing.T) {
	meta, err := Provider{}.Parse(testID, readFixture(t, "watch.html"), testID.WatchURL())
	require.NoError(t, err)

	assert.Equal(t, testID, meta.VideoID)
	assert.Equal(t, "Rick Astley - Never Gonna Give You Up (Official Music Video)", meta.Title)
	assert.Equal(t, "Rick Astley", meta.Channel)
	assert.Equal(t, "http://www.youtube.com/@RickAstleyYT", meta.ChannelURL)
	assert.Equal(t, "2009-10-24", meta.Published)
	assert.Equal(t, "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg", meta.ThumbnailURL)
	assert.Equal(t, []string{"rick astley", "Never Gonna Give You Up", "nggyu"}, meta.Tags)
	assert.Contains(t, meta.Description, "Rick Astley")
	assert.Equal(t, testID.WatchURL(), meta.Website)
}

func TestParse_Deterministic(t *testing.T) {
	b := readFixture(t, "watch.html")
	m1, err1 := Provider{}.Parse(testID, b, "u")
	m2, err2 := Provider{}.Parse(testID, b, "u")
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, m1, m2)
}

func TestParse_IdentifierMismatch(t *testing.T) {
	_, err := Provider{}.Parse(domain.VideoID("aaaaaaaaaaa"), readFixture(t, "watch.html"), "u")
	assert.Error(t, err)
}

func TestParse_Unavailable(t *testing.T) {
	_, err := Provider{}.Parse(testID, readFixture(t, "unavailable.html"), "u")
	assert.Error(t, err)

	_, err = Provider{}.Parse(testID, nil, "u")
	assert.Error(t, err)
}

func TestParse_KeywordsFallback(t *testing.T) {
	html := []byte(`<html><head><title>Clip - YouTube</title>
<meta name="keywords" content="a, b ,a,, c"></head></html>`)
	meta, err := Provider{}.Parse(testID, html, "u")
	require.NoError(t, err)
	assert.Equal(t, "Clip", meta.Title)
	assert.Equal(t, []string{"a", "b", "c"}, meta.Tags)
	assert.Empty(t, meta.Published)
}

func TestFetch_OK(t *testing.T) {
	body := readFixture(t, "watch.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/watch" || r.URL.Query().Get("v") != string(testID) {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	p := Provider{BaseURL: srv.URL + "/"}
	got, pageURL, err := p.Fetch(context.Background(), testID, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, srv.URL+"/watch?v=dQw4w9WgXcQ", pageURL)
}

func TestFetch_ConsentIsBlocked(t *testing.T) {
	body := readFixture(t, "consent.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	_, _, err := Provider{BaseURL: srv.URL}.Fetch(context.Background(), testID, srv.Client())
	var be *providerx.BlockedError
	require.True(t, errors.As(err, &be), "期望 BlockedError，实际 %v", err)
	assert.Equal(t, "consent", be.Reason)
}

func TestFetch_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, _, err := Provider{BaseURL: srv.URL}.Fetch(context.Background(), testID, srv.Client())
	var hs *providerx.HTTPStatusError
	require.True(t, errors.As(err, &hs), "期望 HTTPStatusError，实际 %v", err)
	assert.Equal(t, http.StatusTooManyRequests, hs.StatusCode)
}

func TestFetch_NilClient(t *testing.T) {
	_, _, err := Provider{}.Fetch(context.Background(), testID, nil)
	assert.Error(t, err)
}
