package dummy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunnelPages(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	for _, path := range []string{"/", "/offer", "/thank-you"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		if path == "/thank-you" {
			assert.Contains(t, string(body), SuccessMarker)
		} else {
			assert.NotContains(t, string(body), SuccessMarker)
		}
	}
}

func TestAssetsHaveFixedSizes(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	sizes := map[string]int64{
		"/static/site.css": StylesheetSize,
		"/static/app.js":   ScriptSize,
		"/static/hero.png": ImageSize,
	}
	for path, want := range sizes {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		n, _ := io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		assert.Equal(t, want, resp.ContentLength, path)
		assert.Equal(t, want, n, path)
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
