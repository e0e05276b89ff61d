package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionq/internal/config"
	"sessionq/internal/dummy"
	"sessionq/internal/usage"
)

func funnelConfig(base string) config.Config {
	cfg := config.Default()
	cfg.TargetURL = base + "/"
	cfg.AssetRate = 0
	cfg.TimeoutSec = 5
	return cfg
}

func TestExecuteFullJourney(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler())
	defer srv.Close()

	cfg := funnelConfig(srv.URL)
	cfg.Steps = []config.Step{
		{Name: "landing", URL: srv.URL + "/"},
		{Name: "offer", URL: srv.URL + "/offer"},
		{Name: "done", URL: srv.URL + "/thank-you"},
	}
	cfg.SuccessMarker = dummy.SuccessMarker

	out, err := NewExecutor("run-1").Execute(context.Background(), 0, cfg)
	require.NoError(t, err)
	require.NotNil(t, out.Usage)
	assert.True(t, out.Succeeded)

	rec := out.Usage
	// three pages plus stylesheet, script and image fetched once each
	assert.Equal(t, uint32(6), rec.RequestCount)
	assert.Equal(t, uint32(6), rec.ResponseCount)
	assert.Equal(t, uint64(dummy.StylesheetSize), rec.Breakdown.Stylesheet)
	assert.Equal(t, uint64(dummy.ScriptSize), rec.Breakdown.Script)
	assert.Equal(t, uint64(dummy.ImageSize), rec.Breakdown.Image)
	assert.Greater(t, rec.Breakdown.Document, uint64(0))
	assert.Equal(t, rec.Breakdown.Sum(), rec.TotalBytes)
	assert.NoError(t, rec.Validate())
}

func TestExecuteMissingMarker(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler())
	defer srv.Close()

	cfg := funnelConfig(srv.URL)
	cfg.SuccessMarker = "not on the landing page"

	out, err := NewExecutor("run").Execute(context.Background(), 0, cfg)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	require.NotNil(t, out.Usage)
	assert.Equal(t, uint32(4), out.Usage.RequestCount)
}

func TestExecuteNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler())
	defer srv.Close()

	cfg := funnelConfig(srv.URL)
	cfg.Steps = []config.Step{
		{URL: srv.URL + "/missing"},
		{URL: srv.URL + "/thank-you"},
	}

	out, err := NewExecutor("run").Execute(context.Background(), 2, cfg)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Equal(t, 2, out.Index)
	require.NotNil(t, out.Usage)
	assert.Equal(t, uint32(1), out.Usage.RequestCount)
	assert.Equal(t, uint32(1), out.Usage.ResponseCount)
}

func TestExecuteConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler())
	base := srv.URL
	srv.Close()

	out, err := NewExecutor("run").Execute(context.Background(), 0, funnelConfig(base))
	require.Error(t, err)
	assert.False(t, out.Succeeded)
	require.NotNil(t, out.Usage)
	assert.Equal(t, uint32(1), out.Usage.RequestCount)
	assert.Equal(t, uint32(0), out.Usage.ResponseCount)
	assert.Equal(t, uint64(0), out.Usage.TotalBytes)
}

func TestExecuteWithoutAssets(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler())
	defer srv.Close()

	cfg := funnelConfig(srv.URL)
	cfg.FetchAssets = false

	out, err := NewExecutor("run").Execute(context.Background(), 0, cfg)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, uint32(1), out.Usage.RequestCount)
	assert.Equal(t, out.Usage.Breakdown.Document, out.Usage.TotalBytes)
}

func TestExecuteAssetCap(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler())
	defer srv.Close()

	cfg := funnelConfig(srv.URL)
	cfg.MaxAssetsPerPage = 1

	out, err := NewExecutor("run").Execute(context.Background(), 0, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), out.Usage.RequestCount)
	assert.Equal(t, uint64(dummy.StylesheetSize), out.Usage.Breakdown.Stylesheet)
	assert.Zero(t, out.Usage.Breakdown.Script)
	assert.Zero(t, out.Usage.Breakdown.Image)
}

func TestExecuteRendersTemplatesAndHeaders(t *testing.T) {
	var gotQuery, gotUA, gotHeader atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.RawQuery)
		gotUA.Store(r.UserAgent())
		gotHeader.Store(r.Header.Get("X-Run"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := funnelConfig(srv.URL)
	cfg.Headers = map[string]string{"X-Run": "yes"}
	cfg.Steps = []config.Step{{URL: srv.URL + "/?i={{index}}&run={{runID}}"}}

	out, err := NewExecutor("abc").Execute(context.Background(), 7, cfg)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, "i=7&run=abc", gotQuery.Load())
	assert.Equal(t, DefaultUserAgent, gotUA.Load())
	assert.Equal(t, "yes", gotHeader.Load())
}

func TestExecuteBadTemplate(t *testing.T) {
	cfg := funnelConfig("http://127.0.0.1:1")
	cfg.Steps = []config.Step{{URL: "http://127.0.0.1:1/{{.Missing}}"}}

	out, err := NewExecutor("run").Execute(context.Background(), 0, cfg)
	require.Error(t, err)
	assert.False(t, out.Succeeded)
	require.NotNil(t, out.Usage)
	assert.Zero(t, out.Usage.RequestCount)
}

func TestExecuteCancelled(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecutor("run").Execute(ctx, 0, funnelConfig(srv.URL))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExtractAssets(t *testing.T) {
	base, err := url.Parse("https://example.com/shop/page.html")
	require.NoError(t, err)

	body := []byte(`<html><head>
<link rel="stylesheet" href="css/a.css#v">
<link rel="icon" href="/favicon.ico">
<script src="//cdn.example.com/app.js"></script>
<script>inline()</script>
</head><body>
<img src="data:image/png;base64,AAAA">
<img src="/img/b.png">
<img src="">
</body></html>`)

	refs, err := extractAssets(base, body)
	require.NoError(t, err)
	assert.Equal(t, []assetRef{
		{url: "https://example.com/shop/css/a.css", category: usage.Stylesheet},
		{url: "https://cdn.example.com/app.js", category: usage.Script},
		{url: "https://example.com/img/b.png", category: usage.Image},
	}, refs)
}

func TestResponseEvent(t *testing.T) {
	ev := responseEvent(usage.Image, "u", 100, 50, nil)
	assert.Equal(t, int64(50), ev.Length)

	readErr := errors.New("reset")
	ev = responseEvent(usage.Image, "u", 100, 10, readErr)
	assert.Equal(t, int64(100), ev.Length)
	assert.NoError(t, ev.Err)

	ev = responseEvent(usage.Image, "u", -1, 10, readErr)
	assert.Equal(t, usage.UnknownLength, ev.Length)
	assert.Equal(t, readErr, ev.Err)
}

func redirectChain() http.Handler {
	hop := func(next string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", next)
			w.WriteHeader(http.StatusFound)
			w.Write(make([]byte, 4000))
		}
	}
	mux := http.NewServeMux()
	mux.Handle("/go", hop("/go2"))
	mux.Handle("/go2", hop("/land"))
	mux.HandleFunc("/land", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("landed"))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/echo", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write([]byte(r.Method + " " + string(body)))
	})
	return mux
}

func TestExecuteCountsRedirectHops(t *testing.T) {
	var hits atomic.Int32
	chain := redirectChain()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		chain.ServeHTTP(w, r)
	}))
	defer srv.Close()

	cfg := funnelConfig(srv.URL)
	cfg.TargetURL = srv.URL + "/go"
	cfg.SuccessMarker = "landed"

	out, err := NewExecutor("run").Execute(context.Background(), 1, cfg)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, int32(3), hits.Load())

	rec := out.Usage
	assert.Equal(t, uint32(3), rec.RequestCount)
	assert.Equal(t, uint32(3), rec.ResponseCount)
	assert.Equal(t, uint64(4000+4000+len("landed")), rec.Breakdown.Document)
	assert.Equal(t, rec.Breakdown.Sum(), rec.TotalBytes)
}

func TestExecuteRedirectKeepsBodyOn307(t *testing.T) {
	srv := httptest.NewServer(redirectChain())
	defer srv.Close()

	cfg := funnelConfig(srv.URL)
	cfg.Steps = []config.Step{{URL: srv.URL + "/submit", Method: "POST", Body: "id={{index}}"}}
	cfg.SuccessMarker = "POST id=4"

	out, err := NewExecutor("run").Execute(context.Background(), 4, cfg)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, uint32(2), out.Usage.RequestCount)
}

func TestExecuteRedirectLoop(t *testing.T) {
	srv := httptest.NewServer(redirectChain())
	defer srv.Close()

	cfg := funnelConfig(srv.URL)
	cfg.TargetURL = srv.URL + "/loop"

	out, err := NewExecutor("run").Execute(context.Background(), 1, cfg)
	require.ErrorIs(t, err, ErrTooManyRedirects)
	assert.False(t, out.Succeeded)
	assert.Equal(t, uint32(maxRedirects), out.Usage.RequestCount)
	assert.Equal(t, uint32(maxRedirects), out.Usage.ResponseCount)
}

func TestRedirectRequest(t *testing.T) {
	prev, err := http.NewRequest(http.MethodPost, "https://a.example/form", strings.NewReader("x=1"))
	require.NoError(t, err)
	prev.Header.Set("Authorization", "secret")
	prev.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	next, err := redirectRequest(prev, http.StatusSeeOther, "https://b.example/done")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, next.Method)
	assert.Empty(t, next.Header.Get("Authorization"))
	assert.Empty(t, next.Header.Get("Content-Type"))
	assert.Equal(t, "https://a.example/form", next.Header.Get("Referer"))

	next, err = redirectRequest(prev, http.StatusPermanentRedirect, "/again")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, next.Method)
	assert.Equal(t, "https://a.example/again", next.URL.String())
	assert.Equal(t, "secret", next.Header.Get("Authorization"))
	body, err := io.ReadAll(next.Body)
	require.NoError(t, err)
	assert.Equal(t, "x=1", string(body))
}

func TestExecuteThroughProxy(t *testing.T) {
	var seen atomic.Value
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.URL.String())
		w.Write([]byte("via proxy"))
	}))
	defer proxy.Close()

	proxyURL, err := url.Parse(proxy.URL)
	require.NoError(t, err)

	cfg := funnelConfig("http://funnel.invalid")
	cfg.SuccessMarker = "via proxy"

	out, err := NewExecutor("run", WithProxy(proxyURL)).Execute(context.Background(), 1, cfg)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, "http://funnel.invalid/", seen.Load())
}
