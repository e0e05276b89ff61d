// Package dummy serves a small demo funnel to run sessionq against locally.
package dummy

import (
	"bytes"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

type ServerConfig struct {
	Port int
}

// Asset sizes in bytes, exposed so tests can assert exact accounting.
const (
	StylesheetSize = 3000
	ScriptSize     = 12000
	ImageSize      = 20000
)

// SuccessMarker appears only on the final page of the funnel.
const SuccessMarker = "Thank you for signing up"

const landingPage = `<!doctype html>
<html>
<head>
  <title>Demo Funnel</title>
  <link rel="stylesheet" href="/static/site.css">
  <script src="/static/app.js"></script>
</head>
<body>
  <img src="/static/hero.png" alt="hero">
  <a href="/offer">See the offer</a>
</body>
</html>`

const offerPage = `<!doctype html>
<html>
<head>
  <title>Offer</title>
  <link rel="stylesheet" href="/static/site.css">
</head>
<body>
  <img src="/static/hero.png" alt="hero">
  <a href="/thank-you">Sign up</a>
</body>
</html>`

const thankYouPage = `<!doctype html>
<html>
<head><title>Done</title></head>
<body><h1>` + SuccessMarker + `</h1></body>
</html>`

// NewHandler returns the funnel handler.
//
//	/            landing page (stylesheet, script, image)
//	/offer       offer page (stylesheet, image)
//	/thank-you   final page carrying SuccessMarker
//	/slow        landing page after 1-2s
//	/flaky       landing page, 30% of the time a 500
func NewHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeHTML(w, landingPage)
	})
	mux.HandleFunc("/offer", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, offerPage)
	})
	mux.HandleFunc("/thank-you", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, thankYouPage)
	})

	// Slow Endpoint (1s-2s) - Good for testing timeouts
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		jitter := time.Duration(rand.Intn(1000)+1000) * time.Millisecond
		select {
		case <-time.After(jitter):
		case <-r.Context().Done():
			return
		}
		writeHTML(w, landingPage)
	})

	// Flaky Endpoint (Random failures)
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float32() < 0.3 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 Internal Server Error"))
			return
		}
		writeHTML(w, landingPage)
	})

	mux.Handle("/static/site.css", asset("text/css", StylesheetSize))
	mux.Handle("/static/app.js", asset("application/javascript", ScriptSize))
	mux.Handle("/static/hero.png", asset("image/png", ImageSize))

	return mux
}

func writeHTML(w http.ResponseWriter, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(page))
}

func asset(contentType string, size int) http.Handler {
	body := bytes.Repeat([]byte("x"), size)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
}

// Start runs the funnel server in the background and returns it so the
// caller can shut it down.
func Start(cfg ServerConfig) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithField("addr", "http://localhost"+addr).Info("demo funnel running (/, /offer, /thank-you, /slow, /flaky)")

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("demo funnel server failed")
		}
	}()
	return server
}
