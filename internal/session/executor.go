// Package session implements the HTTP journey executor: one attempt walks
// the configured steps like a browser would, fetching the assets each page
// references, and reports the data it transferred.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"sessionq/internal/config"
	"sessionq/internal/runner"
	"sessionq/internal/usage"
)

// DefaultUserAgent is sent when the config names none.
const DefaultUserAgent = "sessionq/0.1"

// maxDocumentBytes caps how much of a page is buffered for parsing.
const maxDocumentBytes = 16 << 20

// Executor performs journeys over HTTP. It keeps no per-attempt state, so
// one Executor serves all concurrent attempts of a run.
type Executor struct {
	transport http.RoundTripper
	templates *TemplateEngine
	runID     string
	logger    *log.Entry
}

type ExecutorOption func(*Executor)

// WithTransport replaces the shared HTTP transport.
func WithTransport(rt http.RoundTripper) ExecutorOption {
	return func(e *Executor) { e.transport = rt }
}

// WithProxy sends all traffic through a single egress proxy.
func WithProxy(proxy *url.URL) ExecutorOption {
	return func(e *Executor) {
		if t, ok := e.transport.(*http.Transport); ok {
			t = t.Clone()
			t.Proxy = http.ProxyURL(proxy)
			e.transport = t
		}
	}
}

func NewExecutor(runID string, opts ...ExecutorOption) *Executor {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 200
	t.MaxIdleConnsPerHost = 100

	e := &Executor{
		transport: t,
		templates: NewTemplateEngine(),
		runID:     runID,
		logger:    log.WithField("component", "session"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ runner.Executor = (*Executor)(nil)

// attempt holds everything owned by a single session.
type attempt struct {
	index    int
	cfg      config.Config
	client   *http.Client
	recorder *usage.Recorder
	limiter  *rate.Limiter
	seen     map[string]bool
	logger   *log.Entry
}

// Execute walks the journey for one session. A transport failure on a step
// is returned as an error; a non-2xx step or a missing success marker is a
// plain unsuccessful Outcome. Usage gathered so far is reported either way.
func (e *Executor) Execute(ctx context.Context, index int, cfg config.Config) (runner.Outcome, error) {
	jar, _ := cookiejar.New(nil)
	a := &attempt{
		index: index,
		cfg:   cfg,
		client: &http.Client{
			Transport:     e.transport,
			Jar:           jar,
			Timeout:       cfg.Timeout(),
			CheckRedirect: stopRedirects,
		},
		recorder: usage.NewRecorder(),
		limiter:  newLimiter(cfg.AssetRate),
		seen:     make(map[string]bool),
		logger:   e.logger.WithField("attempt", index),
	}
	data := TemplateData{Index: index, RunID: e.runID, UUID: uuid.NewString()}

	finish := func(succeeded bool, err error) (runner.Outcome, error) {
		rec := a.recorder.Finalize()
		return runner.Outcome{Index: index, Succeeded: succeeded, Usage: &rec}, err
	}

	var last []byte
	for i, step := range cfg.Journey() {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}

		req, err := e.buildRequest(ctx, step, data)
		if err != nil {
			return finish(false, fmt.Errorf("step %s: %w", name, err))
		}

		doc, err := a.fetchDocument(req)
		if err != nil {
			return finish(false, fmt.Errorf("step %s: %w", name, err))
		}
		if doc.status < 200 || doc.status >= 300 {
			a.logger.WithFields(log.Fields{"step": name, "status": doc.status}).Info("step returned non-success status")
			return finish(false, nil)
		}

		if cfg.FetchAssets && doc.isHTML() {
			if err := a.fetchAssets(ctx, doc); err != nil {
				return finish(false, fmt.Errorf("step %s assets: %w", name, err))
			}
		}
		last = doc.body
	}

	if cfg.SuccessMarker != "" && !bytes.Contains(last, []byte(cfg.SuccessMarker)) {
		a.logger.Info("success marker not found on final page")
		return finish(false, nil)
	}
	return finish(true, nil)
}

func (e *Executor) buildRequest(ctx context.Context, step config.Step, data TemplateData) (*http.Request, error) {
	target, err := e.templates.Render(step.URL, data)
	if err != nil {
		return nil, fmt.Errorf("render url: %w", err)
	}
	var body io.Reader
	if step.Body != "" {
		b, err := e.templates.Render(step.Body, data)
		if err != nil {
			return nil, fmt.Errorf("render body: %w", err)
		}
		body = strings.NewReader(b)
	}

	method := step.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target, body)
	if err != nil {
		return nil, err
	}
	for k, v := range step.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

type page struct {
	url         *url.URL
	status      int
	contentType string
	body        []byte
}

func (p page) isHTML() bool {
	return p.contentType == "" || strings.Contains(p.contentType, "html")
}

// fetchDocument performs a step request, following redirects, and keeps
// the final body for parsing.
func (a *attempt) fetchDocument(req *http.Request) (page, error) {
	a.prepare(req)
	a.observe(usage.TransferEvent{Kind: usage.KindRequest, Category: usage.Document, URL: req.URL.String()})

	resp, err := a.do(req, usage.Document)
	if err != nil {
		return page{}, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	a.observe(responseEvent(usage.Document, resp.Request.URL.String(), resp.ContentLength, int64(len(body)), readErr))

	return page{
		url:         resp.Request.URL,
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

// fetchAsset downloads one referenced resource, discarding the body. Asset
// failures never fail the session.
func (a *attempt) fetchAsset(ctx context.Context, ref assetRef) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.url, nil)
	if err != nil {
		a.logger.WithError(err).WithField("url", ref.url).Debug("skipping asset")
		return
	}
	a.prepare(req)
	a.observe(usage.TransferEvent{Kind: usage.KindRequest, Category: ref.category, URL: ref.url})

	resp, err := a.do(req, ref.category)
	if err != nil {
		a.logger.WithError(err).WithField("url", ref.url).Debug("asset request failed")
		return
	}
	defer resp.Body.Close()

	n, readErr := io.Copy(io.Discard, resp.Body)
	a.observe(responseEvent(ref.category, resp.Request.URL.String(), resp.ContentLength, n, readErr))
}

func (a *attempt) prepare(req *http.Request) {
	ua := a.cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", ua)
	}
	for k, v := range a.cfg.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
}

// observe records an event; measurement problems are logged and otherwise ignored.
func (a *attempt) observe(ev usage.TransferEvent) {
	if err := a.recorder.Observe(ev); err != nil {
		var merr *usage.MeasurementError
		if errors.As(err, &merr) {
			a.logger.WithError(err).WithField("estimated", merr.Estimated).Debug("transfer size estimated")
			return
		}
		a.logger.WithError(err).Debug("transfer not accounted")
	}
}

// responseEvent uses the bytes actually read, falling back to the declared
// Content-Length when the body could not be read. With neither, the size is
// left to estimation.
func responseEvent(c usage.Category, rawURL string, declared, read int64, readErr error) usage.TransferEvent {
	ev := usage.TransferEvent{Kind: usage.KindResponse, Category: c, URL: rawURL}
	switch {
	case readErr == nil:
		ev.Length = read
	case declared >= 0:
		ev.Length = declared
	default:
		ev.Length = usage.UnknownLength
		ev.Err = readErr
	}
	return ev
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// waitLimiter bounds the wait for a token by the request timeout.
func waitLimiter(ctx context.Context, l *rate.Limiter, timeout time.Duration) error {
	if timeout <= 0 {
		return l.Wait(ctx)
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return l.Wait(wctx)
}
