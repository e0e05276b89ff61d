package session

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"sessionq/internal/usage"
)

// maxRedirects matches the limit net/http applies when it follows redirects itself.
const maxRedirects = 10

var ErrTooManyRedirects = errors.New("stopped after 10 redirects")

// stopRedirects hands every 3xx back to the attempt so each hop is observed.
func stopRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// do sends req and follows redirects hop by hop. Every intermediate
// response and every follow-up request is recorded under c; the caller
// observes the final response. req must already be observed.
func (a *attempt) do(req *http.Request, c usage.Category) (*http.Response, error) {
	for hops := 0; ; hops++ {
		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		loc := resp.Header.Get("Location")
		if !isRedirect(resp.StatusCode) || loc == "" {
			return resp, nil
		}

		n, readErr := io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		a.observe(responseEvent(c, req.URL.String(), resp.ContentLength, n, readErr))

		if hops+1 >= maxRedirects {
			return nil, ErrTooManyRedirects
		}
		next, err := redirectRequest(req, resp.StatusCode, loc)
		if err != nil {
			return nil, fmt.Errorf("redirect from %s: %w", req.URL, err)
		}
		a.observe(usage.TransferEvent{Kind: usage.KindRequest, Category: c, URL: next.URL.String()})
		req = next
	}
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// redirectRequest builds the follow-up request the way a browser would:
// 307 and 308 repeat the method and body, the others turn into a GET
// (HEAD stays HEAD).
func redirectRequest(prev *http.Request, status int, location string) (*http.Request, error) {
	target, err := prev.URL.Parse(location)
	if err != nil {
		return nil, err
	}

	method := prev.Method
	var body io.ReadCloser
	keepBody := status == http.StatusTemporaryRedirect || status == http.StatusPermanentRedirect
	switch {
	case keepBody && prev.GetBody != nil:
		if body, err = prev.GetBody(); err != nil {
			return nil, err
		}
	case keepBody && prev.Body != nil && prev.Body != http.NoBody:
		return nil, errors.New("request body cannot be replayed")
	case !keepBody && method != http.MethodHead:
		method = http.MethodGet
	}

	next, err := http.NewRequestWithContext(prev.Context(), method, target.String(), body)
	if err != nil {
		return nil, err
	}
	next.Header = prev.Header.Clone()
	if !keepBody {
		next.Header.Del("Content-Type")
		next.Header.Del("Content-Length")
	}
	if keepBody && prev.GetBody != nil {
		next.GetBody = prev.GetBody
		next.ContentLength = prev.ContentLength
	}
	// cookies come from the jar; credentials stay with the original host
	next.Header.Del("Cookie")
	if target.Host != prev.URL.Host {
		next.Header.Del("Authorization")
	}
	next.Header.Set("Referer", prev.URL.String())
	return next, nil
}
