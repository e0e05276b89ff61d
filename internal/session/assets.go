package session

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sessionq/internal/usage"
)

type assetRef struct {
	url      string
	category usage.Category
}

// assetSelectors maps the page elements a browser would load to the
// attribute holding the resource and the category it is billed under.
var assetSelectors = []struct {
	selector string
	attr     string
	category usage.Category
}{
	{`link[rel~="stylesheet"][href]`, "href", usage.Stylesheet},
	{"script[src]", "src", usage.Script},
	{"img[src]", "src", usage.Image},
}

// extractAssets lists the subresources referenced by an HTML document,
// resolved against base, in document order per category. Only http(s)
// references are returned.
func extractAssets(base *url.URL, body []byte) ([]assetRef, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var refs []assetRef
	for _, sel := range assetSelectors {
		doc.Find(sel.selector).Each(func(_ int, s *goquery.Selection) {
			raw, ok := s.Attr(sel.attr)
			raw = strings.TrimSpace(raw)
			if !ok || raw == "" {
				return
			}
			ref, err := url.Parse(raw)
			if err != nil {
				return
			}
			abs := base.ResolveReference(ref)
			if abs.Scheme != "http" && abs.Scheme != "https" {
				return
			}
			abs.Fragment = ""
			refs = append(refs, assetRef{url: abs.String(), category: sel.category})
		})
	}
	return refs, nil
}

// fetchAssets loads the page's subresources once per session, at most
// MaxAssetsPerPage of them, paced by the session's limiter. Only
// cancellation of ctx is reported as an error.
func (a *attempt) fetchAssets(ctx context.Context, p page) error {
	refs, err := extractAssets(p.url, p.body)
	if err != nil {
		a.logger.WithError(err).Debug("could not parse page for assets")
		return nil
	}

	fetched := 0
	for _, ref := range refs {
		if a.cfg.MaxAssetsPerPage > 0 && fetched >= a.cfg.MaxAssetsPerPage {
			break
		}
		if a.seen[ref.url] {
			continue
		}
		a.seen[ref.url] = true

		if err := waitLimiter(ctx, a.limiter, a.cfg.Timeout()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.WithError(err).WithField("url", ref.url).Debug("asset skipped by rate limit")
			continue
		}
		a.fetchAsset(ctx, ref)
		fetched++
	}
	return ctx.Err()
}
