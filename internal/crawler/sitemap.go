package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/romangod6/linkscout/internal/models"
	"github.com/romangod6/linkscout/internal/utils"
)

const (
	DefaultMaxSitemaps     = 25
	DefaultMaxSitemapDepth = 5
)

// SitemapLimits bounds sitemap index traversal independently of the page
// budget.
type SitemapLimits struct {
	// MaxSitemaps caps the number of sitemap documents fetched per resolve.
	MaxSitemaps int
	// MaxDepth caps index nesting; the root sitemap is depth 0.
	MaxDepth int
}

func (l SitemapLimits) withDefaults() SitemapLimits {
	if l.MaxSitemaps <= 0 {
		l.MaxSitemaps = DefaultMaxSitemaps
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxSitemapDepth
	}
	return l
}

// SitemapResolver turns a sitemap or sitemap index into a list of page URLs.
type SitemapResolver struct {
	fetcher Fetcher
	limits  SitemapLimits
	logger  *utils.ScanLogger
}

func NewSitemapResolver(fetcher Fetcher, limits SitemapLimits, logger *utils.ScanLogger) *SitemapResolver {
	return &SitemapResolver{
		fetcher: fetcher,
		limits:  limits.withDefaults(),
		logger:  logger,
	}
}

type resolveState struct {
	maxPages int
	urls     []string
	seen     map[string]struct{}
	visited  map[string]struct{}
	fetched  int
}

func (s *resolveState) add(loc string) {
	if len(s.urls) >= s.maxPages {
		return
	}
	if _, ok := s.seen[loc]; ok {
		return
	}
	s.seen[loc] = struct{}{}
	s.urls = append(s.urls, loc)
}

func (s *resolveState) full() bool {
	return len(s.urls) >= s.maxPages
}

// Resolve returns the unique page URLs reachable from sitemapURL, in
// first-seen order and at most maxPages long. Index entries are followed
// depth-first in document order and traversal stops once maxPages URLs are
// known. Failure to fetch or parse the root sitemap is returned as *Error;
// failing child sitemaps are logged and skipped.
func (r *SitemapResolver) Resolve(ctx context.Context, sitemapURL string, maxPages int) ([]string, error) {
	state := &resolveState{
		maxPages: maxPages,
		urls:     make([]string, 0),
		seen:     make(map[string]struct{}),
		visited:  make(map[string]struct{}),
	}
	if maxPages <= 0 {
		return state.urls, nil
	}

	if err := r.walk(ctx, strings.TrimSpace(sitemapURL), 0, state); err != nil {
		return nil, err
	}

	r.logger.LogInfo("Resolved %d page URLs from %d sitemap(s)", len(state.urls), state.fetched)
	return state.urls, nil
}

func (r *SitemapResolver) walk(ctx context.Context, sitemapURL string, depth int, state *resolveState) error {
	state.visited[sitemapURL] = struct{}{}
	state.fetched++

	doc, err := r.load(ctx, sitemapURL)
	if err != nil {
		return err
	}

	switch doc.Kind {
	case models.SitemapKindURLSet:
		for _, loc := range doc.Locs {
			state.add(loc)
			if state.full() {
				break
			}
		}
	case models.SitemapKindIndex:
		if depth >= r.limits.MaxDepth {
			r.logger.LogWarn("Not descending into %s: depth limit %d reached", sitemapURL, r.limits.MaxDepth)
			return nil
		}
		for _, child := range doc.Locs {
			if err := ctx.Err(); err != nil {
				return &Error{Kind: KindSitemapFetch, URL: child, Err: err}
			}
			if state.full() {
				return nil
			}
			if _, ok := state.visited[child]; ok {
				r.logger.LogDebug("Skipping already visited sitemap %s", child)
				continue
			}
			if state.fetched >= r.limits.MaxSitemaps {
				r.logger.LogWarn("Sitemap limit of %d reached, ignoring remaining entries of %s", r.limits.MaxSitemaps, sitemapURL)
				return nil
			}
			if err := r.walk(ctx, child, depth+1, state); err != nil {
				if ctx.Err() != nil {
					return err
				}
				r.logger.LogError("Skipping child sitemap: %v", err)
			}
		}
	}
	return nil
}

func (r *SitemapResolver) load(ctx context.Context, sitemapURL string) (*models.SitemapDocument, error) {
	page, err := r.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		cause := err
		var ce *Error
		if errors.As(err, &ce) {
			cause = ce.Err
		}
		return nil, &Error{Kind: KindSitemapFetch, URL: sitemapURL, StatusCode: StatusOf(err), Err: cause}
	}
	r.logger.LogDebug("Fetched sitemap %s (%d bytes)", sitemapURL, len(page.Body))
	return ParseSitemap(sitemapURL, page.Body)
}

// ParseSitemap decodes a sitemap document. Relative <loc> values are
// resolved against sitemapURL. A blank body is an empty document.
func ParseSitemap(sitemapURL string, body []byte) (*models.SitemapDocument, error) {
	doc := &models.SitemapDocument{URL: sitemapURL, Kind: models.SitemapKindEmpty}
	if len(bytes.TrimSpace(body)) == 0 {
		return doc, nil
	}

	root, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindSitemapParse, URL: sitemapURL, Err: err}
	}

	el := rootElement(root)
	if el == nil {
		return nil, &Error{Kind: KindSitemapParse, URL: sitemapURL, Err: errors.New("document has no root element")}
	}

	var entry string
	switch strings.ToLower(el.Data) {
	case "urlset":
		doc.Kind = models.SitemapKindURLSet
		entry = "url"
	case "sitemapindex":
		doc.Kind = models.SitemapKindIndex
		entry = "sitemap"
	default:
		return nil, &Error{
			Kind: KindSitemapParse,
			URL:  sitemapURL,
			Err:  fmt.Errorf("unexpected root element <%s>", el.Data),
		}
	}

	base, _ := url.Parse(sitemapURL)
	for _, n := range xmlquery.Find(el, entry+"/loc") {
		loc := strings.TrimSpace(n.InnerText())
		if loc == "" {
			continue
		}
		doc.Locs = append(doc.Locs, resolveLoc(base, loc))
	}
	return doc, nil
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

func resolveLoc(base *url.URL, loc string) string {
	if base == nil {
		return loc
	}
	ref, err := url.Parse(loc)
	if err != nil || ref.IsAbs() {
		return loc
	}
	return base.ResolveReference(ref).String()
}
