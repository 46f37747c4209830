package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"
)

// fakeFetcher serves canned bodies keyed by URL and records every request.
type fakeFetcher struct {
	mu      sync.Mutex
	bodies  map[string]string
	status  map[string]int
	calls   []string
	onFetch func(url string)
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	return &fakeFetcher{bodies: bodies, status: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(rawURL)
	}

	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindPageFetch, URL: rawURL, Err: err}
	}
	if code, ok := f.status[rawURL]; ok {
		page := &Page{URL: rawURL, FinalURL: rawURL, StatusCode: code}
		return page, &Error{Kind: KindPageFetch, URL: rawURL, StatusCode: code, Err: errors.New(http.StatusText(code))}
	}
	body, ok := f.bodies[rawURL]
	if !ok {
		return &Page{URL: rawURL, StatusCode: http.StatusNotFound}, &Error{
			Kind: KindPageFetch, URL: rawURL, StatusCode: http.StatusNotFound, Err: errors.New("Not Found"),
		}
	}
	return &Page{URL: rawURL, FinalURL: rawURL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (f *fakeFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func urlset(locs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		fmt.Fprintf(&b, "<url><loc>%s</loc></url>", loc)
	}
	b.WriteString("</urlset>")
	return b.String()
}

func sitemapIndex(locs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		fmt.Fprintf(&b, "<sitemap><loc>%s</loc></sitemap>", loc)
	}
	b.WriteString("</sitemapindex>")
	return b.String()
}

const (
	rootURL = "https://example.com/sitemap.xml"
	aURL    = "https://example.com/a.xml"
	bURL    = "https://example.com/b.xml"
	cURL    = "https://example.com/c.xml"
)

func resolve(t *testing.T, f Fetcher, limits SitemapLimits, maxPages int) ([]string, error) {
	t.Helper()
	return NewSitemapResolver(f, limits, nil).Resolve(context.Background(), rootURL, maxPages)
}

func TestResolveURLSet(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		rootURL: urlset("https://example.com/p1", "https://example.com/p2", "https://example.com/p1"),
	})
	got, err := resolve(t, f, SitemapLimits{}, 100)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"https://example.com/p1", "https://example.com/p2"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveIndexMergesChildrenInOrder(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		rootURL: sitemapIndex(aURL, bURL),
		aURL:    urlset("https://example.com/p1", "https://example.com/p2"),
		bURL:    urlset("https://example.com/p2", "https://example.com/p3"),
	})
	got, err := resolve(t, f, SitemapLimits{}, 100)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"https://example.com/p1", "https://example.com/p2", "https://example.com/p3"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveStopsAtMaxPages(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		rootURL: sitemapIndex(aURL, bURL),
		aURL:    urlset("https://example.com/p1", "https://example.com/p2", "https://example.com/p3"),
		bURL:    urlset("https://example.com/p4"),
	})
	got, err := resolve(t, f, SitemapLimits{}, 2)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"https://example.com/p1", "https://example.com/p2"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if slices.Contains(f.requested(), bURL) {
		t.Errorf("second child should not be fetched once the page budget is spent, requests: %v", f.requested())
	}
}

func TestResolveZeroMaxPages(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{rootURL: urlset("https://example.com/p1")})
	got, err := resolve(t, f, SitemapLimits{}, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no URLs, got %v", got)
	}
	if len(f.requested()) != 0 {
		t.Errorf("nothing should be fetched, got %v", f.requested())
	}
}

func TestResolveCycleTerminates(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		rootURL: sitemapIndex(aURL),
		aURL:    sitemapIndex(rootURL, bURL),
		bURL:    urlset("https://example.com/p1"),
	})
	got, err := resolve(t, f, SitemapLimits{}, 100)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !slices.Equal(got, []string{"https://example.com/p1"}) {
		t.Errorf("got %v", got)
	}
	if n := len(f.requested()); n != 3 {
		t.Errorf("expected 3 sitemap fetches, got %d: %v", n, f.requested())
	}
}

func TestResolveMaxSitemaps(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		rootURL: sitemapIndex(aURL, bURL, cURL),
		aURL:    urlset("https://example.com/p1"),
		bURL:    urlset("https://example.com/p2"),
		cURL:    urlset("https://example.com/p3"),
	})
	got, err := resolve(t, f, SitemapLimits{MaxSitemaps: 2}, 100)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !slices.Equal(got, []string{"https://example.com/p1"}) {
		t.Errorf("got %v", got)
	}
	if want := []string{rootURL, aURL}; !slices.Equal(f.requested(), want) {
		t.Errorf("requests = %v, want %v", f.requested(), want)
	}
}

func TestResolveMaxDepth(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		rootURL: sitemapIndex(aURL, bURL),
		aURL:    sitemapIndex(cURL),
		bURL:    urlset("https://example.com/p2"),
		cURL:    urlset("https://example.com/p1"),
	})
	got, err := resolve(t, f, SitemapLimits{MaxDepth: 1}, 100)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !slices.Equal(got, []string{"https://example.com/p2"}) {
		t.Errorf("got %v", got)
	}
	if slices.Contains(f.requested(), cURL) {
		t.Errorf("grandchild beyond the depth limit was fetched: %v", f.requested())
	}
}

func TestResolveSkipsFailingChild(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		rootURL: sitemapIndex(aURL, bURL, cURL),
		bURL:    "<html><body>not a sitemap</body></html>",
		cURL:    urlset("https://example.com/p3"),
	})
	f.status[aURL] = http.StatusInternalServerError

	got, err := resolve(t, f, SitemapLimits{}, 100)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !slices.Equal(got, []string{"https://example.com/p3"}) {
		t.Errorf("got %v", got)
	}
}

func TestResolveRootErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       *string
		status     int
		wantKind   Kind
		wantStatus int
	}{
		{name: "not found", status: http.StatusNotFound, wantKind: KindSitemapFetch, wantStatus: http.StatusNotFound},
		{name: "server error", status: http.StatusBadGateway, wantKind: KindSitemapFetch, wantStatus: http.StatusBadGateway},
		{name: "truncated xml", body: ptr(`<urlset><url><loc>https://example.com/p1</loc></url>`), wantKind: KindSitemapParse},
		{name: "html page", body: ptr(`<html><body>hello</body></html>`), wantKind: KindSitemapParse},
		{name: "plain text", body: ptr(`this is not xml`), wantKind: KindSitemapParse},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFakeFetcher(map[string]string{})
			if tt.body != nil {
				f.bodies[rootURL] = *tt.body
			} else {
				f.status[rootURL] = tt.status
			}

			got, err := resolve(t, f, SitemapLimits{}, 10)
			if err == nil {
				t.Fatalf("expected an error, got URLs %v", got)
			}
			if kind := KindOf(err); kind != tt.wantKind {
				t.Errorf("kind = %q, want %q (err: %v)", kind, tt.wantKind, err)
			}
			if status := StatusOf(err); status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}

func TestResolveCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	f := newFakeFetcher(map[string]string{
		rootURL: sitemapIndex(aURL, bURL),
		aURL:    urlset("https://example.com/p1"),
		bURL:    urlset("https://example.com/p2"),
	})
	f.onFetch = func(url string) {
		if url == aURL {
			cancel()
		}
	}

	_, err := NewSitemapResolver(f, SitemapLimits{}, nil).Resolve(ctx, rootURL, 100)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if slices.Contains(f.requested(), bURL) {
		t.Errorf("no further sitemaps should be fetched after cancellation")
	}
}

func TestResolveUniqueAndBounded(t *testing.T) {
	t.Parallel()

	var locs []string
	for i := 0; i < 50; i++ {
		locs = append(locs, fmt.Sprintf("https://example.com/p%d", i%20))
	}
	f := newFakeFetcher(map[string]string{
		rootURL: sitemapIndex(aURL, bURL),
		aURL:    urlset(locs...),
		bURL:    urlset(locs...),
	})

	for _, limit := range []int{1, 5, 19, 20, 21, 100} {
		got, err := resolve(t, f, SitemapLimits{}, limit)
		if err != nil {
			t.Fatalf("Resolve(%d): %v", limit, err)
		}
		if len(got) > limit {
			t.Errorf("Resolve(%d) returned %d URLs", limit, len(got))
		}
		if want := min(limit, 20); len(got) != want {
			t.Errorf("Resolve(%d) returned %d URLs, want %d", limit, len(got), want)
		}
		seen := make(map[string]bool)
		for _, u := range got {
			if seen[u] {
				t.Errorf("Resolve(%d) returned %s twice", limit, u)
			}
			seen[u] = true
		}
	}
}

func TestParseSitemap(t *testing.T) {
	t.Parallel()

	t.Run("blank body", func(t *testing.T) {
		t.Parallel()

		doc, err := ParseSitemap(rootURL, []byte("  \n "))
		if err != nil {
			t.Fatalf("ParseSitemap: %v", err)
		}
		if len(doc.Locs) != 0 {
			t.Errorf("expected no locs, got %v", doc.Locs)
		}
	})

	t.Run("empty urlset", func(t *testing.T) {
		t.Parallel()

		doc, err := ParseSitemap(rootURL, []byte(urlset()))
		if err != nil {
			t.Fatalf("ParseSitemap: %v", err)
		}
		if len(doc.Locs) != 0 {
			t.Errorf("expected no locs, got %v", doc.Locs)
		}
	})

	t.Run("whitespace and relative locs", func(t *testing.T) {
		t.Parallel()

		body := `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
			<url><loc>
				https://example.com/p1
			</loc><lastmod>2024-01-01</lastmod></url>
			<url><loc>/p2</loc></url>
			<url><loc>   </loc></url>
		</urlset>`
		doc, err := ParseSitemap("https://example.com/sitemaps/pages.xml", []byte(body))
		if err != nil {
			t.Fatalf("ParseSitemap: %v", err)
		}
		want := []string{"https://example.com/p1", "https://example.com/p2"}
		if !slices.Equal(doc.Locs, want) {
			t.Errorf("locs = %v, want %v", doc.Locs, want)
		}
	})

	t.Run("extension elements ignored", func(t *testing.T) {
		t.Parallel()

		body := `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"
			xmlns:image="http://www.google.com/schemas/sitemap-image/1.1">
			<url>
				<loc>https://example.com/p1</loc>
				<image:image><image:loc>https://cdn.example.com/img.png</image:loc></image:image>
			</url>
		</urlset>`
		doc, err := ParseSitemap(rootURL, []byte(body))
		if err != nil {
			t.Fatalf("ParseSitemap: %v", err)
		}
		if !slices.Equal(doc.Locs, []string{"https://example.com/p1"}) {
			t.Errorf("locs = %v", doc.Locs)
		}
	})

	t.Run("index", func(t *testing.T) {
		t.Parallel()

		doc, err := ParseSitemap(rootURL, []byte(sitemapIndex(aURL, bURL)))
		if err != nil {
			t.Fatalf("ParseSitemap: %v", err)
		}
		if !slices.Equal(doc.Locs, []string{aURL, bURL}) {
			t.Errorf("locs = %v", doc.Locs)
		}
	})
}

func ptr(s string) *string { return &s }
