// internal/models/sitemap.go
package models

// SitemapKind identifies the root element of a sitemap document.
type SitemapKind string

const (
	SitemapKindURLSet SitemapKind = "urlset"
	SitemapKindIndex  SitemapKind = "sitemapindex"
	SitemapKindEmpty  SitemapKind = "empty"
)

// SitemapDocument is one parsed sitemap file. Locs holds page URLs for a
// urlset and child sitemap URLs for an index, in document order.
type SitemapDocument struct {
	URL  string
	Kind SitemapKind
	Locs []string
}
