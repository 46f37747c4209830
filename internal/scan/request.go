package scan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/romangod6/linkscout/internal/crawler"
	"github.com/romangod6/linkscout/internal/models"
)

const (
	DefaultMaxPages    = 200
	MinMaxPages        = 1
	MaxMaxPages        = 2000
	DefaultConcurrency = 10
	MinConcurrency     = 1
	MaxConcurrency     = 30
)

// Params carries scan options exactly as they arrive from a query string.
type Params struct {
	SitemapURL   string `form:"sitemap_url"`
	TargetURL    string `form:"target_url"`
	Keywords     string `form:"keywords"`
	MaxPages     string `form:"max_pages"`
	Concurrency  string `form:"concurrency"`
	SameHostOnly string `form:"same_host_only"`
}

// Defaults are used for options the caller left empty. Zero fields fall
// back to the package defaults.
type Defaults struct {
	MaxPages    int
	Concurrency int
}

// ValidationError reports a scan option that cannot be turned into a
// usable request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ParseParams converts raw options into a ScanRequest. Numeric options are
// clamped to their bounds; unparsable values are rejected.
func ParseParams(p Params, d Defaults) (models.ScanRequest, error) {
	if d.MaxPages <= 0 {
		d.MaxPages = DefaultMaxPages
	}
	if d.Concurrency <= 0 {
		d.Concurrency = DefaultConcurrency
	}

	maxPages, err := parseInt("max_pages", p.MaxPages, d.MaxPages)
	if err != nil {
		return models.ScanRequest{}, err
	}
	concurrency, err := parseInt("concurrency", p.Concurrency, d.Concurrency)
	if err != nil {
		return models.ScanRequest{}, err
	}
	sameHostOnly := true
	if v := strings.TrimSpace(p.SameHostOnly); v != "" {
		sameHostOnly, err = strconv.ParseBool(v)
		if err != nil {
			return models.ScanRequest{}, &ValidationError{Field: "same_host_only", Message: fmt.Sprintf("%q is not a boolean", v)}
		}
	}

	return Normalize(models.ScanRequest{
		SitemapURL:   p.SitemapURL,
		TargetURL:    p.TargetURL,
		Keywords:     SplitKeywords(p.Keywords),
		MaxPages:     maxPages,
		Concurrency:  concurrency,
		SameHostOnly: sameHostOnly,
	})
}

// Normalize validates req and returns a cleaned copy: URLs trimmed,
// keywords trimmed and de-duplicated case-insensitively, numeric limits
// clamped.
func Normalize(req models.ScanRequest) (models.ScanRequest, error) {
	out := models.ScanRequest{
		SitemapURL:   strings.TrimSpace(req.SitemapURL),
		TargetURL:    strings.TrimSpace(req.TargetURL),
		MaxPages:     clamp(req.MaxPages, MinMaxPages, MaxMaxPages),
		Concurrency:  clamp(req.Concurrency, MinConcurrency, MaxConcurrency),
		SameHostOnly: req.SameHostOnly,
	}

	if out.SitemapURL == "" {
		return models.ScanRequest{}, &ValidationError{Field: "sitemap_url", Message: "is required"}
	}
	if !crawler.IsHTTPURL(out.SitemapURL) {
		return models.ScanRequest{}, &ValidationError{Field: "sitemap_url", Message: "must be an absolute http:// or https:// URL"}
	}
	if out.TargetURL == "" {
		return models.ScanRequest{}, &ValidationError{Field: "target_url", Message: "is required"}
	}
	if !crawler.IsHTTPURL(out.TargetURL) {
		return models.ScanRequest{}, &ValidationError{Field: "target_url", Message: "must be an absolute http:// or https:// URL"}
	}

	out.Keywords = dedupeKeywords(req.Keywords)
	if len(out.Keywords) == 0 {
		return models.ScanRequest{}, &ValidationError{Field: "keywords", Message: "provide at least one keyword"}
	}
	return out, nil
}

// SplitKeywords splits a comma separated keyword list.
func SplitKeywords(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

func dedupeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func parseInt(field, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{Field: field, Message: fmt.Sprintf("%q is not a whole number", raw)}
	}
	return n, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
