package crawler

import (
	"errors"
	"fmt"
)

// Kind classifies crawl failures so callers can decide whether a failure
// aborts the whole scan or is recorded against a single page.
type Kind string

const (
	KindSitemapFetch Kind = "sitemap_fetch"
	KindSitemapParse Kind = "sitemap_parse"
	KindPageFetch    Kind = "page_fetch"
	KindPageParse    Kind = "page_parse"
)

// Error is a crawl failure tied to a URL.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var what string
	switch e.Kind {
	case KindSitemapFetch:
		what = "failed to fetch sitemap"
	case KindSitemapParse:
		what = "failed to parse sitemap"
	case KindPageFetch:
		what = "failed to fetch page"
	case KindPageParse:
		what = "failed to parse page"
	default:
		what = "crawl error"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", what, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", what, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// StatusOf returns the HTTP status recorded on err, or 0.
func StatusOf(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	return 0
}
