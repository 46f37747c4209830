package models

import (
	"time"

	"github.com/google/uuid"
)

// ScanRequest is a validated scan input. Build it with scan.ParseParams.
type ScanRequest struct {
	SitemapURL   string   `json:"sitemap_url"`
	TargetURL    string   `json:"target_url"`
	Keywords     []string `json:"keywords"`
	MaxPages     int      `json:"max_pages"`
	Concurrency  int      `json:"concurrency"`
	SameHostOnly bool     `json:"same_host_only"`
}

// Match is a keyword hit on a page together with its surrounding text.
type Match struct {
	Keyword string `json:"keyword"`
	Snippet string `json:"snippet"`
}

// PageResult is the outcome of fetching and inspecting one candidate page.
type PageResult struct {
	SourceURL     string  `json:"source_url"`
	Fetched       bool    `json:"fetched"`
	StatusCode    int     `json:"status_code,omitempty"`
	HasTargetLink bool    `json:"has_target_link"`
	Matches       []Match `json:"matches,omitempty"`
	Error         string  `json:"error,omitempty"`
	ErrorKind     string  `json:"error_kind,omitempty"`
}

// IsOpportunity reports whether the page mentions a keyword and does not
// link to the target yet.
func (p *PageResult) IsOpportunity() bool {
	return p.Fetched && p.Error == "" && len(p.Matches) > 0 && !p.HasTargetLink
}

type OpportunityReport struct {
	ScanID        uuid.UUID    `json:"scan_id"`
	SitemapURL    string       `json:"sitemap_url"`
	TargetURL     string       `json:"target_url"`
	Keywords      []string     `json:"keywords"`
	MaxPages      int          `json:"max_pages"`
	Concurrency   int          `json:"concurrency"`
	SameHostOnly  bool         `json:"same_host_only"`
	Discovered    int          `json:"discovered"`
	Examined      int          `json:"examined"`
	FetchedOK     int          `json:"fetched_ok"`
	Opportunities []PageResult `json:"opportunities"`
	Errors        []PageResult `json:"errors"`
	StartedAt     time.Time    `json:"started_at"`
	DurationMS    int64        `json:"duration_ms"`
}
