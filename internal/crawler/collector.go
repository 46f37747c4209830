package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	DefaultUserAgent      = "SitemapLinkOpportunitiesBot/1.0"
	DefaultRequestTimeout = 15 * time.Second
	DefaultMaxRedirects   = 5
	DefaultMaxBodyBytes   = 5 * 1024 * 1024
	DefaultParallelism    = 30
)

// CrawlerConfig controls how pages and sitemaps are downloaded.
type CrawlerConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	MaxRedirects   int
	MaxBodyBytes   int
	// Parallelism caps in-flight requests per host across all scans.
	Parallelism int
	// Delay is waited between requests to the same host.
	Delay time.Duration
}

func (c CrawlerConfig) withDefaults() CrawlerConfig {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = DefaultMaxRedirects
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}
	return c
}

// Page is a downloaded document.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher downloads a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Collector is a Fetcher backed by a colly collector. It sends one GET per
// call, never retries and never caches.
type Collector struct {
	collector *colly.Collector
	config    CrawlerConfig
}

func NewCollector(config CrawlerConfig) *Collector {
	config = config.withDefaults()

	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
		colly.MaxBodySize(config.MaxBodyBytes),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(config.RequestTimeout)

	maxRedirects := config.MaxRedirects
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})

	// Set reasonable limits
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: config.Parallelism,
		Delay:       config.Delay,
	})

	return &Collector{
		collector: c,
		config:    config,
	}
}

// Config returns the effective configuration after defaults were applied.
func (c *Collector) Config() CrawlerConfig {
	return c.config
}

// Fetch downloads rawURL. Transport failures and non-2xx responses are
// returned as *Error with KindPageFetch; for the latter the page is
// returned as well so the caller can see the status.
func (c *Collector) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindPageFetch, URL: rawURL, Err: err}
	}

	// A clone shares the HTTP backend but has its own callbacks, so
	// concurrent fetches never see each other's responses.
	col := c.collector.Clone()

	var page *Page
	col.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       r.Body,
		}
		if r.Headers != nil {
			page.ContentType = r.Headers.Get("Content-Type")
		}
	})

	var status int
	col.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := col.Visit(rawURL); err != nil {
		return nil, &Error{Kind: KindPageFetch, URL: rawURL, StatusCode: status, Err: err}
	}
	if page == nil {
		return nil, &Error{Kind: KindPageFetch, URL: rawURL, Err: errors.New("no response received")}
	}
	if page.StatusCode < 200 || page.StatusCode > 299 {
		return page, &Error{
			Kind:       KindPageFetch,
			URL:        rawURL,
			StatusCode: page.StatusCode,
			Err:        errors.New(http.StatusText(page.StatusCode)),
		}
	}
	return page, nil
}
