package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/romangod6/linkscout/internal/crawler"
	"github.com/romangod6/linkscout/internal/models"
	"github.com/romangod6/linkscout/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Scan outcomes reported to the Recorder.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeSitemapFetch = "sitemap_fetch_error"
	OutcomeSitemapParse = "sitemap_parse_error"
	OutcomeError        = "error"

	PageOutcomeOK         = "ok"
	PageOutcomeFetchError = "fetch_error"
	PageOutcomeParseError = "parse_error"
)

// Recorder receives scan metrics.
type Recorder interface {
	ScanFinished(outcome string, duration time.Duration)
	PageExamined(outcome string)
	OpportunitiesFound(n int)
}

type nopRecorder struct{}

func (nopRecorder) ScanFinished(string, time.Duration) {}
func (nopRecorder) PageExamined(string)                {}
func (nopRecorder) OpportunitiesFound(int)             {}

// Config wires a Scanner's collaborators.
type Config struct {
	Sitemap crawler.SitemapLimits
	Logger  *utils.Logger
	Metrics Recorder
}

// Scanner runs the sitemap → fetch → extract pipeline. It holds no state
// between scans and is safe for concurrent use.
type Scanner struct {
	fetcher crawler.Fetcher
	limits  crawler.SitemapLimits
	logger  *utils.Logger
	metrics Recorder
}

func NewScanner(fetcher crawler.Fetcher, cfg Config) *Scanner {
	if cfg.Logger == nil {
		cfg.Logger = utils.NewDiscardLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopRecorder{}
	}
	return &Scanner{
		fetcher: fetcher,
		limits:  cfg.Sitemap,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Scan resolves the request's sitemap, examines every remaining candidate
// page and reports the pages that mention a keyword without linking to the
// target. Validation and sitemap failures fail the scan; page failures are
// recorded in the report.
func (s *Scanner) Scan(ctx context.Context, req models.ScanRequest) (*models.OpportunityReport, error) {
	start := time.Now()

	req, err := Normalize(req)
	if err != nil {
		s.metrics.ScanFinished(OutcomeInvalid, time.Since(start))
		return nil, err
	}

	scanID := uuid.New()
	log := s.logger.ForScan(scanID.String())
	log.LogInfo("Starting scan of %s for %d keyword(s), target %s", req.SitemapURL, len(req.Keywords), req.TargetURL)

	resolver := crawler.NewSitemapResolver(s.fetcher, s.limits, log)
	discovered, err := resolver.Resolve(ctx, req.SitemapURL, req.MaxPages)
	if err != nil {
		log.LogError("Scan aborted: %v", err)
		s.metrics.ScanFinished(outcomeOf(err), time.Since(start))
		return nil, fmt.Errorf("resolve sitemap: %w", err)
	}

	candidates := FilterCandidates(discovered, req)
	log.LogInfo("Examining %d of %d discovered page(s) with concurrency %d", len(candidates), len(discovered), req.Concurrency)

	results := s.examineAll(ctx, candidates, req, log)

	report := &models.OpportunityReport{
		ScanID:        scanID,
		SitemapURL:    req.SitemapURL,
		TargetURL:     req.TargetURL,
		Keywords:      req.Keywords,
		MaxPages:      req.MaxPages,
		Concurrency:   req.Concurrency,
		SameHostOnly:  req.SameHostOnly,
		Discovered:    len(discovered),
		Examined:      len(results),
		Opportunities: make([]models.PageResult, 0),
		Errors:        make([]models.PageResult, 0),
		StartedAt:     start.UTC(),
	}
	for _, res := range results {
		if res.Fetched {
			report.FetchedOK++
		}
		switch {
		case res.Error != "":
			report.Errors = append(report.Errors, res)
		case res.IsOpportunity():
			report.Opportunities = append(report.Opportunities, res)
		}
	}
	report.DurationMS = time.Since(start).Milliseconds()

	s.metrics.OpportunitiesFound(len(report.Opportunities))
	s.metrics.ScanFinished(OutcomeSuccess, time.Since(start))
	log.LogInfo("Scan finished: examined=%d fetched_ok=%d opportunities=%d errors=%d",
		report.Examined, report.FetchedOK, len(report.Opportunities), len(report.Errors))

	return report, nil
}

// examineAll fans the candidates out over at most req.Concurrency workers.
// Each worker owns the result slot of its candidate, so the output keeps
// candidate order and needs no locking.
func (s *Scanner) examineAll(ctx context.Context, candidates []string, req models.ScanRequest, log *utils.ScanLogger) []models.PageResult {
	results := make([]models.PageResult, len(candidates))
	extractor := crawler.NewMatchExtractor(req.TargetURL, req.Keywords)

	var g errgroup.Group
	g.SetLimit(req.Concurrency)
	for i, pageURL := range candidates {
		i, pageURL := i, pageURL
		g.Go(func() error {
			results[i] = s.examine(ctx, pageURL, extractor, log)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Scanner) examine(ctx context.Context, pageURL string, extractor *crawler.MatchExtractor, log *utils.ScanLogger) models.PageResult {
	res := models.PageResult{SourceURL: pageURL}

	page, err := s.fetcher.Fetch(ctx, pageURL)
	if page != nil {
		res.StatusCode = page.StatusCode
	}
	if err != nil {
		res.Error = err.Error()
		res.ErrorKind = string(crawler.KindPageFetch)
		s.metrics.PageExamined(PageOutcomeFetchError)
		log.LogWarn("Page fetch failed: %v", err)
		return res
	}
	res.Fetched = true

	base := page.FinalURL
	if base == "" {
		base = pageURL
	}
	out, err := extractor.Extract(base, page.Body)
	if err != nil {
		res.Error = err.Error()
		res.ErrorKind = string(crawler.KindPageParse)
		s.metrics.PageExamined(PageOutcomeParseError)
		log.LogWarn("Page parse failed: %v", err)
		return res
	}

	res.HasTargetLink = out.HasTargetLink
	res.Matches = out.Matches
	s.metrics.PageExamined(PageOutcomeOK)
	log.LogDebug("Examined %s: matches=%d has_target_link=%t", pageURL, len(out.Matches), out.HasTargetLink)
	return res
}

// FilterCandidates drops URLs that cannot be crawled, the target itself and,
// when the request asks for it, URLs on other hosts than the sitemap's.
// Order is preserved.
func FilterCandidates(urls []string, req models.ScanRequest) []string {
	target := crawler.NormalizeURL(req.TargetURL)
	sitemapHost := crawler.HostKey(req.SitemapURL)

	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !crawler.IsHTTPURL(u) {
			continue
		}
		if crawler.NormalizeURL(u) == target {
			continue
		}
		if req.SameHostOnly && crawler.HostKey(u) != sitemapHost {
			continue
		}
		out = append(out, u)
	}
	return out
}

func outcomeOf(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return OutcomeInvalid
	case crawler.KindOf(err) == crawler.KindSitemapFetch:
		return OutcomeSitemapFetch
	case crawler.KindOf(err) == crawler.KindSitemapParse:
		return OutcomeSitemapParse
	default:
		return OutcomeError
	}
}
