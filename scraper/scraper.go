package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-psdeals/config"
	"github.com/aluiziolira/go-scrape-psdeals/models"
	"github.com/aluiziolira/go-scrape-psdeals/parser"
)

// SearchQueryParam is the query parameter carrying the search text.
const SearchQueryParam = "search_query"

// Scraper fetches psdeals pages with a colly collector and extracts regions,
// search results and lowest prices from them. Every call issues exactly one
// request and keeps no state between calls.
type Scraper struct {
	cfg       *config.Config
	layout    parser.Layout
	collector *colly.Collector
	Metrics   *Metrics
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname(), "www."+parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &Scraper{
		cfg:       cfg,
		layout:    parser.DefaultLayout(),
		collector: collector,
		Metrics:   NewMetrics(),
	}, nil
}

// SetLayout replaces the selectors used for extraction.
func (s *Scraper) SetLayout(layout parser.Layout) {
	s.layout = layout
}

// SetTransport replaces the HTTP transport used for every request.
func (s *Scraper) SetTransport(transport http.RoundTripper) {
	s.collector.WithTransport(transport)
}

// FetchRegions reads the region menu of the landing page.
func (s *Scraper) FetchRegions(ctx context.Context) (*models.RegionDirectory, error) {
	doc, err := s.fetch(ctx, PhaseRegions, s.cfg.LandingURL())
	if err != nil {
		return nil, err
	}
	regions := parser.ExtractRegions(doc.Selection, s.layout)
	s.Metrics.AddItems(PhaseRegions, regions.Len())
	slog.Debug("regions fetched", slog.Int("regions", regions.Len()))
	return regions, nil
}

// Search queries a region's search endpoint. An empty result set means the
// store found no games; it is not an error.
func (s *Scraper) Search(ctx context.Context, searchURL, query string) (models.ResultSet, error) {
	target, err := url.Parse(searchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	params := target.Query()
	params.Set(SearchQueryParam, query)
	target.RawQuery = params.Encode()

	doc, err := s.fetch(ctx, PhaseSearch, target.String())
	if err != nil {
		return nil, err
	}
	rows, err := parser.ExtractResults(doc.Selection, s.layout)
	if err != nil {
		s.Metrics.IncError(errorTypeLabel(err))
		slog.Error("search extraction failed",
			slog.String("url", target.String()),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	s.Metrics.AddItems(PhaseSearch, len(rows))
	slog.Debug("search finished",
		slog.String("query", query),
		slog.Int("rows", len(rows)),
	)
	return rows, nil
}

// FetchLowestPrice reads the lowest recorded price from a detail page.
func (s *Scraper) FetchLowestPrice(ctx context.Context, detailURL string) (string, error) {
	doc, err := s.fetch(ctx, PhaseLowestPrice, detailURL)
	if err != nil {
		return "", err
	}
	price, err := parser.ExtractLowestPrice(doc.Selection, s.layout)
	if err != nil {
		s.Metrics.IncError(errorTypeLabel(err))
		slog.Error("lowest price extraction failed",
			slog.String("url", detailURL),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("lowest price %s: %w", detailURL, err)
	}
	s.Metrics.AddItems(PhaseLowestPrice, 1)
	return price, nil
}

// fetch issues one GET through a fresh clone of the collector, so callbacks
// never leak between calls, and parses the body.
func (s *Scraper) fetch(ctx context.Context, phase, rawURL string) (*goquery.Document, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", phase, classifyError(err, 0))
	}

	c := s.collector.Clone()

	var (
		body   []byte
		status int
	)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		slog.Debug("fetching page",
			slog.String("phase", phase),
			slog.String("url", r.URL.String()),
		)
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	s.Metrics.IncRequest(phase)
	start := time.Now()
	err := c.Visit(rawURL)
	s.Metrics.ObserveDuration(phase, time.Since(start))

	if err != nil {
		classified := classifyError(err, status)
		category := errorTypeLabel(classified)
		s.Metrics.IncError(category)
		slog.Error("request error",
			slog.String("url", rawURL),
			slog.String("category", category),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%s: %w", phase, classified)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: parse html: %w", phase, err)
	}
	return doc, nil
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrConnection{Err: err}
	}
	// The HTTP client wraps every transport failure in a *url.Error; a
	// "parse" op is a malformed URL and never reached the network.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op != "parse" {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrUnavailable{Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
