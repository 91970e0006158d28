// Package catalog turns crawl and scrape responses into a ranked product
// catalog: it discovers product URLs, narrows them by relevance, scrapes them
// and links the raw pages back to aggregated products.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/filter"
	"github.com/tayloree/pricecli/internal/match"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	// ErrNoProductURLs means neither the input nor discovery produced a
	// product page to scrape.
	ErrNoProductURLs = errors.New("no product URLs found; try direct product links")
	// ErrNoSearchTarget means a search had neither a term nor a search URL.
	ErrNoSearchTarget = errors.New("a search term or search URL is required")
)

// Backend is the subset of the scraping backend the catalog drives.
// *api.Client satisfies it.
type Backend interface {
	CrawlURLs(ctx context.Context, req api.CrawlRequest) (*api.CrawlResponse, error)
	ScrapeURLs(ctx context.Context, req api.ScrapeRequest) (*api.ScrapeResponse, error)
	CrawlSearch(ctx context.Context, req api.SearchCrawlRequest) (*api.SearchCrawlResponse, error)
}

// Config holds the knobs for discovery, scraping and search.
type Config struct {
	MaxURLs           int
	MaxConcurrency    int
	ParallelSources   int
	RequestsPerSecond float64
	IncludePatterns   []string

	ScrapeConcurrency int

	SearchURLTemplate string
	SearchMaxPages    int
	SearchMaxURLs     int
	SearchTemperature float64
}

// DefaultConfig mirrors the backend's own discovery defaults.
func DefaultConfig() Config {
	return Config{
		MaxURLs:           500,
		MaxConcurrency:    10,
		ParallelSources:   4,
		RequestsPerSecond: 2,
		ScrapeConcurrency: 20,
		SearchURLTemplate: "https://www.kabum.com.br/busca/{term}",
		SearchMaxPages:    3,
		SearchMaxURLs:     40,
		SearchTemperature: 0.3,
	}
}

// Result is one scrape run, ranked and linked.
type Result struct {
	Query        string           `json:"query,omitempty"`
	URLs         []string         `json:"urls"`
	Products     []api.Product    `json:"products"`
	RawItems     []api.RawItem    `json:"rawItems"`
	Links        map[string]int64 `json:"links"`
	TotalScraped int              `json:"totalScraped"`
	TotalSaved   int              `json:"totalSaved"`
	Status       string           `json:"status"`
}

// Service orchestrates the backend calls behind a catalog view.
type Service struct {
	backend Backend
	logger  *log.Logger
	cfg     Config
	limiter *rate.Limiter
}

// New creates a Service. A nil logger discards output.
func New(backend Backend, logger *log.Logger, cfg Config) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.ParallelSources < 1 {
		cfg.ParallelSources = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Service{
		backend: backend,
		logger:  logger,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.ParallelSources),
	}
}

var (
	productPathMarkers = []string{"/produto/", "/product/", "/item/"}
	productPathPattern = regexp.MustCompile(`(?i)/p/[\w-]*\d|/MLB-\d+`)
)

// LooksLikeProductURL reports whether u points at a single product page
// rather than a store root or listing. Matching ignores case.
func LooksLikeProductURL(u string) bool {
	lower := strings.ToLower(u)
	for _, marker := range productPathMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return productPathPattern.MatchString(u)
}

// SplitURLs separates product pages from store roots, keeping input order.
func SplitURLs(urls []string) (products, bases []string) {
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if LooksLikeProductURL(u) {
			products = append(products, u)
		} else {
			bases = append(bases, u)
		}
	}
	return products, bases
}

// Discover asks the backend to crawl every base URL and returns the union of
// the product URLs found, de-duplicated, in base URL order. A source that
// fails is logged and skipped.
func (s *Service) Discover(ctx context.Context, baseURLs []string) ([]string, error) {
	found := make([][]string, len(baseURLs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ParallelSources)

	for i, base := range baseURLs {
		g.Go(func() error {
			if err := s.limiter.Wait(gCtx); err != nil {
				return err
			}
			start := time.Now()
			resp, err := s.backend.CrawlURLs(gCtx, api.CrawlRequest{
				BaseURL:         base,
				MaxURLs:         s.cfg.MaxURLs,
				MaxConcurrency:  s.cfg.MaxConcurrency,
				IncludePatterns: s.cfg.IncludePatterns,
				UseSitemap:      true,
				FollowLinks:     false,
				MaxDepth:        1,
			})
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				s.logger.Debug("Discovery failed, skipping source", "base", base, "error", err)
				return nil
			}
			s.logger.Debug("Discovered product URLs",
				"base", base,
				"total", len(resp.URLs),
				"duration", time.Since(start))
			found[i] = resp.URLs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("discovering product URLs: %w", err)
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, list := range found {
		for _, u := range list {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	return urls, nil
}

// ScrapeOptions narrows a scrape run.
type ScrapeOptions struct {
	Query       string
	Category    string
	Concurrency int
	// Temperature gates scraped products against Query. Nil uses the
	// configured search temperature.
	Temperature *float64
	Random      filter.RandomSource
}

// Scrape resolves urls to product pages (discovering from store roots when
// none are given directly), scrapes them, and ranks the products against the
// query.
func (s *Service) Scrape(ctx context.Context, urls []string, opts ScrapeOptions) (*Result, error) {
	productURLs, baseURLs := SplitURLs(urls)
	query := strings.TrimSpace(opts.Query)

	final := productURLs
	if len(final) == 0 && len(baseURLs) > 0 {
		s.logger.Info("Discovering products", "stores", len(baseURLs))
		discovered, err := s.Discover(ctx, baseURLs)
		if err != nil {
			return nil, err
		}
		final = discovered
	}
	if len(final) == 0 {
		return nil, ErrNoProductURLs
	}

	if query != "" {
		relevant := make([]string, 0, len(final))
		for _, u := range final {
			if filter.Score(u, query) > 0 {
				relevant = append(relevant, u)
			}
		}
		if len(relevant) > 0 {
			s.logger.Debug("Narrowed URLs by relevance", "query", query, "kept", len(relevant), "total", len(final))
			final = relevant
		}
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = s.cfg.ScrapeConcurrency
	}
	req := api.ScrapeRequest{URLs: final, MaxConcurrency: concurrency}
	if c := strings.TrimSpace(opts.Category); c != "" {
		req.Category = &c
	}

	start := time.Now()
	resp, err := s.backend.ScrapeURLs(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Scrape completed",
		"urls", len(final),
		"scraped", resp.TotalScraped,
		"saved", resp.TotalSaved,
		"duration", time.Since(start))

	products := resp.Products
	if query != "" {
		temperature := s.cfg.SearchTemperature
		if opts.Temperature != nil {
			temperature = *opts.Temperature
		}
		gated := filter.Temperature(products, filter.ProductHit(query), temperature, opts.Random)
		if len(gated) > 0 || len(products) == 0 {
			products = gated
		} else {
			s.logger.Debug("No product matched the query, keeping all", "query", query, "total", len(products))
		}
		products = filter.Rank(products, query)
	}

	result := &Result{
		Query:        query,
		URLs:         final,
		Products:     products,
		RawItems:     resp.RawItems,
		Links:        match.Link(resp.RawItems, resp.Products),
		TotalScraped: resp.TotalScraped,
		TotalSaved:   resp.TotalSaved,
	}
	result.Status = fmt.Sprintf("Scraped %d URLs. Saved %d prices.", resp.TotalScraped, resp.TotalSaved)
	if query != "" {
		result.Status += fmt.Sprintf(" %d relevant to %q.", len(products), query)
	}
	return result, nil
}

// SearchOptions describes a search-driven scrape.
type SearchOptions struct {
	Term        string
	SearchURL   string
	MaxPages    int
	MaxURLs     int
	Temperature *float64
	Category    string
	Concurrency int
	Random      filter.RandomSource
}

// SearchURL renders the configured search template for term.
func (s *Service) SearchURL(term string) string {
	return strings.ReplaceAll(s.cfg.SearchURLTemplate, "{term}", filter.Normalize(term))
}

// Search crawls a store's search results for term, gates the URLs by the
// temperature filter and scrapes what survives.
func (s *Service) Search(ctx context.Context, opts SearchOptions) (*Result, error) {
	term := strings.TrimSpace(opts.Term)
	searchURL := strings.TrimSpace(opts.SearchURL)
	if searchURL == "" && term != "" {
		searchURL = s.SearchURL(term)
	}
	if searchURL == "" {
		return nil, ErrNoSearchTarget
	}

	req := api.SearchCrawlRequest{
		SearchURL: searchURL,
		MaxPages:  firstPositive(opts.MaxPages, s.cfg.SearchMaxPages),
		MaxURLs:   firstPositive(opts.MaxURLs, s.cfg.SearchMaxURLs),
	}
	if term != "" {
		req.Query = &term
	}

	resp, err := s.backend.CrawlSearch(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Search results crawled", "url", searchURL, "total", resp.TotalURLs)

	temperature := s.cfg.SearchTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	urls := resp.URLs
	if term != "" {
		gated := filter.Temperature(urls, filter.URLHit(term), temperature, opts.Random)
		if len(gated) > 0 || len(urls) == 0 {
			urls = gated
		} else {
			s.logger.Debug("No URL matched the term, keeping all", "term", term, "total", len(urls))
		}
	}

	result, err := s.Scrape(ctx, urls, ScrapeOptions{
		Category:    opts.Category,
		Concurrency: opts.Concurrency,
	})
	if err != nil {
		return nil, err
	}
	if term != "" {
		result.Status += fmt.Sprintf(" Search filter %s at temperature %.2f.", filter.Tier(temperature), temperature)
	}
	return result, nil
}

func firstPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
