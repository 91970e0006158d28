package api

import "github.com/shopspring/decimal"

// RawItem is one scraped page as returned by the backend, before any
// aggregation into products.
type RawItem struct {
	URL      string              `json:"url"`
	Title    *string             `json:"title"`
	Price    decimal.NullDecimal `json:"price"`
	Currency *string             `json:"currency"`
}

// Product is a persisted catalog entry with its lowest observed price.
type Product struct {
	ID          int64           `json:"product_id"`
	Name        string          `json:"name"`
	Category    *string         `json:"category"`
	LowestPrice decimal.Decimal `json:"lowest_price"`
	Currency    *string         `json:"currency"`
	SourceURL   string          `json:"source_url"`
}

// CrawlRequest is the body of POST /crawl/urls.
type CrawlRequest struct {
	BaseURL         string   `json:"base_url"`
	MaxURLs         int      `json:"max_urls"`
	MaxConcurrency  int      `json:"max_concurrency"`
	IncludePatterns []string `json:"include_patterns,omitempty"`
	UseSitemap      bool     `json:"use_sitemap"`
	FollowLinks     bool     `json:"follow_links"`
	MaxDepth        int      `json:"max_depth"`
}

// CrawlResponse is the response of POST /crawl/urls.
type CrawlResponse struct {
	TotalURLs int      `json:"total_urls"`
	URLs      []string `json:"urls"`
}

// ScrapeRequest is the body of POST /scrape/urls.
type ScrapeRequest struct {
	URLs           []string `json:"urls"`
	Category       *string  `json:"category"`
	MaxConcurrency int      `json:"max_concurrency"`
}

// ScrapeResponse is the response of POST /scrape/urls.
type ScrapeResponse struct {
	TotalScraped int       `json:"total_scraped"`
	TotalSaved   int       `json:"total_saved"`
	Products     []Product `json:"products"`
	RawItems     []RawItem `json:"raw_items"`
}

// SearchCrawlRequest is the body of POST /crawl/search.
type SearchCrawlRequest struct {
	SearchURL string  `json:"search_url"`
	Query     *string `json:"query"`
	MaxPages  int     `json:"max_pages"`
	MaxURLs   int     `json:"max_urls"`
}

// SearchCrawlResponse is the response of POST /crawl/search.
type SearchCrawlResponse struct {
	TotalURLs int      `json:"total_urls"`
	URLs      []string `json:"urls"`
}

// CartResponse is the authoritative cart returned by GET /cart.
type CartResponse struct {
	ID    int64          `json:"id"`
	Items []CartItemJSON `json:"items"`
}

// CartItemJSON is one remote cart line.
type CartItemJSON struct {
	ID          int64               `json:"id"`
	ProductID   int64               `json:"product_id"`
	Name        *string             `json:"name"`
	Quantity    int                 `json:"quantity"`
	LowestPrice decimal.NullDecimal `json:"lowest_price"`
	Currency    *string             `json:"currency"`
	SourceURL   *string             `json:"source_url"`
}

// AddToCartRequest is the body of POST /cart/items.
type AddToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// AddToCartResponse is the confirmed line after a create-or-increment.
type AddToCartResponse struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}
