package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 120 * time.Second
	userAgent      = "pricecli/1.0"
)

// ErrTransport wraps failures to reach the backend at all: dial errors,
// resets and client timeouts.
var ErrTransport = errors.New("executing request")

// ErrDecode wraps 2xx responses whose body is not the expected JSON.
var ErrDecode = errors.New("decoding response")

// Error is a non-2xx response from the backend.
type Error struct {
	Op     string
	Status int
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Detail)
}

// Client is an HTTP client for the scraping backend and its cart store.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the default local backend.
func NewClient() *Client {
	return NewClientWithBaseURL(defaultBaseURL, defaultTimeout)
}

// NewClientWithBaseURL creates a client against a custom backend. A zero
// timeout means the default.
func NewClientWithBaseURL(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: op, Status: resp.StatusCode, Detail: errorDetail(resp.Body, op)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := dec.Decode(new(struct{})); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing JSON content", ErrDecode)
	}
	return nil
}

// errorDetail pulls the human-readable "detail" out of an error body. The
// backend sends either a string or a list of validation entries.
func errorDetail(r io.Reader, op string) string {
	fallback := op + " failed"

	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return fallback
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Detail) == 0 {
		return fallback
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}

	var entries []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, e := range entries {
			if m := strings.TrimSpace(e.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return fallback
}

// CrawlURLs asks the backend to discover product URLs under a store root.
func (c *Client) CrawlURLs(ctx context.Context, req CrawlRequest) (*CrawlResponse, error) {
	var resp CrawlResponse
	if err := c.do(ctx, "crawling urls", http.MethodPost, "/crawl/urls", req, &resp); err != nil {
		return nil, fmt.Errorf("crawling %s: %w", req.BaseURL, err)
	}
	return &resp, nil
}

// ScrapeURLs scrapes product pages and returns aggregated products plus the
// raw per-page items.
func (c *Client) ScrapeURLs(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error) {
	var resp ScrapeResponse
	if err := c.do(ctx, "scraping", http.MethodPost, "/scrape/urls", req, &resp); err != nil {
		return nil, fmt.Errorf("scraping urls: %w", err)
	}
	return &resp, nil
}

// CrawlSearch walks a store's search result pages and returns product URLs.
func (c *Client) CrawlSearch(ctx context.Context, req SearchCrawlRequest) (*SearchCrawlResponse, error) {
	var resp SearchCrawlResponse
	if err := c.do(ctx, "searching products", http.MethodPost, "/crawl/search", req, &resp); err != nil {
		return nil, fmt.Errorf("searching %s: %w", req.SearchURL, err)
	}
	return &resp, nil
}

// FetchCart returns the authoritative cart.
func (c *Client) FetchCart(ctx context.Context) (*CartResponse, error) {
	var resp CartResponse
	if err := c.do(ctx, "loading cart", http.MethodGet, "/cart", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching cart: %w", err)
	}
	return &resp, nil
}

// AddCartItem creates a cart line or increments the existing one for the
// product.
func (c *Client) AddCartItem(ctx context.Context, productID int64, quantity int) (*AddToCartResponse, error) {
	var resp AddToCartResponse
	body := AddToCartRequest{ProductID: productID, Quantity: quantity}
	if err := c.do(ctx, "adding to cart", http.MethodPost, "/cart/items", body, &resp); err != nil {
		return nil, fmt.Errorf("adding product %d to cart: %w", productID, err)
	}
	return &resp, nil
}

// RemoveCartItem deletes a confirmed cart line.
func (c *Client) RemoveCartItem(ctx context.Context, itemID string) error {
	path := "/cart/items/" + url.PathEscape(itemID)
	if err := c.do(ctx, "removing from cart", http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("removing cart item %s: %w", itemID, err)
	}
	return nil
}

// FormatID renders a backend identifier the way the cart replica keys it.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
