package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/display"
)

// fakeBackend serves the scraping and cart endpoints from memory.
type fakeBackend struct {
	mu         sync.Mutex
	items      []api.CartItemJSON
	nextID     int64
	scrapeFail bool
	scrapes    int
	cartCalls  int
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scrape/urls", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.scrapes++
		fail := b.scrapeFail
		b.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"detail":"store unreachable"}`))
			return
		}

		var req api.ScrapeRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{
			"total_scraped": 2,
			"total_saved": 2,
			"products": [
				{"product_id": 7, "name": "SSD Kingston NV2 1TB", "category": "SSD", "lowest_price": "459.90", "currency": "BRL", "source_url": "https://store.test/produto/7/ssd-kingston"},
				{"product_id": 8, "name": "Fonte 650W", "category": "Fonte", "lowest_price": "399.00", "currency": "BRL", "source_url": "https://store.test/produto/8/fonte"}
			],
			"raw_items": [
				{"url": "https://store.test/produto/7/ssd-kingston", "title": "SSD Kingston NV2 1TB", "price": "459.90", "currency": "BRL"},
				{"url": "https://store.test/produto/8/fonte", "title": "Fonte 650W", "price": "399.00", "currency": "BRL"}
			]
		}`))
	})
	mux.HandleFunc("GET /cart", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.cartCalls++
		_ = json.NewEncoder(w).Encode(api.CartResponse{ID: 1, Items: b.items})
	})
	mux.HandleFunc("POST /cart/items", func(w http.ResponseWriter, r *http.Request) {
		var req api.AddToCartRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		for i := range b.items {
			if b.items[i].ProductID == req.ProductID {
				b.items[i].Quantity += req.Quantity
				_ = json.NewEncoder(w).Encode(api.AddToCartResponse{ID: b.items[i].ID, ProductID: req.ProductID, Quantity: b.items[i].Quantity})
				return
			}
		}
		b.nextID++
		name := "Remote product " + strconv.FormatInt(req.ProductID, 10)
		b.items = append(b.items, api.CartItemJSON{ID: b.nextID, ProductID: req.ProductID, Name: &name, Quantity: req.Quantity})
		_ = json.NewEncoder(w).Encode(api.AddToCartResponse{ID: b.nextID, ProductID: req.ProductID, Quantity: req.Quantity})
	})
	mux.HandleFunc("DELETE /cart/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i := range b.items {
			if strconv.FormatInt(b.items[i].ID, 10) == r.PathValue("id") {
				b.items = append(b.items[:i], b.items[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Cart item not found"}`))
	})
	return mux
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	backend := &fakeBackend{nextID: 20}
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)
	return backend, srv
}

func TestRunCLI_CompletionZsh(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{"completion", "zsh"}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "#compdef pricecli")
	assert.Empty(t, stderr.String())
}

func TestRunCLI_HelpSearch(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{"help", "search"}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "pricecli search [TERM] [flags]")
	assert.Empty(t, stderr.String())
}

func TestRunCLI_TolerantRewriteWithoutNetworkCall(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{"search", "-temp", "0.5", "--help"}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "pricecli search [TERM] [flags]")
	assert.Contains(t, stderr.String(), "interpreted `-temp` as `--temperature`")
}

func TestRunCLI_DoubleDashBoundary(t *testing.T) {
	_, srv := newFakeBackend(t)
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{"--api", srv.URL, "discover", "--", "json"}, &stdout, &stderr)

	assert.Equal(t, ExitNotFound, code, "the lone base URL yields nothing on the fake backend")
	assert.False(t, strings.Contains(stderr.String(), "interpreted `json` as `--json`"))
}

func TestRunCLI_NoArgsPrintsQuickStartJSON(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI(nil, &stdout, &stderr)

	assert.Equal(t, 0, code)
	var payload quickStartJSON
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &payload))
	assert.Equal(t, "pricecli", payload.Name)
}

func TestRunCLI_InvalidSortFailsBeforeNetwork(t *testing.T) {
	backend, srv := newFakeBackend(t)
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{"--api", srv.URL, "--sort", "cheapest-first", srv.URL + "/produto/7/x"}, &stdout, &stderr)

	assert.Equal(t, ExitInvalidArgs, code)
	assert.Contains(t, stderr.String(), `"INVALID_ARGS"`)
	assert.Equal(t, 0, backend.scrapes)
}

func TestRunCLI_ScrapeRanksAndMarksCart(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.items = []api.CartItemJSON{{ID: 3, ProductID: 8, Quantity: 2}}
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{
		"--api", srv.URL,
		"--query", "ssd",
		"https://store.test/produto/7/ssd-kingston",
		"https://store.test/produto/8/fonte",
	}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	var out display.ResultJSON
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))

	assert.Equal(t, "ssd", out.Query)
	require.NotEmpty(t, out.Products)
	assert.Equal(t, int64(7), out.Products[0].ID, "query match ranks first")
	assert.Equal(t, "459.90", out.Products[0].Price)
	require.Len(t, out.RawItems, 2)
	require.NotNil(t, out.RawItems[0].ProductID)
	assert.Equal(t, int64(7), *out.RawItems[0].ProductID)
	assert.Equal(t, 1, backend.scrapes)
	assert.Equal(t, 1, backend.cartCalls)
}

func TestRunCLI_ScrapePriceFilter(t *testing.T) {
	_, srv := newFakeBackend(t)
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{
		"--api", srv.URL,
		"--max-price", "400",
		"https://store.test/produto/7/ssd-kingston",
		"https://store.test/produto/8/fonte",
	}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	var out display.ResultJSON
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.Len(t, out.Products, 1)
	assert.Equal(t, int64(8), out.Products[0].ID)
}

func TestRunCLI_ScrapeUpstreamFailure(t *testing.T) {
	backend, srv := newFakeBackend(t)
	backend.scrapeFail = true
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{"--api", srv.URL, "https://store.test/produto/7/ssd"}, &stdout, &stderr)

	assert.Equal(t, ExitUpstream, code)
	assert.Contains(t, stderr.String(), "store unreachable")
	assert.Empty(t, stdout.String())
}

func TestRunCLI_CartAddThenRemove(t *testing.T) {
	backend, srv := newFakeBackend(t)
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{"--api", srv.URL, "cart", "add", "7", "--qty", "2"}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	var added display.CartJSON
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &added))
	require.Len(t, added.Items, 1)
	assert.Equal(t, "21", added.Items[0].ID)
	assert.Equal(t, 2, added.Items[0].Quantity)
	assert.Equal(t, "Remote product 7", added.Items[0].Name)
	assert.Equal(t, "confirmed", added.Items[0].State)

	stdout.Reset()
	stderr.Reset()
	code = runCLI([]string{"--api", srv.URL, "cart", "remove", "21"}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	var removed display.CartJSON
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &removed))
	assert.Empty(t, removed.Items)
	assert.Empty(t, backend.items)
}

func TestRunCLI_CartRemoveUnknownItem(t *testing.T) {
	_, srv := newFakeBackend(t)
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{"--api", srv.URL, "cart", "remove", "99"}, &stdout, &stderr)

	assert.Equal(t, ExitNotFound, code)
	assert.Contains(t, stderr.String(), "NOT_FOUND")
}

func TestRunCLI_CartAddRejectsBadID(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{"cart", "add", "abc"}, &stdout, &stderr)

	assert.Equal(t, ExitInvalidArgs, code)
	assert.Contains(t, stderr.String(), "invalid product id")
}

func TestRunCLI_RejectsNaNTemperature(t *testing.T) {
	backend, srv := newFakeBackend(t)
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{"--api", srv.URL, "--temperature", "NaN", "--query", "ssd", "https://store.test/produto/7/x"}, &stdout, &stderr)

	assert.Equal(t, ExitInvalidArgs, code)
	assert.Contains(t, stderr.String(), "--temperature must be between 0 and 1")
	assert.Equal(t, 0, backend.scrapes)
}

func TestRunCLI_RootHelpDescribesViewFilters(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{"--help"}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "narrowed by price, category and sort.")
}

func TestRunCLI_MixedCaseProductURLIsScrapedDirectly(t *testing.T) {
	backend, srv := newFakeBackend(t)
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	code := runCLI([]string{"--api", srv.URL, "https://store.test/Produto/7/ssd-kingston"}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, 1, backend.scrapes)
}
