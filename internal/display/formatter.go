package display

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/cart"
	"github.com/tayloree/pricecli/internal/catalog"
	"github.com/tayloree/pricecli/internal/filter"
	"github.com/tayloree/pricecli/internal/match"
)

// Styles for terminal output.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	pendingTag   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")) // magenta
	priceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))            // green
	linkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))            // yellow
	dimStyle     = lipgloss.NewStyle().Faint(true)
	cyanStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// ProductJSON is the JSON output shape for a catalog product.
type ProductJSON struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Price     string `json:"price"`
	Currency  string `json:"currency"`
	SourceURL string `json:"sourceUrl"`
	InCart    int    `json:"inCart"`
}

// RawItemJSON is the JSON output shape for a scraped page.
type RawItemJSON struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Price         string `json:"price"`
	Currency      string `json:"currency"`
	ProductID     *int64 `json:"productId"`
	LikelyProduct bool   `json:"likelyProduct"`
}

// ResultJSON is the JSON output shape for a scrape or search run.
type ResultJSON struct {
	Query        string        `json:"query,omitempty"`
	Status       string        `json:"status"`
	TotalScraped int           `json:"totalScraped"`
	TotalSaved   int           `json:"totalSaved"`
	Products     []ProductJSON `json:"products"`
	RawItems     []RawItemJSON `json:"rawItems"`
}

// CartItemJSON is the JSON output shape for a cart line.
type CartItemJSON struct {
	ID        string `json:"id"`
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	Subtotal  string `json:"subtotal"`
	Currency  string `json:"currency"`
	SourceURL string `json:"sourceUrl"`
	State     string `json:"state"`
}

// CartJSON is the JSON output shape for the whole cart.
type CartJSON struct {
	ID       int64          `json:"id"`
	Items    []CartItemJSON `json:"items"`
	Quantity int            `json:"quantity"`
	Total    string         `json:"total"`
}

// FormatPrice renders a price with two decimals, prefixed by its currency
// when known.
func FormatPrice(currency string, price decimal.Decimal) string {
	amount := price.StringFixed(2)
	if currency == "" {
		return amount
	}
	return currency + " " + amount
}

func formatNullPrice(currency string, price decimal.NullDecimal) string {
	if !price.Valid {
		return "-"
	}
	return FormatPrice(currency, price.Decimal)
}

// PrintResult renders the ranked products of a run followed by the status
// line. inCart maps product id to quantity already in the cart and may be nil.
func PrintResult(w io.Writer, result *catalog.Result, products []api.Product, inCart map[int64]int) {
	heading := "Catalog"
	if result.Query != "" {
		heading = fmt.Sprintf("Catalog for %q", result.Query)
	}
	fmt.Fprintf(w, "\n%s — %s\n\n",
		headerStyle.Render(heading),
		cyanStyle.Render(fmt.Sprintf("%d products", len(products))),
	)
	for _, p := range products {
		printProduct(w, p, inCart[p.ID])
		fmt.Fprintln(w)
	}
	PrintStatus(w, result.Status)
}

// PrintResultJSON renders a run as JSON. products is the filtered view of
// result.Products.
func PrintResultJSON(w io.Writer, result *catalog.Result, products []api.Product, inCart map[int64]int) error {
	out := ResultJSON{
		Query:        result.Query,
		Status:       result.Status,
		TotalScraped: result.TotalScraped,
		TotalSaved:   result.TotalSaved,
		Products:     make([]ProductJSON, 0, len(products)),
		RawItems:     make([]RawItemJSON, 0, len(result.RawItems)),
	}
	for _, p := range products {
		out.Products = append(out.Products, toProductJSON(p, inCart[p.ID]))
	}
	for _, raw := range result.RawItems {
		out.RawItems = append(out.RawItems, toRawItemJSON(raw, result.Links))
	}
	return json.NewEncoder(w).Encode(out)
}

// PrintRawItems renders scraped pages with the product each one links to.
// Pages that don't look like a product are dimmed.
func PrintRawItems(w io.Writer, raws []api.RawItem, links map[string]int64) {
	if len(raws) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\n\n", titleStyle.Render(fmt.Sprintf("Scraped pages (%d):", len(raws))))
	for _, raw := range raws {
		title := filter.CleanText(filter.Deref(raw.Title))
		if title == "" {
			title = "Untitled"
		}
		linked := "product: -"
		if id, ok := links[raw.URL]; ok {
			linked = "product: #" + api.FormatID(id)
		}
		line := fmt.Sprintf("  %s  %s  %s", title, formatNullPrice(filter.Deref(raw.Currency), raw.Price), linked)
		if !match.LikelyProduct(raw) {
			fmt.Fprintln(w, dimStyle.Render(line))
		} else {
			fmt.Fprintln(w, line)
		}
		fmt.Fprintf(w, "    %s\n", dimStyle.Render(raw.URL))
	}
	fmt.Fprintln(w)
}

// PrintURLs renders a discovered URL list.
func PrintURLs(w io.Writer, urls []string) {
	fmt.Fprintf(w, "\n%s\n\n", titleStyle.Render(fmt.Sprintf("Discovered %d product URLs:", len(urls))))
	for _, u := range urls {
		fmt.Fprintf(w, "  %s\n", u)
	}
	fmt.Fprintln(w)
}

// PrintURLsJSON renders a discovered URL list as JSON.
func PrintURLsJSON(w io.Writer, urls []string) error {
	if urls == nil {
		urls = []string{}
	}
	return json.NewEncoder(w).Encode(urls)
}

// PrintCart renders the cart replica.
func PrintCart(w io.Writer, state cart.State) {
	fmt.Fprintf(w, "\n%s — %s\n\n",
		headerStyle.Render("Cart"),
		cyanStyle.Render(fmt.Sprintf("%d items", state.Quantity())),
	)
	if len(state.Items) == 0 {
		fmt.Fprintf(w, "  %s\n\n", dimStyle.Render("Your cart is empty."))
		return
	}

	currency := ""
	for _, item := range state.Items {
		tag := ""
		if item.State == cart.Pending {
			tag = pendingTag.Render("PENDING") + " "
		}
		name := item.Name
		if name == "" {
			name = "Product #" + api.FormatID(item.ProductID)
		}
		fmt.Fprintf(w, "  %s%s %s\n", tag, titleStyle.Render(name), dimStyle.Render("(item "+item.ID+")"))
		fmt.Fprintf(w, "    %d × %s = %s\n",
			item.Quantity,
			formatNullPrice(item.Currency, item.Price),
			priceStyle.Render(FormatPrice(item.Currency, item.Subtotal())),
		)
		if item.SourceURL != "" {
			fmt.Fprintf(w, "    %s\n", linkStyle.Render(item.SourceURL))
		}
		if currency == "" {
			currency = item.Currency
		}
	}
	fmt.Fprintf(w, "\n  %s %s\n\n", titleStyle.Render("Total:"), priceStyle.Render(FormatPrice(currency, state.Total())))
}

// PrintCartJSON renders the cart replica as JSON.
func PrintCartJSON(w io.Writer, state cart.State) error {
	out := CartJSON{
		ID:       state.ID,
		Items:    make([]CartItemJSON, 0, len(state.Items)),
		Quantity: state.Quantity(),
		Total:    state.Total().StringFixed(2),
	}
	for _, item := range state.Items {
		price := ""
		if item.Price.Valid {
			price = item.Price.Decimal.StringFixed(2)
		}
		out.Items = append(out.Items, CartItemJSON{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     price,
			Subtotal:  item.Subtotal().StringFixed(2),
			Currency:  item.Currency,
			SourceURL: item.SourceURL,
			State:     item.State.String(),
		})
	}
	return json.NewEncoder(w).Encode(out)
}

// PrintCategories renders product categories and their counts.
func PrintCategories(w io.Writer, cats map[string]int) {
	type catCount struct {
		Name  string
		Count int
	}
	sorted := make([]catCount, 0, len(cats))
	for k, v := range cats {
		sorted = append(sorted, catCount{k, v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Name < sorted[j].Name
	})

	fmt.Fprintf(w, "\n%s\n\n", titleStyle.Render("Categories in this catalog:"))
	for _, c := range sorted {
		fmt.Fprintf(w, "  %s: %d products\n", cyanStyle.Render(c.Name), c.Count)
	}
	fmt.Fprintln(w)
}

// PrintCategoriesJSON renders categories as JSON.
func PrintCategoriesJSON(w io.Writer, cats map[string]int) error {
	return json.NewEncoder(w).Encode(cats)
}

// PrintStatus prints a dim one-line summary of a run.
func PrintStatus(w io.Writer, msg string) {
	if msg == "" {
		return
	}
	fmt.Fprintf(w, "%s\n\n", dimStyle.Render(msg))
}

// PrintError prints a styled error message.
func PrintError(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render(msg))
}

// PrintWarning prints a styled warning message.
func PrintWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, warningStyle.Render(msg))
}

func printProduct(w io.Writer, p api.Product, inCart int) {
	name := filter.CleanText(p.Name)
	if name == "" {
		name = "Product #" + api.FormatID(p.ID)
	}
	fmt.Fprintf(w, "  %s %s\n", cyanStyle.Render("#"+api.FormatID(p.ID)), titleStyle.Render(name))

	parts := []string{priceStyle.Render(FormatPrice(filter.Deref(p.Currency), p.LowestPrice))}
	if c := strings.TrimSpace(filter.Deref(p.Category)); c != "" {
		parts = append(parts, c)
	}
	if inCart > 0 {
		parts = append(parts, fmt.Sprintf("in cart: %d", inCart))
	} else {
		parts = append(parts, "in cart: -")
	}
	fmt.Fprintf(w, "    %s\n", strings.Join(parts, " | "))
	if p.SourceURL != "" {
		fmt.Fprintf(w, "    %s\n", dimStyle.Render(p.SourceURL))
	}
}

func toProductJSON(p api.Product, inCart int) ProductJSON {
	return ProductJSON{
		ID:        p.ID,
		Name:      filter.CleanText(p.Name),
		Category:  strings.TrimSpace(filter.Deref(p.Category)),
		Price:     p.LowestPrice.StringFixed(2),
		Currency:  filter.Deref(p.Currency),
		SourceURL: p.SourceURL,
		InCart:    inCart,
	}
}

func toRawItemJSON(raw api.RawItem, links map[string]int64) RawItemJSON {
	out := RawItemJSON{
		URL:           raw.URL,
		Title:         filter.CleanText(filter.Deref(raw.Title)),
		Currency:      filter.Deref(raw.Currency),
		LikelyProduct: match.LikelyProduct(raw),
	}
	if raw.Price.Valid {
		out.Price = raw.Price.Decimal.StringFixed(2)
	}
	if id, ok := links[raw.URL]; ok {
		out.ProductID = &id
	}
	return out
}
