package filter

import (
	"sort"
	"strings"

	"github.com/tayloree/pricecli/internal/api"
)

// Sort modes understood by Options.Sort.
const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortNameAsc   = "name-asc"
	SortNameDesc  = "name-desc"
)

// DefaultSort is relevance when there is a query to rank by and cheapest
// first otherwise.
func DefaultSort(query string) string {
	if strings.TrimSpace(query) != "" {
		return SortRelevance
	}
	return SortPriceAsc
}

// ValidSortMode reports whether raw names a known sort mode (or is empty).
func ValidSortMode(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed == "" || normalizeSortMode(trimmed) != ""
}

func normalizeSortMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "relevance", "score":
		return SortRelevance
	case "price", "price-asc", "cheapest":
		return SortPriceAsc
	case "price-desc", "priciest":
		return SortPriceDesc
	case "name", "name-asc":
		return SortNameAsc
	case "name-desc":
		return SortNameDesc
	default:
		return ""
	}
}

func sortProducts(products []api.Product, mode string) {
	switch mode {
	case SortPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].LowestPrice.LessThan(products[j].LowestPrice)
		})
	case SortPriceDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].LowestPrice.GreaterThan(products[j].LowestPrice)
		})
	case SortNameAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return strings.ToLower(products[i].Name) < strings.ToLower(products[j].Name)
		})
	case SortNameDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return strings.ToLower(products[i].Name) > strings.ToLower(products[j].Name)
		})
	}
}

// Rank orders products by descending Score against query, keeping input
// order among equal scores. An empty query returns a copy unchanged.
func Rank(products []api.Product, query string) []api.Product {
	out := make([]api.Product, len(products))
	copy(out, products)
	if strings.TrimSpace(query) == "" {
		return out
	}

	type scored struct {
		product api.Product
		score   int
	}
	ranked := make([]scored, len(out))
	for i, p := range out {
		ranked[i] = scored{product: p, score: Score(p.Name, query)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	for i := range ranked {
		out[i] = ranked[i].product
	}
	return out
}
