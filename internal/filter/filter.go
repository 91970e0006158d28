package filter

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tayloree/pricecli/internal/api"
)

// Options holds the catalog view criteria applied after ranking.
type Options struct {
	Category string
	MinPrice decimal.NullDecimal
	MaxPrice decimal.NullDecimal
	Sort     string
	Limit    int
}

// Apply narrows and orders a ranked product list for display. It never
// mutates the input slice.
func Apply(products []api.Product, opts Options) []api.Product {
	var catMatcher categoryMatcher
	hasCategory := strings.TrimSpace(opts.Category) != ""
	if hasCategory {
		catMatcher = newCategoryMatcher(opts.Category)
	}

	result := make([]api.Product, 0, len(products))
	for _, p := range products {
		if hasCategory && !catMatcher.matches(Deref(p.Category)) {
			continue
		}
		if opts.MinPrice.Valid && p.LowestPrice.LessThan(opts.MinPrice.Decimal) {
			continue
		}
		if opts.MaxPrice.Valid && p.LowestPrice.GreaterThan(opts.MaxPrice.Decimal) {
			continue
		}
		result = append(result, p)
	}

	sortProducts(result, normalizeSortMode(opts.Sort))

	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result
}

// Categories returns a map of category name to product count.
func Categories(products []api.Product) map[string]int {
	cats := make(map[string]int)
	for _, p := range products {
		if c := strings.TrimSpace(Deref(p.Category)); c != "" {
			cats[c]++
		}
	}
	return cats
}
