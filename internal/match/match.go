// Package match links scraped pages back to the catalog products the backend
// aggregated them into.
package match

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/filter"
)

var (
	minTolerance  = decimal.NewFromInt(1)
	toleranceRate = decimal.RequireFromString("0.05")
)

// Match finds the product a raw item most likely belongs to. An exact source
// URL wins outright. Otherwise products whose normalized name contains the
// normalized title (or the reverse) are candidates; with a price, the first
// candidate within max(1, 5%) of it is preferred, else the first candidate.
// False positives are acceptable; a miss returns false.
func Match(raw api.RawItem, products []api.Product) (api.Product, bool) {
	if raw.URL != "" {
		for _, p := range products {
			if p.SourceURL == raw.URL {
				return p, true
			}
		}
	}

	slug := filter.Normalize(filter.Deref(raw.Title))
	if slug == "" {
		return api.Product{}, false
	}

	var candidates []api.Product
	for _, p := range products {
		name := filter.Normalize(p.Name)
		if name == "" {
			continue
		}
		if strings.Contains(name, slug) || strings.Contains(slug, name) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return api.Product{}, false
	}
	if !raw.Price.Valid {
		return candidates[0], true
	}

	price := raw.Price.Decimal
	tolerance := decimal.Max(minTolerance, price.Abs().Mul(toleranceRate))
	for _, p := range candidates {
		if p.LowestPrice.Sub(price).Abs().LessThanOrEqual(tolerance) {
			return p, true
		}
	}
	return candidates[0], true
}

// Link matches a batch of raw items, keyed by raw URL. Misses are absent.
func Link(raws []api.RawItem, products []api.Product) map[string]int64 {
	links := make(map[string]int64, len(raws))
	for _, raw := range raws {
		if p, ok := Match(raw, products); ok {
			links[raw.URL] = p.ID
		}
	}
	return links
}

var navigationTitle = regexp.MustCompile(`^(home$|menu|back|voltar|mais|carrinho|conta|sair|entrar|login|registr)`)

// LikelyProduct reports whether a raw item looks like a real product page
// rather than a navigation or error page: it has a price and a title between
// 3 and 200 characters that is not a navigation label.
func LikelyProduct(raw api.RawItem) bool {
	if !raw.Price.Valid {
		return false
	}
	title := strings.TrimSpace(filter.Deref(raw.Title))
	n := utf8.RuneCountInString(title)
	if n < 3 || n > 200 {
		return false
	}
	return !navigationTitle.MatchString(strings.ToLower(title))
}
