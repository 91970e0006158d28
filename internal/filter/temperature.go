package filter

import (
	"math/rand/v2"
	"strings"

	"github.com/tayloree/pricecli/internal/api"
)

const (
	// StrictBelow is the temperature under which only hits survive.
	StrictBelow = 0.4
	// PassthroughFrom is the temperature from which every candidate survives.
	PassthroughFrom = 0.7
)

// RandomSource yields uniform floats in [0,1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// KeepProbability is the chance a non-hit survives at the given temperature.
func KeepProbability(temperature float64) float64 {
	t := clamp01(temperature)
	switch {
	case t < StrictBelow:
		return 0
	case t < PassthroughFrom:
		return (0.2 + t*0.6) * 0.2
	default:
		return 1
	}
}

// Tier names the band a temperature falls in.
func Tier(temperature float64) string {
	t := clamp01(temperature)
	switch {
	case t < StrictBelow:
		return "strict"
	case t < PassthroughFrom:
		return "fuzzy"
	default:
		return "passthrough"
	}
}

// Temperature keeps the candidates a fuzziness level allows: below 0.4 only
// hits, from 0.7 everything, and in between hits plus non-hits drawn with
// KeepProbability. The result may be empty; falling back to the input is the
// caller's decision. A nil rng uses the package-global source.
func Temperature[T any](candidates []T, hit func(T) bool, temperature float64, rng RandomSource) []T {
	t := clamp01(temperature)
	if t >= PassthroughFrom {
		out := make([]T, len(candidates))
		copy(out, candidates)
		return out
	}
	if rng == nil {
		rng = globalSource{}
	}

	keep := KeepProbability(t)
	out := make([]T, 0, len(candidates))
	for _, c := range candidates {
		if hit(c) {
			out = append(out, c)
			continue
		}
		if keep > 0 && rng.Float64() < keep {
			out = append(out, c)
		}
	}
	return out
}

// URLHit reports whether a URL's product slug contains the normalized query.
func URLHit(query string) func(string) bool {
	needle := Normalize(query)
	return func(u string) bool {
		slug := URLSlug(u)
		return slug != "" && strings.Contains(slug, needle)
	}
}

// ProductHit reports whether a product's name scores against the query.
func ProductHit(query string) func(api.Product) bool {
	return func(p api.Product) bool {
		return Score(p.Name, query) > 0
	}
}

var productPathMarkers = []string{"/produto/", "/product/", "/item/", "/p/"}

// URLSlug returns the normalized part of a URL after its product path marker,
// or "" when the URL has none.
func URLSlug(u string) string {
	lower := strings.ToLower(u)
	for _, marker := range productPathMarkers {
		if idx := strings.Index(lower, marker); idx >= 0 {
			return Normalize(u[idx+len(marker):])
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
