package filter_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/filter"
)

func isEven(n int) bool { return n%2 == 0 }

func numbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestTemperature_StrictKeepsOnlyHits(t *testing.T) {
	got := filter.Temperature(numbers(10), isEven, 0.39, rand.New(rand.NewPCG(1, 1)))
	assert.Equal(t, []int{0, 2, 4, 6, 8}, got)
}

func TestTemperature_StrictIgnoresRandomSource(t *testing.T) {
	a := filter.Temperature(numbers(50), isEven, 0.1, rand.New(rand.NewPCG(1, 2)))
	b := filter.Temperature(numbers(50), isEven, 0.1, rand.New(rand.NewPCG(99, 3)))
	assert.Equal(t, a, b)
}

func TestTemperature_PassthroughKeepsEverything(t *testing.T) {
	got := filter.Temperature(numbers(10), func(int) bool { return false }, 0.9, nil)
	assert.Equal(t, numbers(10), got)
}

func TestTemperature_ProbabilisticSurvivalRate(t *testing.T) {
	rng := rand.New(rand.NewPCG(2024, 10))
	const runs = 1000
	const nonHits = 10

	survived := 0
	for range runs {
		got := filter.Temperature(numbers(2*nonHits), isEven, 0.5, rng)
		for _, n := range got {
			if !isEven(n) {
				survived++
			}
		}
		// hits always survive
		evens := 0
		for _, n := range got {
			if isEven(n) {
				evens++
			}
		}
		require.Equal(t, nonHits, evens)
	}

	rate := float64(survived) / float64(runs*nonHits)
	assert.InDelta(t, 0.1, rate, 0.02)
	assert.InDelta(t, 0.1, filter.KeepProbability(0.5), 1e-9)
}

func TestTemperature_EmptyResultIsReported(t *testing.T) {
	got := filter.Temperature(numbers(5), func(int) bool { return false }, 0.2, nil)
	assert.Empty(t, got)
}

func TestKeepProbability_Tiers(t *testing.T) {
	assert.Zero(t, filter.KeepProbability(0.39))
	assert.InDelta(t, (0.2+0.4*0.6)*0.2, filter.KeepProbability(0.4), 1e-9)
	assert.InDelta(t, (0.2+0.69*0.6)*0.2, filter.KeepProbability(0.69), 1e-9)
	assert.Equal(t, 1.0, filter.KeepProbability(0.7))
	assert.Zero(t, filter.KeepProbability(-3))
	assert.Equal(t, 1.0, filter.KeepProbability(7))
}

// fixedSource replays a scripted sequence of draws.
type fixedSource struct {
	draws []float64
	i     int
}

func (f *fixedSource) Float64() float64 {
	v := f.draws[f.i%len(f.draws)]
	f.i++
	return v
}

func TestTemperature_DrawsOnlyForNonHits(t *testing.T) {
	src := &fixedSource{draws: []float64{0.05, 0.5}}
	// keep probability at 0.5 is 0.1: first non-hit draw keeps, second drops
	got := filter.Temperature([]int{1, 2, 3, 4, 5}, isEven, 0.5, src)

	assert.Equal(t, []int{1, 2, 4, 5}, got)
	assert.Equal(t, 3, src.i)
}

func TestURLSlugAndHit(t *testing.T) {
	assert.Equal(t, "123-ssd-kingston-nv2-1tb", filter.URLSlug("https://www.kabum.com.br/produto/123/ssd-kingston-nv2-1TB"))
	assert.Equal(t, "", filter.URLSlug("https://www.kabum.com.br/hardware"))

	hit := filter.URLHit("SSD Kingston")
	assert.True(t, hit("https://www.kabum.com.br/produto/123/ssd-kingston-nv2-1TB"))
	assert.False(t, hit("https://www.kabum.com.br/produto/124/memoria-ddr5"))
	assert.False(t, hit("https://www.kabum.com.br/ssd-kingston"))
}

func TestProductHit(t *testing.T) {
	hit := filter.ProductHit("rtx")
	assert.True(t, hit(api.Product{Name: "Placa de Vídeo RTX 4060"}))
	assert.False(t, hit(api.Product{Name: "SSD 1TB"}))
}

// referenceTemperature is the three-tier rule written out longhand.
func referenceTemperature(urls []string, query string, temperature float64, rng filter.RandomSource) []string {
	needle := filter.Normalize(query)
	threshold := 0.2 + temperature*0.6
	var out []string
	for _, u := range urls {
		slug := filter.URLSlug(u)
		hit := slug != "" && containsString(slug, needle)
		switch {
		case temperature < 0.4:
			if hit {
				out = append(out, u)
			}
		case temperature < 0.7:
			if hit {
				out = append(out, u)
			} else if rng.Float64() < threshold*0.2 {
				out = append(out, u)
			}
		default:
			out = append(out, u)
		}
	}
	return out
}

func containsString(s, sub string) bool {
	return len(sub) <= len(s) && (sub == "" || indexOf(s, sub) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func randomURL(rng *rand.Rand, idx int) string {
	slugs := []string{"ssd-kingston-1tb", "memoria-ddr5-16gb", "rtx-4060-8gb", "ssd-samsung-990", "gabinete-gamer"}
	switch rng.IntN(3) {
	case 0:
		return fmt.Sprintf("https://a.test/produto/%d/%s", idx, slugs[rng.IntN(len(slugs))])
	case 1:
		return fmt.Sprintf("https://b.test/p/%s-%d", slugs[rng.IntN(len(slugs))], idx)
	default:
		return fmt.Sprintf("https://c.test/categoria/%d", idx)
	}
}

func TestTemperature_ReferenceEquivalence(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 42))
	queries := []string{"ssd", "ddr5", "rtx 4060", "gabinete", "Memória"}
	temps := []float64{0, 0.2, 0.39, 0.4, 0.55, 0.69, 0.7, 1}

	for caseNum := 0; caseNum < 300; caseNum++ {
		n := rng.IntN(40)
		urls := make([]string, 0, n)
		for i := range n {
			urls = append(urls, randomURL(rng, i))
		}
		query := queries[rng.IntN(len(queries))]
		temp := temps[rng.IntN(len(temps))]
		seed := rng.Uint64()

		got := filter.Temperature(urls, filter.URLHit(query), temp, rand.New(rand.NewPCG(seed, 1)))
		want := referenceTemperature(urls, query, temp, rand.New(rand.NewPCG(seed, 1)))

		if len(want) == 0 {
			assert.Empty(t, got, "case=%d", caseNum)
			continue
		}
		assert.Equal(t, want, got, "query=%q temp=%v case=%d", query, temp, caseNum)
	}
}

func BenchmarkTemperature_1kURLs(b *testing.B) {
	rng := rand.New(rand.NewPCG(7, 7))
	urls := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		urls = append(urls, randomURL(rng, i))
	}
	hit := filter.URLHit("ssd")

	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		_ = filter.Temperature(urls, hit, 0.5, rng)
	}
}

func TestTier(t *testing.T) {
	assert.Equal(t, "strict", filter.Tier(0))
	assert.Equal(t, "strict", filter.Tier(0.39))
	assert.Equal(t, "fuzzy", filter.Tier(0.4))
	assert.Equal(t, "fuzzy", filter.Tier(0.69))
	assert.Equal(t, "passthrough", filter.Tier(0.7))
	assert.Equal(t, "passthrough", filter.Tier(3))
}
