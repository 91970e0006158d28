package filter_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/filter"
)

func ptr(s string) *string { return &s }

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bound(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func sampleProducts() []api.Product {
	return []api.Product{
		{ID: 1, Name: "SSD Kingston NV2 1TB NVMe", Category: ptr("SSD"), LowestPrice: price("459.90"), SourceURL: "https://a.test/produto/1"},
		{ID: 2, Name: "Placa de Vídeo RTX 4060", Category: ptr("Placas de Vídeo"), LowestPrice: price("1899.00"), SourceURL: "https://a.test/produto/2"},
		{ID: 3, Name: "Memória DDR5 16GB", Category: ptr("memoria"), LowestPrice: price("299.99"), SourceURL: "https://b.test/produto/3"},
		{ID: 4, Name: "SSD Samsung 990 Pro 2TB", Category: ptr("armazenamento"), LowestPrice: price("1299.00"), SourceURL: "https://b.test/produto/4"},
		{ID: 5, Name: "Gabinete sem categoria", Category: nil, LowestPrice: price("350.00"), SourceURL: "https://c.test/produto/5"},
	}
}

func ids(products []api.Product) []int64 {
	out := make([]int64, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestApply_NoFilters(t *testing.T) {
	result := filter.Apply(sampleProducts(), filter.Options{})
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(result))
}

func TestApply_CategorySynonyms(t *testing.T) {
	result := filter.Apply(sampleProducts(), filter.Options{Category: "ssd"})
	assert.Equal(t, []int64{1, 4}, ids(result))
}

func TestApply_CategoryAccentAndPlural(t *testing.T) {
	result := filter.Apply(sampleProducts(), filter.Options{Category: "gpu"})
	assert.Equal(t, []int64{2}, ids(result))

	result = filter.Apply(sampleProducts(), filter.Options{Category: "Memória"})
	assert.Equal(t, []int64{3}, ids(result))
}

func TestApply_PriceRangeInclusive(t *testing.T) {
	result := filter.Apply(sampleProducts(), filter.Options{
		MinPrice: bound("299.99"),
		MaxPrice: bound("459.90"),
	})
	assert.Equal(t, []int64{1, 3, 5}, ids(result))
}

func TestApply_SortModes(t *testing.T) {
	tests := []struct {
		sort string
		want []int64
	}{
		{"price-asc", []int64{3, 5, 1, 4, 2}},
		{"price-desc", []int64{2, 4, 1, 5, 3}},
		{"name-asc", []int64{5, 3, 2, 1, 4}},
		{"name-desc", []int64{4, 1, 2, 3, 5}},
		{"relevance", []int64{1, 2, 3, 4, 5}},
		{"", []int64{1, 2, 3, 4, 5}},
	}
	for _, tt := range tests {
		result := filter.Apply(sampleProducts(), filter.Options{Sort: tt.sort})
		assert.Equal(t, tt.want, ids(result), "sort=%q", tt.sort)
	}
}

func TestApply_Limit(t *testing.T) {
	result := filter.Apply(sampleProducts(), filter.Options{Sort: "price-asc", Limit: 2})
	assert.Equal(t, []int64{3, 5}, ids(result))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	items := sampleProducts()
	_ = filter.Apply(items, filter.Options{Sort: "price-desc"})
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(items))
}

func TestRank_ByScoreStable(t *testing.T) {
	result := filter.Rank(sampleProducts(), "ssd 2tb")
	// "SSD Samsung 990 Pro 2TB" hits both words, "SSD Kingston" one.
	assert.Equal(t, []int64{4, 1, 2, 3, 5}, ids(result))
}

func TestRank_EmptyQueryKeepsOrder(t *testing.T) {
	result := filter.Rank(sampleProducts(), "  ")
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(result))
}

func TestCategories(t *testing.T) {
	cats := filter.Categories(sampleProducts())

	assert.Equal(t, 1, cats["SSD"])
	assert.Equal(t, 1, cats["armazenamento"])
	assert.Len(t, cats, 4)
}

func TestDefaultSort(t *testing.T) {
	assert.Equal(t, filter.SortRelevance, filter.DefaultSort("ssd"))
	assert.Equal(t, filter.SortPriceAsc, filter.DefaultSort(""))
}

func TestValidSortMode(t *testing.T) {
	assert.True(t, filter.ValidSortMode(""))
	assert.True(t, filter.ValidSortMode("Price-Desc"))
	assert.False(t, filter.ValidSortMode("random"))
}

func TestDeref(t *testing.T) {
	s := "hello"
	assert.Equal(t, "hello", filter.Deref(&s))
	assert.Equal(t, "", filter.Deref(nil))
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"SSD &amp; HD", "SSD & HD"},
		{"Line1\r\nLine2", "Line1 Line2"},
		{"  spaces  ", "spaces"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, filter.CleanText(tt.input), "CleanText(%q)", tt.input)
	}
}
