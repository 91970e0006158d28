package cmd

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/cart"
	"github.com/tayloree/pricecli/internal/catalog"
	"github.com/tayloree/pricecli/internal/filter"
)

func strPtr(value string) *string { return &value }

type stubCartRemote struct {
	items   []api.CartItemJSON
	adds    int
	removes int
	addErr  error
}

func (s *stubCartRemote) FetchCart(context.Context) (*api.CartResponse, error) {
	return &api.CartResponse{ID: 1, Items: s.items}, nil
}

func (s *stubCartRemote) AddCartItem(_ context.Context, productID int64, quantity int) (*api.AddToCartResponse, error) {
	s.adds++
	if s.addErr != nil {
		return nil, s.addErr
	}
	return &api.AddToCartResponse{ID: 50 + productID, ProductID: productID, Quantity: quantity}, nil
}

func (s *stubCartRemote) RemoveCartItem(context.Context, string) error {
	s.removes++
	return nil
}

func sampleTUIResult() *catalog.Result {
	products := []api.Product{
		{ID: 1, Name: "SSD Kingston 1TB", Category: strPtr("ssd"), LowestPrice: decimal.RequireFromString("400"), SourceURL: "https://s.test/produto/1"},
		{ID: 2, Name: "SSD Crucial 500GB", Category: strPtr("ssd"), LowestPrice: decimal.RequireFromString("250"), SourceURL: "https://s.test/produto/2"},
		{ID: 3, Name: "Fonte 650W", Category: strPtr("fonte"), LowestPrice: decimal.RequireFromString("380"), SourceURL: "https://s.test/produto/3"},
	}
	return &catalog.Result{
		Products: products,
		RawItems: []api.RawItem{
			{URL: "https://s.test/produto/1", Title: strPtr("SSD Kingston 1TB")},
			{URL: "https://s.test/produto/1?ref=x", Title: strPtr("SSD Kingston 1TB")},
			{URL: "https://s.test/ajuda", Title: strPtr("Ajuda")},
		},
		Links: map[string]int64{
			"https://s.test/produto/1":       1,
			"https://s.test/produto/1?ref=x": 1,
		},
	}
}

func loadedTUIModel(t *testing.T, remote *stubCartRemote) priceTUIModel {
	t.Helper()
	replica := cart.New(remote, nil)
	m := newLoadingPriceTUIModel(tuiLoadConfig{
		ctx:   context.Background(),
		label: "test",
		cart:  replica,
		load: func(context.Context) (*catalog.Result, error) {
			return sampleTUIResult(), nil
		},
		initialOpts: filter.Options{Sort: filter.SortPriceAsc},
	})

	msg := m.loadCmd()
	loaded, ok := msg.(tuiDataLoadedMsg)
	require.True(t, ok)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	next, _ = next.(priceTUIModel).Update(loaded)
	return next.(priceTUIModel)
}

func pressKey(t *testing.T, m priceTUIModel, key string) (priceTUIModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return next.(priceTUIModel), cmd
}

func TestCanonicalSortMode(t *testing.T) {
	assert.Equal(t, filter.SortPriceAsc, canonicalSortMode("price"))
	assert.Equal(t, filter.SortPriceAsc, canonicalSortMode("cheapest"))
	assert.Equal(t, filter.SortPriceDesc, canonicalSortMode("price-desc"))
	assert.Equal(t, filter.SortNameAsc, canonicalSortMode("name"))
	assert.Equal(t, filter.SortNameDesc, canonicalSortMode("name-desc"))
	assert.Equal(t, filter.SortRelevance, canonicalSortMode(""))
	assert.Equal(t, filter.SortRelevance, canonicalSortMode("unknown"))
}

func TestBuildGroupedListItems_CategorySectionsAndUnmatchedLast(t *testing.T) {
	result := sampleTUIResult()
	pages, unmatched := groupPagesByProduct(result)

	items, starts := buildGroupedListItems(result.Products, pages, unmatched, map[int64]int{1: 2}, nil)

	require.Len(t, items, 7)
	assert.Equal(t, []int{0, 3, 5}, starts)

	header, ok := items[0].(tuiGroupItem)
	require.True(t, ok)
	assert.Equal(t, "Ssd", header.name)
	assert.Equal(t, 2, header.count)
	assert.Equal(t, 1, header.ordinal)

	first, ok := items[1].(tuiProductItem)
	require.True(t, ok)
	assert.Equal(t, int64(1), first.product.ID)
	assert.Len(t, first.pages, 2)
	assert.Contains(t, first.description, "in cart: 2")
	assert.Contains(t, first.description, "2 pages")

	header2, ok := items[3].(tuiGroupItem)
	require.True(t, ok)
	assert.Equal(t, "Fonte", header2.name)

	last, ok := items[5].(tuiGroupItem)
	require.True(t, ok)
	assert.Equal(t, unmatchedGroup, last.name)
	assert.Equal(t, 3, last.ordinal)

	page, ok := items[6].(tuiPageItem)
	require.True(t, ok)
	assert.Equal(t, "Ajuda", page.title)
}

func TestBuildCategoryChoices_AlwaysIncludesCurrent(t *testing.T) {
	products := []api.Product{
		{Category: strPtr("ssd")},
		{Category: strPtr("ssd")},
		{Category: strPtr("fonte")},
	}

	choices := buildCategoryChoices(products, "gpu")

	assert.Equal(t, "", choices[0])
	assert.Equal(t, "ssd", choices[1])
	assert.Contains(t, choices, "fonte")
	assert.Contains(t, choices, "gpu")
}

func TestHumanizeLabel(t *testing.T) {
	assert.Equal(t, "Placa De Vídeo", humanizeLabel("placa_de-vídeo"))
	assert.Equal(t, "Other", humanizeLabel("  "))
}

func TestPriceTUIModel_LoadSelectsFirstProduct(t *testing.T) {
	m := loadedTUIModel(t, &stubCartRemote{})

	assert.False(t, m.loading)
	assert.Equal(t, 3, m.visibleProducts)
	assert.Equal(t, filter.SortPriceAsc, m.opts.Sort)

	product, ok := m.selectedProduct()
	require.True(t, ok)
	assert.Equal(t, int64(2), product.ID, "cheapest ssd first under price-asc")
	assert.Contains(t, m.View(), "pricecli tui")
}

func TestPriceTUIModel_AddConfirmsThroughCart(t *testing.T) {
	remote := &stubCartRemote{}
	m := loadedTUIModel(t, remote)

	m, cmd := pressKey(t, m, "a")
	require.NotNil(t, cmd)
	assert.Equal(t, "adding", m.inflight[2])

	done := addToCartCmd(m.ctx, m.cart, 2)()
	next, _ := m.Update(done)
	m = next.(priceTUIModel)

	assert.Equal(t, 1, remote.adds)
	assert.NotContains(t, m.inflight, int64(2))
	item, ok := m.cart.ItemForProduct(2)
	require.True(t, ok)
	assert.Equal(t, "52", item.ID)
	assert.Equal(t, cart.Confirmed, item.State)
}

func TestPriceTUIModel_AddFailureRollsBack(t *testing.T) {
	remote := &stubCartRemote{addErr: errors.New("backend down")}
	m := loadedTUIModel(t, remote)

	msg := addToCartCmd(m.ctx, m.cart, 2)().(tuiCartDoneMsg)

	require.Error(t, msg.err)
	assert.Contains(t, cartStatusText(msg), "rolled back")
	_, ok := m.cart.ItemForProduct(2)
	assert.False(t, ok)
}

func TestPriceTUIModel_AddDisabledForUnmatchedPage(t *testing.T) {
	remote := &stubCartRemote{}
	m := loadedTUIModel(t, remote)

	m, _ = pressKey(t, m, "3")
	_, isPage := m.list.SelectedItem().(tuiPageItem)
	require.True(t, isPage)

	m, _ = pressKey(t, m, "a")

	assert.Empty(t, m.inflight)
	assert.Equal(t, 0, remote.adds)
}

func TestPriceTUIModel_RemoveRequiresCartLine(t *testing.T) {
	remote := &stubCartRemote{items: []api.CartItemJSON{{ID: 9, ProductID: 1, Quantity: 1}}}
	m := loadedTUIModel(t, remote)

	m, _ = pressKey(t, m, "x")
	assert.Empty(t, m.inflight, "product 2 is not in the cart")

	line, ok := m.cart.ItemForProduct(1)
	require.True(t, ok)
	done := removeFromCartCmd(m.ctx, m.cart, 1, line.ID)()
	next, _ := m.Update(done)
	m = next.(priceTUIModel)

	assert.Equal(t, 1, remote.removes)
	_, ok = m.cart.ItemForProduct(1)
	assert.False(t, ok)
}

func TestPriceTUIModel_CategoryCycleHidesUnmatched(t *testing.T) {
	m := loadedTUIModel(t, &stubCartRemote{})

	m, _ = pressKey(t, m, "c")

	assert.Equal(t, "ssd", m.opts.Category)
	assert.Equal(t, 2, m.visibleProducts)
	for _, item := range m.list.Items() {
		_, isPage := item.(tuiPageItem)
		assert.False(t, isPage)
	}

	m, _ = pressKey(t, m, "r")
	assert.Equal(t, "", m.opts.Category)
}

func TestPriceTUIModel_LoadErrorQuits(t *testing.T) {
	m := newLoadingPriceTUIModel(tuiLoadConfig{
		cart: cart.New(&stubCartRemote{}, nil),
		load: func(context.Context) (*catalog.Result, error) {
			return nil, catalog.ErrNoProductURLs
		},
	})

	next, cmd := m.Update(m.loadCmd())

	require.NotNil(t, cmd)
	assert.ErrorIs(t, next.(priceTUIModel).fatalErr, catalog.ErrNoProductURLs)
}
