package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/cart"
	"github.com/tayloree/pricecli/internal/catalog"
	"github.com/tayloree/pricecli/internal/display"
	"github.com/tayloree/pricecli/internal/filter"
	"github.com/tayloree/pricecli/internal/match"
)

const (
	minTUIWidth  = 92
	minTUIHeight = 24

	unmatchedGroup = "Unmatched pages"
)

var (
	tuiHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	tuiMetaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	tuiHintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	tuiValueStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	tuiPendingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	tuiTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	tuiMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	tuiSectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
)

type tuiLoadConfig struct {
	ctx         context.Context
	label       string
	load        func(context.Context) (*catalog.Result, error)
	cart        *cart.Sync
	initialOpts filter.Options
}

type tuiDataLoadedMsg struct {
	result      *catalog.Result
	cartErr     error
	initialOpts filter.Options
}

type tuiDataLoadErrMsg struct {
	err error
}

// tuiCartDoneMsg reports a finished cart mutation or refresh. The replica has
// already been confirmed or rolled back when it arrives.
type tuiCartDoneMsg struct {
	op        string
	productID int64
	itemID    string
	err       error
}

type tuiFocus int

const (
	tuiFocusList tuiFocus = iota
	tuiFocusDetail
)

type tuiGroupItem struct {
	name    string
	count   int
	ordinal int
}

func (g tuiGroupItem) FilterValue() string { return strings.ToLower(g.name) }
func (g tuiGroupItem) Title() string       { return fmt.Sprintf("%d. %s", g.ordinal, g.name) }
func (g tuiGroupItem) Description() string {
	return fmt.Sprintf("Section header • %d entries", g.count)
}

type tuiProductItem struct {
	product     api.Product
	pages       []api.RawItem
	group       string
	title       string
	description string
	filterValue string
}

func (p tuiProductItem) FilterValue() string { return p.filterValue }
func (p tuiProductItem) Title() string       { return p.title }
func (p tuiProductItem) Description() string { return p.description }

// tuiPageItem is a scraped page no product could be linked to. It can be
// inspected but not added to the cart.
type tuiPageItem struct {
	raw         api.RawItem
	title       string
	description string
	filterValue string
}

func (p tuiPageItem) FilterValue() string { return p.filterValue }
func (p tuiPageItem) Title() string       { return p.title }
func (p tuiPageItem) Description() string { return p.description }

type priceTUIModel struct {
	loading  bool
	spinner  spinner.Model
	loadCmd  tea.Cmd
	fatalErr error

	ctx   context.Context
	label string
	cart  *cart.Sync

	result         *catalog.Result
	allProducts    []api.Product
	pagesByProduct map[int64][]api.RawItem
	unmatched      []api.RawItem
	inflight       map[int64]string

	opts        filter.Options
	initialOpts filter.Options

	sortChoices     []string
	sortIndex       int
	categoryChoices []string
	categoryIndex   int
	limitChoices    []int
	limitIndex      int

	list   list.Model
	detail viewport.Model

	focus      tuiFocus
	showHelp   bool
	selectedID string

	groupStarts     []int
	visibleProducts int

	width, height   int
	bodyHeight      int
	listPaneWidth   int
	detailPaneWidth int
	tooSmall        bool
}

func newLoadingPriceTUIModel(cfg tuiLoadConfig) priceTUIModel {
	delegate := list.NewDefaultDelegate()
	delegate.SetHeight(2)
	delegate.SetSpacing(1)

	lst := list.New([]list.Item{}, delegate, 0, 0)
	lst.Title = "Products"
	lst.SetStatusBarItemName("item", "items")
	lst.SetShowStatusBar(true)
	lst.SetFilteringEnabled(true)
	lst.SetShowHelp(false)
	lst.SetShowPagination(true)
	lst.DisableQuitKeybindings()

	detail := viewport.New(0, 0)
	detail.KeyMap.PageDown.SetKeys("f", "pgdown")
	detail.KeyMap.PageUp.SetKeys("b", "pgup")
	detail.KeyMap.HalfPageDown.SetKeys("d")
	detail.KeyMap.HalfPageUp.SetKeys("u")

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	ctx := cfg.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	return priceTUIModel{
		loading:     true,
		spinner:     spin,
		loadCmd:     loadTUIDataCmd(cfg),
		ctx:         ctx,
		label:       cfg.label,
		cart:        cfg.cart,
		inflight:    map[int64]string{},
		initialOpts: cfg.initialOpts,
		opts:        cfg.initialOpts,
		list:        lst,
		detail:      detail,
		focus:       tuiFocusList,
	}
}

func loadTUIDataCmd(cfg tuiLoadConfig) tea.Cmd {
	return func() tea.Msg {
		ctx := cfg.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		result, err := cfg.load(ctx)
		if err != nil {
			return tuiDataLoadErrMsg{err: err}
		}

		// A cart outage leaves the catalog browsable.
		cfg.cart.Remember(result.Products...)
		_, cartErr := cfg.cart.Refresh(ctx)

		return tuiDataLoadedMsg{
			result:      result,
			cartErr:     cartErr,
			initialOpts: cfg.initialOpts,
		}
	}
}

func addToCartCmd(ctx context.Context, replica *cart.Sync, productID int64) tea.Cmd {
	return func() tea.Msg {
		item, err := replica.Add(ctx, productID, 1)
		return tuiCartDoneMsg{op: "add", productID: productID, itemID: item.ID, err: err}
	}
}

func removeFromCartCmd(ctx context.Context, replica *cart.Sync, productID int64, itemID string) tea.Cmd {
	return func() tea.Msg {
		err := replica.Remove(ctx, itemID)
		return tuiCartDoneMsg{op: "remove", productID: productID, itemID: itemID, err: err}
	}
}

func refreshCartCmd(ctx context.Context, replica *cart.Sync) tea.Cmd {
	return func() tea.Msg {
		_, err := replica.Refresh(ctx)
		return tuiCartDoneMsg{op: "refresh", err: err}
	}
}

func (m priceTUIModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd)
}

func (m priceTUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tuiDataLoadedMsg:
		m.loading = false
		m.result = msg.result
		m.allProducts = msg.result.Products
		m.pagesByProduct, m.unmatched = groupPagesByProduct(msg.result)
		m.initialOpts = canonicalizeTUIOptions(msg.initialOpts)
		m.opts = m.initialOpts
		m.initializeInlineChoices()
		m.applyCurrentFilters(true)
		m.resize()
		if msg.cartErr != nil {
			return m, m.list.NewStatusMessage("Cart unavailable: " + msg.cartErr.Error())
		}
		return m, nil

	case tuiDataLoadErrMsg:
		m.loading = false
		m.fatalErr = msg.err
		return m, tea.Quit

	case tuiCartDoneMsg:
		if msg.productID != 0 {
			delete(m.inflight, msg.productID)
		}
		m.applyCurrentFilters(false)
		return m, m.list.NewStatusMessage(cartStatusText(msg))

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	keyMsg, isKey := msg.(tea.KeyMsg)
	if isKey {
		if keyMsg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.loading {
			if keyMsg.String() == "q" {
				return m, tea.Quit
			}
			return m, nil
		}
	}

	if m.loading {
		return m, nil
	}

	if isKey {
		filtering := m.list.FilterState() == list.Filtering
		key := keyMsg.String()

		switch key {
		case "q":
			if !filtering {
				return m, tea.Quit
			}
		case "tab":
			if !filtering {
				if m.focus == tuiFocusList {
					m.focus = tuiFocusDetail
				} else {
					m.focus = tuiFocusList
				}
				return m, nil
			}
		case "esc":
			if m.focus == tuiFocusDetail && !filtering {
				m.focus = tuiFocusList
				return m, nil
			}
		case "?":
			if !filtering {
				m.showHelp = !m.showHelp
				m.resize()
				return m, nil
			}
		case "a":
			if !filtering {
				return m.startAdd()
			}
		case "x":
			if !filtering {
				return m.startRemove()
			}
		case "R":
			if !filtering {
				return m, tea.Batch(
					refreshCartCmd(m.ctx, m.cart),
					m.list.NewStatusMessage("Refreshing cart..."),
				)
			}
		case "s":
			if !filtering {
				m.cycleSortMode()
				return m, nil
			}
		case "c":
			if !filtering {
				m.cycleCategory()
				return m, nil
			}
		case "l":
			if !filtering {
				m.cycleLimit()
				return m, nil
			}
		case "r":
			if !filtering {
				m.opts = m.initialOpts
				m.syncChoiceIndexesFromOptions()
				m.applyCurrentFilters(false)
				return m, nil
			}
		case "]":
			if !filtering {
				if m.list.IsFiltered() {
					return m, m.list.NewStatusMessage("Clear fuzzy filter before section jumps.")
				}
				m.jumpSection(1)
				return m, nil
			}
		case "[":
			if !filtering {
				if m.list.IsFiltered() {
					return m, m.list.NewStatusMessage("Clear fuzzy filter before section jumps.")
				}
				m.jumpSection(-1)
				return m, nil
			}
		}

		if !filtering && len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			if m.list.IsFiltered() {
				return m, m.list.NewStatusMessage("Clear fuzzy filter before section jumps.")
			}
			m.jumpToSection(int(key[0] - '1'))
			return m, nil
		}

		if m.focus == tuiFocusDetail && !filtering {
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	m.refreshDetail(false)
	return m, cmd
}

func (m priceTUIModel) startAdd() (tea.Model, tea.Cmd) {
	product, ok := m.selectedProduct()
	if !ok {
		return m, m.list.NewStatusMessage("No matching product for this entry; add is disabled.")
	}
	if op, busy := m.inflight[product.ID]; busy {
		return m, m.list.NewStatusMessage(fmt.Sprintf("Still %s #%d...", op, product.ID))
	}
	m.inflight[product.ID] = "adding"
	m.refreshDetail(false)
	return m, tea.Batch(
		addToCartCmd(m.ctx, m.cart, product.ID),
		m.list.NewStatusMessage(fmt.Sprintf("Adding #%d to cart...", product.ID)),
	)
}

func (m priceTUIModel) startRemove() (tea.Model, tea.Cmd) {
	product, ok := m.selectedProduct()
	if !ok {
		return m, m.list.NewStatusMessage("No matching product for this entry.")
	}
	if op, busy := m.inflight[product.ID]; busy {
		return m, m.list.NewStatusMessage(fmt.Sprintf("Still %s #%d...", op, product.ID))
	}
	item, inCart := m.cart.ItemForProduct(product.ID)
	if !inCart {
		return m, m.list.NewStatusMessage(fmt.Sprintf("#%d is not in the cart.", product.ID))
	}
	m.inflight[product.ID] = "removing"
	m.refreshDetail(false)
	return m, tea.Batch(
		removeFromCartCmd(m.ctx, m.cart, product.ID, item.ID),
		m.list.NewStatusMessage(fmt.Sprintf("Removing #%d from cart...", product.ID)),
	)
}

func (m priceTUIModel) selectedProduct() (api.Product, bool) {
	item, ok := m.list.SelectedItem().(tuiProductItem)
	if !ok {
		return api.Product{}, false
	}
	return item.product, true
}

func cartStatusText(msg tuiCartDoneMsg) string {
	switch {
	case msg.op == "refresh" && msg.err != nil:
		return "Cart refresh failed: " + msg.err.Error()
	case msg.op == "refresh":
		return "Cart refreshed."
	case msg.err != nil:
		return fmt.Sprintf("Could not %s #%d, change rolled back: %v", msg.op, msg.productID, msg.err)
	case msg.op == "add":
		return fmt.Sprintf("Added #%d (item %s).", msg.productID, msg.itemID)
	default:
		return fmt.Sprintf("Removed #%d from cart.", msg.productID)
	}
}

func (m priceTUIModel) View() string {
	if m.loading {
		return m.loadingView()
	}
	if m.width == 0 || m.height == 0 {
		return tuiMetaStyle.Render("Loading interface...")
	}
	if m.tooSmall {
		return lipgloss.NewStyle().
			Padding(1, 2).
			Render(
				fmt.Sprintf(
					"Terminal too small (%dx%d).\nResize to at least %dx%d for the two-pane price explorer.",
					m.width, m.height, minTUIWidth, minTUIHeight,
				),
			)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.headerView(),
		m.bodyView(),
		m.footerView(),
	)
}

func (m priceTUIModel) loadingView() string {
	width := m.width
	if width == 0 {
		width = 80
	}
	skeletonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	lines := []string{
		tuiHeaderStyle.Render("pricecli tui"),
		tuiMetaStyle.Render("Preparing interactive interface..."),
		"",
		fmt.Sprintf("%s Scraping %s", m.spinner.View(), m.label),
		tuiHintStyle.Render("Tip: press q to cancel."),
		"",
		skeletonStyle.Render("┌──────────────────────────────┬─────────────────────────────────────────┐"),
		skeletonStyle.Render("│  Loading product list...     │  Loading detail panel...               │"),
		skeletonStyle.Render("│  • categories                │  • lowest price and source pages       │"),
		skeletonStyle.Render("│  • relevance ranking         │  • cart lines and total                │"),
		skeletonStyle.Render("│  • filter index              │  • scroll viewport                     │"),
		skeletonStyle.Render("└──────────────────────────────┴─────────────────────────────────────────┘"),
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
}

func (m *priceTUIModel) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	if m.loading {
		return
	}

	m.tooSmall = m.width < minTUIWidth || m.height < minTUIHeight
	if m.tooSmall {
		return
	}

	headerH := 3
	footerH := 2
	if m.showHelp {
		footerH = 7
	}
	m.bodyHeight = maxInt(8, m.height-headerH-footerH-1)

	listWidth := maxInt(40, int(float64(m.width)*0.43))
	if listWidth > m.width-42 {
		listWidth = m.width / 2
	}
	detailWidth := m.width - listWidth - 1
	if detailWidth < 36 {
		detailWidth = 36
		listWidth = m.width - detailWidth - 1
	}

	m.listPaneWidth = listWidth
	m.detailPaneWidth = detailWidth

	listInnerWidth := maxInt(24, listWidth-4)
	detailInnerWidth := maxInt(24, detailWidth-4)
	panelInnerHeight := maxInt(6, m.bodyHeight-2)

	m.list.SetSize(listInnerWidth, panelInnerHeight)
	m.detail.Width = detailInnerWidth
	m.detail.Height = panelInnerHeight
	m.refreshDetail(false)
}

func (m priceTUIModel) headerView() string {
	focus := "list"
	if m.focus == tuiFocusDetail {
		focus = "detail"
	}

	state := m.cart.Snapshot()
	top := fmt.Sprintf("pricecli tui  |  %s", m.label)
	bottom := fmt.Sprintf(
		"products: %d visible / %d total  |  cart: %d items, %s  |  filters: %s  |  focus: %s",
		m.visibleProducts, len(m.allProducts), state.Quantity(), state.Total().StringFixed(2),
		m.activeFilterSummary(), focus,
	)

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(tuiHeaderStyle.Render(top) + "\n" + tuiMetaStyle.Render(bottom))
}

func (m priceTUIModel) bodyView() string {
	listBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("241")).
		Padding(0, 1)
	detailBorder := listBorder

	if m.focus == tuiFocusList {
		listBorder = listBorder.BorderForeground(lipgloss.Color("86"))
	} else {
		detailBorder = detailBorder.BorderForeground(lipgloss.Color("86"))
	}

	left := listBorder.
		Width(m.listPaneWidth).
		Height(m.bodyHeight).
		Render(m.list.View())
	right := detailBorder.
		Width(m.detailPaneWidth).
		Height(m.bodyHeight).
		Render(m.detail.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func (m priceTUIModel) footerView() string {
	base := "Tab switch pane • / fuzzy filter • a add • x remove • R reload cart • s sort • c category • l limit • r reset • [/] section jump • q quit"
	if m.focus == tuiFocusDetail {
		base = "Detail: j/k or ↑/↓ scroll • u/d half-page • b/f page • esc list • ? help • q quit"
	}

	if !m.showHelp {
		return lipgloss.NewStyle().Padding(0, 1).Render(tuiHintStyle.Render(base))
	}

	lines := []string{
		"Key Help",
		"list pane: ↑/↓ or j/k move • / fuzzy filter • c category • s sort • l limit",
		"cart: a add one unit of the selected product • x remove its cart line • R reload from backend",
		"group jumps: ] next section • [ previous section • 1..9 jump to numbered section header",
		"global: tab switch pane • esc list • r reset inline options • ? toggle help • q quit • ctrl+c force quit",
	}
	return lipgloss.NewStyle().
		Padding(0, 1).
		Render(tuiHintStyle.Render(strings.Join(lines, "\n")))
}

func (m *priceTUIModel) initializeInlineChoices() {
	m.opts = canonicalizeTUIOptions(m.opts)

	m.sortChoices = []string{
		filter.SortRelevance,
		filter.SortPriceAsc,
		filter.SortPriceDesc,
		filter.SortNameAsc,
		filter.SortNameDesc,
	}
	m.categoryChoices = buildCategoryChoices(m.allProducts, m.opts.Category)
	m.limitChoices = buildLimitChoices(m.opts.Limit)

	m.syncChoiceIndexesFromOptions()
}

func (m *priceTUIModel) syncChoiceIndexesFromOptions() {
	m.sortIndex = indexOfString(m.sortChoices, canonicalSortMode(m.opts.Sort))
	if m.sortIndex < 0 {
		m.sortIndex = 0
	}
	m.opts.Sort = m.sortChoices[m.sortIndex]

	m.categoryIndex = indexOfStringFold(m.categoryChoices, m.opts.Category)
	if m.categoryIndex < 0 {
		m.categoryIndex = 0
		m.opts.Category = ""
	} else {
		m.opts.Category = m.categoryChoices[m.categoryIndex]
	}

	m.limitIndex = indexOfInt(m.limitChoices, m.opts.Limit)
	if m.limitIndex < 0 {
		m.limitIndex = 0
		m.opts.Limit = m.limitChoices[m.limitIndex]
	}
}

func (m *priceTUIModel) cycleSortMode() {
	if len(m.sortChoices) == 0 {
		return
	}
	m.sortIndex = (m.sortIndex + 1) % len(m.sortChoices)
	m.opts.Sort = m.sortChoices[m.sortIndex]
	m.applyCurrentFilters(false)
}

func (m *priceTUIModel) cycleCategory() {
	if len(m.categoryChoices) == 0 {
		return
	}
	m.categoryIndex = (m.categoryIndex + 1) % len(m.categoryChoices)
	m.opts.Category = m.categoryChoices[m.categoryIndex]
	m.applyCurrentFilters(false)
}

func (m *priceTUIModel) cycleLimit() {
	if len(m.limitChoices) == 0 {
		return
	}
	m.limitIndex = (m.limitIndex + 1) % len(m.limitChoices)
	m.opts.Limit = m.limitChoices[m.limitIndex]
	m.applyCurrentFilters(false)
}

func (m priceTUIModel) activeFilterSummary() string {
	parts := []string{}
	if m.opts.Category != "" {
		parts = append(parts, "category:"+m.opts.Category)
	}
	if m.opts.MinPrice.Valid {
		parts = append(parts, "min:"+m.opts.MinPrice.Decimal.String())
	}
	if m.opts.MaxPrice.Valid {
		parts = append(parts, "max:"+m.opts.MaxPrice.Decimal.String())
	}
	if m.opts.Sort != "" {
		parts = append(parts, "sort:"+m.opts.Sort)
	}
	if m.opts.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit:%d", m.opts.Limit))
	}
	if fuzzy := strings.TrimSpace(m.list.FilterValue()); fuzzy != "" {
		parts = append(parts, "fuzzy:"+fuzzy)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func (m *priceTUIModel) applyCurrentFilters(resetSelection bool) {
	currentID := m.selectedID
	filtered := filter.Apply(m.allProducts, m.opts)
	m.visibleProducts = len(filtered)

	unmatched := m.unmatched
	if m.opts.Category != "" {
		unmatched = nil
	}
	items, starts := buildGroupedListItems(filtered, m.pagesByProduct, unmatched, m.cartQuantities(), m.inflight)
	m.groupStarts = starts

	m.list.Title = fmt.Sprintf("Products • %d visible", m.visibleProducts)
	m.list.SetItems(items)

	target := -1
	if !resetSelection && currentID != "" {
		target = findItemIndexByID(items, currentID)
	}
	if target < 0 {
		target = firstEntryIndex(items)
	}
	if target < 0 && len(items) > 0 {
		target = 0
	}
	if target >= 0 {
		m.list.Select(target)
	}

	m.refreshDetail(true)
}

func (m priceTUIModel) cartQuantities() map[int64]int {
	state := m.cart.Snapshot()
	out := make(map[int64]int, len(state.Items))
	for _, item := range state.Items {
		out[item.ProductID] += item.Quantity
	}
	return out
}

func (m *priceTUIModel) refreshDetail(resetScroll bool) {
	var content string
	nextID := ""

	if selected := m.list.SelectedItem(); selected != nil {
		switch item := selected.(type) {
		case tuiProductItem:
			content = m.renderProductDetail(item)
			nextID = stableIDForProduct(item.product)
		case tuiPageItem:
			content = renderPageDetail(item, m.detail.Width)
			nextID = stableIDForPage(item.raw)
		case tuiGroupItem:
			content = m.renderGroupDetail(item)
			nextID = stableIDForGroup(item.name)
		}
	}
	if content == "" {
		content = "No products match the current inline filters.\n\nTry pressing r to reset filters."
	}
	content += "\n\n" + renderCartSummary(m.cart.Snapshot(), m.detail.Width)

	if resetScroll || nextID != m.selectedID {
		m.detail.GotoTop()
	}
	m.selectedID = nextID
	m.detail.SetContent(content)
}

func (m priceTUIModel) renderProductDetail(item tuiProductItem) string {
	maxWidth := maxInt(24, m.detail.Width)
	p := item.product

	lines := []string{
		tuiTitleStyle.Render(wrapText(item.title, maxWidth)),
	}
	meta := []string{"#" + api.FormatID(p.ID)}
	if c := filter.CleanText(filter.Deref(p.Category)); c != "" {
		meta = append(meta, "category: "+c)
	}
	lines = append(lines, tuiMetaStyle.Render(strings.Join(meta, "  |  ")))

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("%s %s", tuiMetaStyle.Render("Lowest price:"),
		tuiValueStyle.Render(display.FormatPrice(filter.Deref(p.Currency), p.LowestPrice))))

	cartLine := "-"
	if line, ok := m.cart.ItemForProduct(p.ID); ok {
		cartLine = fmt.Sprintf("%d (item %s)", line.Quantity, line.ID)
		if line.State == cart.Pending {
			cartLine += " " + tuiPendingStyle.Render("PENDING")
		}
	}
	if op, busy := m.inflight[p.ID]; busy {
		cartLine += " " + tuiPendingStyle.Render(op+"...")
	}
	lines = append(lines, fmt.Sprintf("%s %s", tuiMetaStyle.Render("In cart:"), cartLine))

	if q := m.result.Query; q != "" {
		lines = append(lines, fmt.Sprintf("%s %d", tuiMetaStyle.Render("Relevance:"), filter.Score(p.Name, q)))
	}

	if src := strings.TrimSpace(p.SourceURL); src != "" {
		lines = append(lines, "")
		lines = append(lines, tuiMutedStyle.Render("Source:"))
		lines = append(lines, tuiMutedStyle.Render(wrapText(src, maxWidth)))
	}

	if len(item.pages) > 0 {
		lines = append(lines, "")
		lines = append(lines, tuiMetaStyle.Render(fmt.Sprintf("Scraped pages (%d):", len(item.pages))))
		for _, raw := range item.pages {
			lines = append(lines, "• "+wrapText(pageTitle(raw)+"  "+pagePrice(raw), maxWidth-2))
		}
	}

	return strings.Join(lines, "\n")
}

func renderPageDetail(item tuiPageItem, width int) string {
	maxWidth := maxInt(24, width)
	lines := []string{
		tuiTitleStyle.Render(wrapText(item.title, maxWidth)),
		tuiMetaStyle.Render("No matching product; add is disabled."),
		"",
		fmt.Sprintf("%s %s", tuiMetaStyle.Render("Price:"), tuiValueStyle.Render(pagePrice(item.raw))),
	}
	if !match.LikelyProduct(item.raw) {
		lines = append(lines, tuiMutedStyle.Render("This page does not look like a product page."))
	}
	lines = append(lines, "")
	lines = append(lines, tuiMutedStyle.Render("URL:"))
	lines = append(lines, tuiMutedStyle.Render(wrapText(item.raw.URL, maxWidth)))
	return strings.Join(lines, "\n")
}

func renderCartSummary(state cart.State, width int) string {
	maxWidth := maxInt(24, width)
	lines := []string{tuiSectionStyle.Render(fmt.Sprintf("Cart (%d items)", state.Quantity()))}
	if len(state.Items) == 0 {
		lines = append(lines, tuiMutedStyle.Render("Empty. Press a on a product to add it."))
		return strings.Join(lines, "\n")
	}
	for _, item := range state.Items {
		name := filter.CleanText(item.Name)
		if name == "" {
			name = "Product #" + api.FormatID(item.ProductID)
		}
		line := fmt.Sprintf("• %s ×%d  %s", name, item.Quantity, display.FormatPrice(item.Currency, item.Subtotal()))
		if item.State == cart.Pending {
			line += " " + tuiPendingStyle.Render("PENDING")
		}
		lines = append(lines, wrapText(line, maxWidth))
	}
	lines = append(lines, fmt.Sprintf("%s %s", tuiMetaStyle.Render("Total:"), tuiValueStyle.Render(state.Total().StringFixed(2))))
	return strings.Join(lines, "\n")
}

func (m priceTUIModel) renderGroupDetail(group tuiGroupItem) string {
	preview := m.groupPreviewTitles(group.name, 5)

	lines := []string{
		tuiSectionStyle.Render(fmt.Sprintf("Section %d: %s", group.ordinal, group.name)),
		tuiMetaStyle.Render(fmt.Sprintf("%d entries in this section", group.count)),
		"",
		tuiMetaStyle.Render("Jump keys:"),
		"- `]` next section, `[` previous section",
		"- `1..9` jump directly to section number",
	}
	if len(preview) > 0 {
		lines = append(lines, "")
		lines = append(lines, tuiMetaStyle.Render("Preview:"))
		for _, title := range preview {
			lines = append(lines, "• "+title)
		}
	}

	return strings.Join(lines, "\n")
}

func (m priceTUIModel) groupPreviewTitles(group string, max int) []string {
	out := make([]string, 0, max)
	for _, item := range m.list.Items() {
		switch entry := item.(type) {
		case tuiProductItem:
			if entry.group != group {
				continue
			}
			out = append(out, entry.title)
		case tuiPageItem:
			if group != unmatchedGroup {
				continue
			}
			out = append(out, entry.title)
		default:
			continue
		}
		if len(out) >= max {
			break
		}
	}
	return out
}

func (m *priceTUIModel) jumpToSection(index int) {
	if index < 0 || index >= len(m.groupStarts) {
		return
	}

	target := firstEntryIndexFrom(m.list.Items(), m.groupStarts[index])
	if target < 0 {
		target = m.groupStarts[index]
	}
	m.list.Select(target)
	m.refreshDetail(true)
}

func (m *priceTUIModel) jumpSection(delta int) {
	if len(m.groupStarts) == 0 {
		return
	}
	current := m.currentSectionIndex()
	if current < 0 {
		current = 0
	}
	next := current + delta
	if next < 0 {
		next = len(m.groupStarts) - 1
	}
	if next >= len(m.groupStarts) {
		next = 0
	}
	m.jumpToSection(next)
}

func (m priceTUIModel) currentSectionIndex() int {
	if len(m.groupStarts) == 0 {
		return -1
	}
	cursor := m.list.GlobalIndex()
	current := 0
	for i, start := range m.groupStarts {
		if start <= cursor {
			current = i
			continue
		}
		break
	}
	return current
}

// groupPagesByProduct files each raw item under the product it was linked to.
func groupPagesByProduct(result *catalog.Result) (map[int64][]api.RawItem, []api.RawItem) {
	pages := make(map[int64][]api.RawItem)
	var unmatched []api.RawItem
	for _, raw := range result.RawItems {
		if id, ok := result.Links[raw.URL]; ok {
			pages[id] = append(pages[id], raw)
			continue
		}
		unmatched = append(unmatched, raw)
	}
	return pages, unmatched
}

// buildGroupedListItems sections products by category, keeping the filtered
// order inside each section, and appends unmatched pages as a last section.
func buildGroupedListItems(
	products []api.Product,
	pages map[int64][]api.RawItem,
	unmatched []api.RawItem,
	inCart map[int64]int,
	inflight map[int64]string,
) (items []list.Item, starts []int) {
	if len(products) == 0 && len(unmatched) == 0 {
		return nil, nil
	}

	groups := map[string][]api.Product{}
	for _, p := range products {
		group := productGroupLabel(p)
		groups[group] = append(groups[group], p)
	}

	type groupMeta struct {
		name  string
		count int
	}

	metas := make([]groupMeta, 0, len(groups))
	for name, members := range groups {
		metas = append(metas, groupMeta{name: name, count: len(members)})
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].count != metas[j].count {
			return metas[i].count > metas[j].count
		}
		return metas[i].name < metas[j].name
	})

	items = make([]list.Item, 0, len(products)+len(unmatched)+len(metas)+1)
	starts = make([]int, 0, len(metas)+1)
	for idx, meta := range metas {
		starts = append(starts, len(items))

		items = append(items, tuiGroupItem{
			name:    meta.name,
			count:   meta.count,
			ordinal: idx + 1,
		})
		for _, p := range groups[meta.name] {
			items = append(items, buildTUIProductItem(p, meta.name, pages[p.ID], inCart[p.ID], inflight[p.ID]))
		}
	}

	if len(unmatched) > 0 {
		starts = append(starts, len(items))
		items = append(items, tuiGroupItem{
			name:    unmatchedGroup,
			count:   len(unmatched),
			ordinal: len(metas) + 1,
		})
		for _, raw := range unmatched {
			items = append(items, buildTUIPageItem(raw))
		}
	}

	return items, starts
}

func productGroupLabel(p api.Product) string {
	if c := strings.TrimSpace(filter.CleanText(filter.Deref(p.Category))); c != "" {
		return humanizeLabel(c)
	}
	return "Uncategorized"
}

func buildTUIProductItem(p api.Product, group string, pages []api.RawItem, inCart int, busy string) tuiProductItem {
	title := filter.CleanText(p.Name)
	if title == "" {
		title = "Product #" + api.FormatID(p.ID)
	}

	descParts := []string{display.FormatPrice(filter.Deref(p.Currency), p.LowestPrice)}
	if inCart > 0 {
		descParts = append(descParts, fmt.Sprintf("in cart: %d", inCart))
	}
	if busy != "" {
		descParts = append(descParts, busy+"...")
	}
	if len(pages) > 1 {
		descParts = append(descParts, fmt.Sprintf("%d pages", len(pages)))
	}

	filterTokens := []string{
		title,
		"#" + api.FormatID(p.ID),
		filter.CleanText(filter.Deref(p.Category)),
		p.SourceURL,
		group,
	}

	return tuiProductItem{
		product:     p,
		pages:       pages,
		group:       group,
		title:       title,
		description: strings.Join(descParts, "  •  "),
		filterValue: strings.ToLower(strings.Join(filterTokens, " ")),
	}
}

func buildTUIPageItem(raw api.RawItem) tuiPageItem {
	title := pageTitle(raw)
	return tuiPageItem{
		raw:         raw,
		title:       title,
		description: pagePrice(raw) + "  •  no product",
		filterValue: strings.ToLower(title + " " + raw.URL),
	}
}

func pageTitle(raw api.RawItem) string {
	if title := filter.CleanText(filter.Deref(raw.Title)); title != "" {
		return title
	}
	return raw.URL
}

func pagePrice(raw api.RawItem) string {
	if !raw.Price.Valid {
		return "no price"
	}
	return display.FormatPrice(filter.Deref(raw.Currency), raw.Price.Decimal)
}

func wrapText(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	if width < 12 {
		width = 12
	}

	line := words[0]
	lines := make([]string, 0, len(words)/6+1)
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func canonicalizeTUIOptions(opts filter.Options) filter.Options {
	opts.Sort = canonicalSortMode(opts.Sort)
	if opts.Category != "" {
		opts.Category = strings.TrimSpace(opts.Category)
	}
	return opts
}

func canonicalSortMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "price", "price-asc", "cheapest":
		return filter.SortPriceAsc
	case "price-desc", "priciest":
		return filter.SortPriceDesc
	case "name", "name-asc":
		return filter.SortNameAsc
	case "name-desc":
		return filter.SortNameDesc
	default:
		return filter.SortRelevance
	}
}

func buildCategoryChoices(products []api.Product, current string) []string {
	counts := filter.Categories(products)

	values := make([]string, 0, len(counts))
	for value := range counts {
		values = append(values, value)
	}
	if current != "" && indexOfStringFold(values, current) < 0 {
		values = append(values, current)
	}
	sort.Strings(values)
	sort.SliceStable(values, func(i, j int) bool {
		left := counts[values[i]]
		right := counts[values[j]]
		if left != right {
			return left > right
		}
		return strings.ToLower(values[i]) < strings.ToLower(values[j])
	})
	return append([]string{""}, values...)
}

func buildLimitChoices(current int) []int {
	values := []int{0, 10, 25, 50, 100}
	if current > 0 && indexOfInt(values, current) < 0 {
		values = append(values, current)
		sort.Ints(values)
	}
	return values
}

func indexOfString(values []string, target string) int {
	for i, value := range values {
		if value == target {
			return i
		}
	}
	return -1
}

func indexOfStringFold(values []string, target string) int {
	for i, value := range values {
		if strings.EqualFold(value, target) {
			return i
		}
	}
	return -1
}

func indexOfInt(values []int, target int) int {
	for i, value := range values {
		if value == target {
			return i
		}
	}
	return -1
}

func findItemIndexByID(items []list.Item, stableID string) int {
	for i, item := range items {
		if stableIDForItem(item) == stableID {
			return i
		}
	}
	return -1
}

func firstEntryIndex(items []list.Item) int {
	return firstEntryIndexFrom(items, 0)
}

func firstEntryIndexFrom(items []list.Item, start int) int {
	for i := start; i < len(items); i++ {
		switch items[i].(type) {
		case tuiProductItem, tuiPageItem:
			return i
		}
	}
	return -1
}

func stableIDForItem(item list.Item) string {
	switch value := item.(type) {
	case tuiProductItem:
		return stableIDForProduct(value.product)
	case tuiPageItem:
		return stableIDForPage(value.raw)
	case tuiGroupItem:
		return stableIDForGroup(value.name)
	default:
		return ""
	}
}

func stableIDForProduct(p api.Product) string {
	return "product:" + api.FormatID(p.ID)
}

func stableIDForPage(raw api.RawItem) string {
	return "page:" + raw.URL
}

func stableIDForGroup(group string) string {
	return "group:" + strings.ToLower(strings.TrimSpace(group))
}

func humanizeLabel(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "Other"
	}
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	words := strings.Fields(strings.ToLower(s))
	for i, word := range words {
		if len(word) == 0 {
			continue
		}
		r := []rune(word)
		words[i] = strings.ToUpper(string(r[:1])) + string(r[1:])
	}
	return strings.Join(words, " ")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
