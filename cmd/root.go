package cmd

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/cart"
	"github.com/tayloree/pricecli/internal/catalog"
	"github.com/tayloree/pricecli/internal/config"
	"github.com/tayloree/pricecli/internal/display"
	"github.com/tayloree/pricecli/internal/filter"
)

var (
	flagAPI          string
	flagLogLevel     string
	flagJSON         bool
	flagQuery        string
	flagCategory     string
	flagSaveCategory string
	flagMinPrice     string
	flagMaxPrice     string
	flagSort         string
	flagLimit        int
	flagConcurrency  int
	flagTemperature  float64
	flagRaw          bool
)

var rootCmd = &cobra.Command{
	Use:   "pricecli [URL...]",
	Short: "Scrape, rank and compare hardware prices",
	Long: "Terminal client for the price-scraping backend.\n" +
		"Pass product URLs or store roots; with no URL the configured store list is crawled.\n" +
		"Products are ranked against --query and can be narrowed by price, category and sort.\n\n" +
		"Agent-friendly mode: minor syntax issues are auto-corrected when intent is clear " +
		"(for example: -query ssd, query=ssd, --qeury ssd).",
	Example: `  pricecli https://www.kabum.com.br/produto/123/ssd --json
  pricecli --query "ssd 1tb" --max-price 500 --sort price-asc
  pricecli search "memoria ddr5" --temperature 0.5
  pricecli discover https://www.pichau.com.br/
  pricecli cart add 7 --qty 2
  pricecli tui "rtx 4060"`,
	Args: scrapeArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetFlagErrorFunc(flagError)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagAPI, "api", "", "Backend base URL (default http://localhost:8000)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&flagJSON, "json", false, "Output as JSON")

	registerViewFlags(rootCmd.Flags())
	registerScrapeFlags(rootCmd.Flags())
	rootCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "Rank and narrow URLs and products by keyword")
}

// Execute runs the root command.
func Execute() {
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

func runCLI(args []string, stdout, stderr io.Writer) int {
	resetCLIState()

	normalizedArgs, notes := normalizeCLIArgs(args)
	for _, note := range notes {
		fmt.Fprintf(stderr, "note: %s\n", note)
	}

	if len(normalizedArgs) == 0 {
		if err := printQuickStart(stdout, !isTTY(stdout)); err != nil {
			cliErr := classifyCLIError(err)
			fmt.Fprintln(stderr, formatCLIErrorText(cliErr))
			return cliErr.ExitCode
		}
		return ExitSuccess
	}

	if shouldAutoJSON(normalizedArgs, isTTY(stdout)) {
		normalizedArgs = append(normalizedArgs, "--json")
	}

	setCommandIO(rootCmd, stdout, stderr)
	rootCmd.SetArgs(normalizedArgs)

	if err := rootCmd.Execute(); err != nil {
		cliErr := classifyCLIError(err)
		if hasJSONPreference(normalizedArgs) {
			if jerr := printCLIErrorJSON(stderr, cliErr); jerr != nil {
				fmt.Fprintln(stderr, formatCLIErrorText(classifyCLIError(jerr)))
				return ExitInternal
			}
		} else {
			fmt.Fprintln(stderr, formatCLIErrorText(cliErr))
		}
		return cliErr.ExitCode
	}
	return ExitSuccess
}

func setCommandIO(cmd *cobra.Command, stdout, stderr io.Writer) {
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	for _, child := range cmd.Commands() {
		setCommandIO(child, stdout, stderr)
	}
}

func resetCLIState() {
	flagAPI = ""
	flagLogLevel = ""
	flagJSON = false
	flagQuery = ""
	flagCategory = ""
	flagSaveCategory = ""
	flagMinPrice = ""
	flagMaxPrice = ""
	flagSort = ""
	flagLimit = 0
	flagConcurrency = 0
	flagTemperature = 0
	flagRaw = false
	flagSearchURL = ""
	flagPages = 0
	flagMaxURLs = 0
	flagQty = 1
	resetChangedFlags(rootCmd)
}

// resetChangedFlags restores every flag to its default so repeated
// in-process runs see a clean command tree.
func resetChangedFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetChangedFlags(child)
	}
}

func registerViewFlags(f *pflag.FlagSet) {
	f.StringVarP(&flagCategory, "category", "c", "", "Show only a product category (e.g., ssd, gpu, memoria)")
	f.StringVar(&flagMinPrice, "min-price", "", "Hide products cheaper than this")
	f.StringVar(&flagMaxPrice, "max-price", "", "Hide products pricier than this")
	f.StringVar(&flagSort, "sort", "", "Sort by relevance, price-asc, price-desc, name-asc or name-desc")
	f.IntVarP(&flagLimit, "limit", "n", 0, "Limit number of results (0 = all)")
}

func registerScrapeFlags(f *pflag.FlagSet) {
	f.StringVar(&flagSaveCategory, "save-category", "", "Category the backend stores scraped products under")
	f.IntVar(&flagConcurrency, "concurrency", 0, "Concurrent page fetches on the backend (default from config)")
	f.Float64VarP(&flagTemperature, "temperature", "t", 0, "Fuzziness of the relevance gate, 0 strict to 1 passthrough")
	f.BoolVar(&flagRaw, "raw", false, "Also list every scraped page and the product it links to")
}

type app struct {
	cfg     *config.Config
	logger  *log.Logger
	client  *api.Client
	catalog *catalog.Service
}

func newApp(cmd *cobra.Command) (*app, error) {
	v := config.New()
	if f := cmd.Flag("api"); f != nil {
		_ = v.BindPFlag("api.base_url", f)
	}
	if f := cmd.Flag("log-level"); f != nil {
		_ = v.BindPFlag("log.level", f)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, invalidArgsError(
			err.Error(),
			"Check pricecli.yaml or the PRICECLI_* environment variables.",
		)
	}

	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Prefix: "pricecli"})
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.WarnLevel
	}
	logger.SetLevel(level)

	client := api.NewClientWithBaseURL(cfg.API.BaseURL, cfg.API.Timeout)
	logger.Debug("Using backend", "url", client.BaseURL(), "timeout", cfg.API.Timeout)

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		catalog: catalog.New(client, logger, cfg.Catalog()),
	}, nil
}

func (a *app) newCart() *cart.Sync {
	return cart.New(a.client, a.logger, cart.WithRefreshRetry(a.cfg.Cart.RefreshAttempts, defaultRefreshDelay))
}

func parsePriceFlag(name, raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}, invalidArgsError(
			fmt.Sprintf("invalid value for --%s: %q", name, raw),
			"pricecli --min-price 100 --max-price 499.90",
		)
	}
	return decimal.NewNullDecimal(d), nil
}

func viewOptions(query string) (filter.Options, error) {
	if flagSort != "" && !filter.ValidSortMode(flagSort) {
		return filter.Options{}, invalidArgsError(
			"invalid value for --sort (use relevance, price-asc, price-desc, name-asc, or name-desc)",
			"pricecli --query ssd --sort price-asc",
			"pricecli --sort name-asc",
		)
	}
	minPrice, err := parsePriceFlag("min-price", flagMinPrice)
	if err != nil {
		return filter.Options{}, err
	}
	maxPrice, err := parsePriceFlag("max-price", flagMaxPrice)
	if err != nil {
		return filter.Options{}, err
	}
	if minPrice.Valid && maxPrice.Valid && minPrice.Decimal.GreaterThan(maxPrice.Decimal) {
		return filter.Options{}, invalidArgsError(
			"--min-price must not exceed --max-price",
			"pricecli --min-price 100 --max-price 500",
		)
	}
	if flagLimit < 0 {
		return filter.Options{}, invalidArgsError("--limit must not be negative", "pricecli --limit 10")
	}

	sortMode := flagSort
	if sortMode == "" {
		sortMode = filter.DefaultSort(query)
	}
	return filter.Options{
		Category: flagCategory,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     sortMode,
		Limit:    flagLimit,
	}, nil
}

func temperatureFlag(cmd *cobra.Command) (*float64, error) {
	f := cmd.Flags().Lookup("temperature")
	if f == nil || !f.Changed {
		return nil, nil
	}
	if math.IsNaN(flagTemperature) || flagTemperature < 0 || flagTemperature > 1 {
		return nil, invalidArgsError(
			"--temperature must be between 0 and 1",
			"pricecli search ssd --temperature 0.3",
		)
	}
	t := flagTemperature
	return &t, nil
}

func runScrape(cmd *cobra.Command, args []string) error {
	opts, err := viewOptions(flagQuery)
	if err != nil {
		return err
	}
	temperature, err := temperatureFlag(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	urls := args
	if len(urls) == 0 {
		urls = a.cfg.Stores
		a.logger.Info("No URL given, crawling configured stores", "stores", len(urls))
	}

	result, err := a.catalog.Scrape(cmd.Context(), urls, catalog.ScrapeOptions{
		Query:       flagQuery,
		Category:    flagSaveCategory,
		Concurrency: flagConcurrency,
		Temperature: temperature,
	})
	if err != nil {
		return catalogError(err)
	}
	return renderResult(cmd, a, result, opts)
}

func catalogError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrNoProductURLs):
		return notFoundError(
			err.Error(),
			"Pass product pages directly, e.g. https://www.kabum.com.br/produto/123/...",
			"pricecli discover https://www.kabum.com.br/",
		)
	case errors.Is(err, catalog.ErrNoSearchTarget):
		return invalidArgsError(err.Error(), `pricecli search "ssd 1tb"`, "pricecli search --search-url https://www.kabum.com.br/busca/ssd")
	default:
		return upstreamError("scraping products", err)
	}
}

func renderResult(cmd *cobra.Command, a *app, result *catalog.Result, opts filter.Options) error {
	products := filter.Apply(result.Products, opts)
	if len(result.Products) > 0 && len(products) == 0 {
		return notFoundError(
			"no products match your filters",
			"Relax filters like --category/--min-price/--max-price.",
		)
	}

	inCart := cartQuantities(cmd, a)

	if flagJSON {
		return display.PrintResultJSON(cmd.OutOrStdout(), result, products, inCart)
	}
	display.PrintResult(cmd.OutOrStdout(), result, products, inCart)
	if flagRaw {
		display.PrintRawItems(cmd.OutOrStdout(), result.RawItems, result.Links)
	}
	return nil
}

// cartQuantities is best effort: a catalog view still renders when the cart
// store is unreachable.
func cartQuantities(cmd *cobra.Command, a *app) map[int64]int {
	state, err := a.newCart().Refresh(cmd.Context())
	if err != nil {
		a.logger.Debug("Cart unavailable, skipping in-cart counts", "error", err)
		return nil
	}
	out := make(map[int64]int, len(state.Items))
	for _, item := range state.Items {
		out[item.ProductID] += item.Quantity
	}
	return out
}
