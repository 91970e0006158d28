package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/tayloree/pricecli/internal/catalog"
)

var (
	flagSearchURL string
	flagPages     int
	flagMaxURLs   int
)

var searchCmd = &cobra.Command{
	Use:   "search [TERM]",
	Short: "Search a store for a term and scrape the matching products",
	Long: "Crawls the store's search result pages for TERM, keeps the product URLs that look\n" +
		"relevant (more or fewer depending on --temperature) and scrapes them.\n" +
		"The search page comes from --search-url when given, else from the configured template.",
	Example: `  pricecli search "ssd 1tb"
  pricecli search "rtx 4060" --temperature 0.6 --sort price-asc
  pricecli search --search-url "https://www.pichau.com.br/search?q=ddr5" --pages 2`,
	Args: cobra.ArbitraryArgs,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	registerViewFlags(searchCmd.Flags())
	registerScrapeFlags(searchCmd.Flags())
	searchCmd.Flags().StringVar(&flagSearchURL, "search-url", "", "Explicit search results URL (overrides the template)")
	searchCmd.Flags().IntVar(&flagPages, "pages", 0, "Result pages to crawl (default from config)")
	searchCmd.Flags().IntVar(&flagMaxURLs, "max-urls", 0, "Maximum product URLs to collect (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	term := strings.TrimSpace(strings.Join(args, " "))
	if term == "" && strings.TrimSpace(flagSearchURL) == "" {
		return invalidArgsError(
			"a search term or --search-url is required",
			`pricecli search "ssd 1tb"`,
			"pricecli search --search-url https://www.kabum.com.br/busca/ssd",
		)
	}
	if flagPages < 0 || flagMaxURLs < 0 {
		return invalidArgsError("--pages and --max-urls must not be negative", `pricecli search ssd --pages 2`)
	}

	opts, err := viewOptions(term)
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

	result, err := a.catalog.Search(cmd.Context(), catalog.SearchOptions{
		Term:        term,
		SearchURL:   flagSearchURL,
		MaxPages:    flagPages,
		MaxURLs:     flagMaxURLs,
		Temperature: temperature,
		Category:    flagSaveCategory,
		Concurrency: flagConcurrency,
	})
	if err != nil {
		return catalogError(err)
	}
	if result.Query == "" {
		result.Query = term
	}
	return renderResult(cmd, a, result, opts)
}
