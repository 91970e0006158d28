package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/tayloree/pricecli/internal/catalog"
	"golang.org/x/term"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [TERM]",
	Short: "Browse scraped prices and edit the cart interactively",
	Long: "Searches the store for TERM (or scrapes the configured stores when no term is given)\n" +
		"and opens a two-pane browser. Cart changes show up immediately and are rolled back\n" +
		"if the backend rejects them.",
	Example: `  pricecli tui "ssd 1tb"
  pricecli tui "rtx 4060" --sort price-asc --max-price 2500
  pricecli tui memoria --json`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	registerViewFlags(tuiCmd.Flags())
	registerScrapeFlags(tuiCmd.Flags())
	tuiCmd.Flags().StringVar(&flagSearchURL, "search-url", "", "Explicit search results URL (overrides the template)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	opts, err := viewOptions(query)
	if err != nil {
		return err
	}
	temperature, err := temperatureFlag(cmd)
	if err != nil {
		return err
	}
	if !flagJSON && !isInteractiveSession(cmd.InOrStdin(), cmd.OutOrStdout()) {
		return invalidArgsError(
			"`pricecli tui` requires an interactive terminal",
			`Use `+"`pricecli search \"ssd\" --json`"+` in pipelines.`,
		)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	label := "configured stores"
	if query != "" {
		label = fmt.Sprintf("search %q", query)
	} else if flagSearchURL != "" {
		label = flagSearchURL
	}
	searchURL := flagSearchURL
	saveCategory := flagSaveCategory
	concurrency := flagConcurrency
	load := func(ctx context.Context) (*catalog.Result, error) {
		if query != "" || searchURL != "" {
			return a.catalog.Search(ctx, catalog.SearchOptions{
				Term:        query,
				SearchURL:   searchURL,
				Temperature: temperature,
				Category:    saveCategory,
				Concurrency: concurrency,
			})
		}
		return a.catalog.Scrape(ctx, a.cfg.Stores, catalog.ScrapeOptions{
			Category:    saveCategory,
			Concurrency: concurrency,
			Temperature: temperature,
		})
	}

	if flagJSON {
		result, err := load(cmd.Context())
		if err != nil {
			return catalogError(err)
		}
		if result.Query == "" {
			result.Query = query
		}
		return renderResult(cmd, a, result, opts)
	}

	// The alternate screen owns the terminal until the program exits.
	a.logger.SetOutput(io.Discard)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	model := newLoadingPriceTUIModel(tuiLoadConfig{
		ctx:         ctx,
		label:       label,
		load:        load,
		cart:        a.newCart(),
		initialOpts: opts,
	})

	program := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("running interface: %w", err)
	}
	if m, ok := final.(priceTUIModel); ok && m.fatalErr != nil {
		return catalogError(m.fatalErr)
	}
	return nil
}

func isInteractiveSession(stdin io.Reader, stdout io.Writer) bool {
	inputFile, ok := stdin.(*os.File)
	if !ok {
		return false
	}
	if !term.IsTerminal(int(inputFile.Fd())) {
		return false
	}
	return isTTY(stdout)
}
