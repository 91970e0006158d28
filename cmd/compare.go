package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/catalog"
	"github.com/tayloree/pricecli/internal/display"
	"github.com/tayloree/pricecli/internal/filter"
)

type compareStoreResult struct {
	Rank            int    `json:"rank"`
	Host            string `json:"host"`
	URL             string `json:"url"`
	MatchedProducts int    `json:"matchedProducts"`
	LowestPrice     string `json:"lowestPrice"`
	Currency        string `json:"currency,omitempty"`
	TopProduct      string `json:"topProduct"`
	TopProductID    int64  `json:"topProductId"`

	lowest decimal.Decimal
}

var compareCmd = &cobra.Command{
	Use:   "compare QUERY [STORE_URL...]",
	Short: "Compare stores by the cheapest product matching a query",
	Long: "Scrapes each store root separately for QUERY and ranks the stores by their\n" +
		"cheapest matching product. With no store URL the configured store list is used.",
	Example: `  pricecli compare "ssd 1tb"
  pricecli compare "rtx 4060" https://www.kabum.com.br/ https://www.pichau.com.br/
  pricecli compare "fonte 650w" --max-price 600 --json`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	registerViewFlags(compareCmd.Flags())
	registerScrapeFlags(compareCmd.Flags())
}

func runCompare(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])
	if query == "" {
		return invalidArgsError("a non-empty QUERY is required", `pricecli compare "ssd 1tb"`)
	}
	opts, err := viewOptions(query)
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

	stores := args[1:]
	if len(stores) == 0 {
		stores = a.cfg.Stores
	}

	results := make([]compareStoreResult, 0, len(stores))
	errCount := 0
	for _, store := range stores {
		result, scrapeErr := a.catalog.Scrape(cmd.Context(), []string{store}, catalog.ScrapeOptions{
			Query:       query,
			Category:    flagSaveCategory,
			Concurrency: flagConcurrency,
			Temperature: temperature,
		})
		if scrapeErr != nil {
			if !errors.Is(scrapeErr, catalog.ErrNoProductURLs) {
				errCount++
			}
			a.logger.Debug("Skipping store", "store", store, "error", scrapeErr)
			continue
		}

		matched := filter.Apply(onlyMatching(result.Products, query), opts)
		if len(matched) == 0 {
			continue
		}

		cheapest := matched[0]
		for _, p := range matched[1:] {
			if p.LowestPrice.LessThan(cheapest.LowestPrice) {
				cheapest = p
			}
		}

		results = append(results, compareStoreResult{
			Host:            storeHost(store),
			URL:             store,
			MatchedProducts: len(matched),
			LowestPrice:     cheapest.LowestPrice.StringFixed(2),
			Currency:        filter.Deref(cheapest.Currency),
			TopProduct:      topProductName(cheapest),
			TopProductID:    cheapest.ID,
			lowest:          cheapest.LowestPrice,
		})
	}

	if len(results) == 0 {
		if errCount == len(stores) {
			return upstreamError("scraping stores", fmt.Errorf("all %d store scrapes failed", len(stores)))
		}
		return notFoundError(
			fmt.Sprintf("no products match %q at any store", query),
			"Relax filters like --category/--min-price/--max-price, or raise --temperature.",
		)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].lowest.Equal(results[j].lowest) {
			return results[i].lowest.LessThan(results[j].lowest)
		}
		return results[i].MatchedProducts > results[j].MatchedProducts
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	if flagJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(results)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nStore comparison for %q (%d matching store(s))\n\n", query, len(results))
	for _, r := range results {
		fmt.Fprintf(
			cmd.OutOrStdout(),
			"%d. %s\n   matches: %d | lowest: %s\n   top: #%d %s\n\n",
			r.Rank,
			r.Host,
			r.MatchedProducts,
			display.FormatPrice(r.Currency, r.lowest),
			r.TopProductID,
			r.TopProduct,
		)
	}
	if errCount > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "note: skipped %d store(s) due to upstream errors.\n", errCount)
	}
	return nil
}

// onlyMatching drops products whose name has no query token at all, so a
// store is never ranked by an unrelated item kept by the scrape fallback.
func onlyMatching(products []api.Product, query string) []api.Product {
	out := make([]api.Product, 0, len(products))
	for _, p := range products {
		if filter.Score(p.Name, query) > 0 {
			out = append(out, p)
		}
	}
	return out
}

func topProductName(p api.Product) string {
	if name := filter.CleanText(p.Name); name != "" {
		return name
	}
	return "Product #" + api.FormatID(p.ID)
}
