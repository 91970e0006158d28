package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tayloree/pricecli/internal/display"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [BASE_URL...]",
	Short: "Find product page URLs on store sites without scraping them",
	Long: "Crawls each store root (sitemap and links) in parallel and prints the union of\n" +
		"product URLs found. With no URL the configured store list is used.",
	Example: `  pricecli discover https://www.kabum.com.br/
  pricecli discover --json`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	allowBareFlags(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	bases := args
	if len(bases) == 0 {
		bases = a.cfg.Stores
	}

	urls, err := a.catalog.Discover(cmd.Context(), bases)
	if err != nil {
		return upstreamError("crawling stores", err)
	}
	if len(urls) == 0 {
		return notFoundError(
			"no product URLs found on the given stores",
			"Check the store URL, or add discovery.include_patterns to pricecli.yaml.",
		)
	}

	if flagJSON {
		return display.PrintURLsJSON(cmd.OutOrStdout(), urls)
	}
	display.PrintURLs(cmd.OutOrStdout(), urls)
	return nil
}
