package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tayloree/pricecli/internal/catalog"
	"github.com/tayloree/pricecli/internal/display"
	"github.com/tayloree/pricecli/internal/filter"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories [URL...]",
	Short: "List product categories found by a scrape",
	Example: `  pricecli categories https://www.kabum.com.br/
  pricecli categories --query ssd --json`,
	RunE: runCategories,
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	allowBareFlags(categoriesCmd)
	categoriesCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "Only count products relevant to this keyword")
}

func runCategories(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	urls := args
	if len(urls) == 0 {
		urls = a.cfg.Stores
	}

	result, err := a.catalog.Scrape(cmd.Context(), urls, catalog.ScrapeOptions{Query: flagQuery})
	if err != nil {
		return catalogError(err)
	}

	cats := filter.Categories(result.Products)
	if len(cats) == 0 {
		return notFoundError(
			"no categorized products found",
			"Scrape with --save-category to tag products, e.g. pricecli --save-category ssd URL",
		)
	}

	if flagJSON {
		return display.PrintCategoriesJSON(cmd.OutOrStdout(), cats)
	}
	display.PrintCategories(cmd.OutOrStdout(), cats)
	return nil
}
