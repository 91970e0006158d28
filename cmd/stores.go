package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"github.com/tayloree/pricecli/internal/display"
)

type storeJSON struct {
	Host string `json:"host"`
	URL  string `json:"url"`
}

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "List the store roots crawled when no URL is given",
	Long:  "Shows the configured store list (the `stores` key of pricecli.yaml, or the built-in defaults).",
	Example: `  pricecli stores
  pricecli stores --json`,
	Args: noPositionalArgs,
	RunE: runStores,
}

func init() {
	rootCmd.AddCommand(storesCmd)
	allowBareFlags(storesCmd)
}

func runStores(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if len(a.cfg.Stores) == 0 {
		return notFoundError(
			"no stores configured",
			"Add a `stores:` list to pricecli.yaml, or pass URLs directly.",
		)
	}

	out := make([]storeJSON, 0, len(a.cfg.Stores))
	for _, raw := range a.cfg.Stores {
		out = append(out, storeJSON{Host: storeHost(raw), URL: raw})
	}

	if flagJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
	}

	display.PrintStatus(cmd.OutOrStdout(), fmt.Sprintf("%d configured stores", len(out)))
	for i, s := range out {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n   %s\n", i+1, s.Host, s.URL)
	}
	return nil
}

func storeHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
