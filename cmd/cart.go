package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/cart"
	"github.com/tayloree/pricecli/internal/display"
)

const defaultRefreshDelay = 300 * time.Millisecond

var flagQty int

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Show the backend cart",
	Example: `  pricecli cart
  pricecli cart add 7 --qty 2
  pricecli cart remove 12`,
	Args: noPositionalArgs,
	RunE: runCartShow,
}

var cartAddCmd = &cobra.Command{
	Use:   "add PRODUCT_ID",
	Short: "Add a product to the cart, or bump its quantity",
	Example: `  pricecli cart add 7
  pricecli cart add 7 --qty 3 --json`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: runCartAdd,
}

var cartRemoveCmd = &cobra.Command{
	Use:     "remove ITEM_ID",
	Aliases: []string{"rm"},
	Short:   "Remove a cart line by its item id",
	Example: `  pricecli cart remove 12`,
	Args:    usageArgs(cobra.ExactArgs(1)),
	RunE:    runCartRemove,
}

func init() {
	rootCmd.AddCommand(cartCmd)
	cartCmd.AddCommand(cartAddCmd, cartRemoveCmd)

	cartAddCmd.Flags().IntVar(&flagQty, "qty", 1, "Units to add")
}

func runCartShow(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	state, err := a.newCart().Refresh(cmd.Context())
	if err != nil {
		return upstreamError("loading cart", err)
	}
	return printCart(cmd, state)
}

func runCartAdd(cmd *cobra.Command, args []string) error {
	productID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || productID < 1 {
		return invalidArgsError(
			fmt.Sprintf("invalid product id %q", args[0]),
			"pricecli cart add 7",
			"Product ids are shown as #N in scrape and search output.",
		)
	}
	if flagQty < 1 {
		return invalidArgsError("--qty must be at least 1", "pricecli cart add 7 --qty 2")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	replica := a.newCart()
	if _, err := replica.Refresh(cmd.Context()); err != nil {
		return upstreamError("loading cart", err)
	}
	if _, ok := replica.ItemForProduct(productID); !ok {
		replica.Remember(api.Product{ID: productID, Name: "Product #" + api.FormatID(productID)})
	}

	item, err := replica.Add(cmd.Context(), productID, flagQty)
	if err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) {
			return invalidArgsError(err.Error(), "pricecli cart add 7 --qty 2")
		}
		return upstreamError("adding to cart", err)
	}
	a.logger.Info("Added to cart", "product", productID, "item", item.ID, "quantity", item.Quantity)

	return printFreshCart(cmd, a, replica)
}

func runCartRemove(cmd *cobra.Command, args []string) error {
	itemID := strings.TrimSpace(args[0])
	if itemID == "" {
		return invalidArgsError("an item id is required", "pricecli cart remove 12")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	replica := a.newCart()
	if _, err := replica.Refresh(cmd.Context()); err != nil {
		return upstreamError("loading cart", err)
	}

	if err := replica.Remove(cmd.Context(), itemID); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			return notFoundError(
				fmt.Sprintf("cart item not found: %s", itemID),
				"Run `pricecli cart` to list item ids.",
			)
		}
		return upstreamError("removing from cart", err)
	}
	a.logger.Info("Removed from cart", "item", itemID)

	return printFreshCart(cmd, a, replica)
}

// printFreshCart reloads the cart so names and prices come from the backend
// rather than the placeholder snapshot used for the mutation. The local
// replica is shown when the reload fails.
func printFreshCart(cmd *cobra.Command, a *app, local *cart.Sync) error {
	state, err := a.newCart().Refresh(cmd.Context())
	if err != nil {
		a.logger.Warn("Could not reload cart, showing local copy", "error", err)
		state = local.Snapshot()
	}
	return printCart(cmd, state)
}

func printCart(cmd *cobra.Command, state cart.State) error {
	if flagJSON {
		return display.PrintCartJSON(cmd.OutOrStdout(), state)
	}
	display.PrintCart(cmd.OutOrStdout(), state)
	return nil
}
