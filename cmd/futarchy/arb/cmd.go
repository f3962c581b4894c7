// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arb

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/luxfi/futarchy/arbitrage"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "arb",
		Short: "Quotes the rebalancing trade between a spot pool and its conditional pools",
		RunE:  arbFunc,
	}
	flags := c.Flags()
	AddFlags(flags)
	return c
}

func arbFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}
	return Print(c.OutOrStdout(), config.Spot, config.Conditionals)
}

// Print writes the optimal trade and the legs it executes.
func Print(w io.Writer, spot arbitrage.Pool, conditionals []arbitrage.Pool) error {
	quote := arbitrage.Optimize(spot, conditionals)
	fmt.Fprintf(w, "direction=%s venue=%s amount=%d profit=%d\n",
		quote.Direction, quote.Venue, quote.Amount, quote.Profit)
	if quote.Amount == 0 {
		return nil
	}

	outs, _ := arbitrage.Simulate(spot, conditionals, quote.Direction, quote.Amount)
	unit := "stable"
	if quote.Direction == arbitrage.ConditionalToSpot {
		unit = "asset"
	}

	table := tablewriter.NewWriter(w)
	table.Header("Outcome", "Asset", "Stable", "Fee", "Out ("+unit+")")
	for i, cond := range conditionals {
		if err := table.Append(
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%d", cond.AssetReserve),
			fmt.Sprintf("%d", cond.StableReserve),
			fmt.Sprintf("%d", cond.FeeBps),
			fmt.Sprintf("%d", outs[i]),
		); err != nil {
			return err
		}
	}
	return table.Render()
}
