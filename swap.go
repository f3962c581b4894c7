// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package futarchy

import (
	"slices"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/futarchy/arbitrage"
	"github.com/luxfi/futarchy/liquidity"
	"github.com/luxfi/futarchy/metrics"
)

// SwapReceipt is the result of a user swap and the rebalancing trade run
// right after it.
type SwapReceipt struct {
	Swap *liquidity.SwapResult `json:"swap"`

	// Arbitrage is the executed rebalancing trade. Its profit, in stable, is
	// paid to the swapper.
	Arbitrage arbitrage.Quote `json:"arbitrage"`
	// Change holds, per outcome, the conditional tokens left over after the
	// complete set was formed. It is stable for a SpotToConditional trade
	// and asset for a ConditionalToSpot trade.
	Change []uint64 `json:"change,omitempty"`
}

// SwapSpot swaps [amountIn] on the spot pool [poolID] and rebalances the
// conditional pools against it.
func (e *Engine) SwapSpot(now time.Time, poolID ids.ID, dir liquidity.Direction, amountIn, minAmountOut uint64) (*SwapReceipt, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	var receipt *SwapReceipt
	err := e.atomic("swapSpot", func() error {
		pool, err := e.state.GetSpotPool(poolID)
		if err != nil {
			return err
		}
		conditionals, err := e.state.GetConditionalPools(poolID)
		if err != nil {
			return err
		}
		result, err := pool.Swap(now, dir, amountIn, minAmountOut)
		if err != nil {
			return err
		}
		receipt, err = e.rebalance(now, pool, conditionals)
		if err != nil {
			return err
		}
		receipt.Swap = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.MarkSwap(metrics.VenueSpot, amountIn)
	e.markArbitrage(poolID, receipt.Arbitrage)
	return receipt, nil
}

// SwapConditional swaps [amountIn] on the [outcome] pool of the proposal
// trading on [poolID] and rebalances every venue.
func (e *Engine) SwapConditional(now time.Time, poolID ids.ID, outcome uint32, dir liquidity.Direction, amountIn, minAmountOut uint64) (*SwapReceipt, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	var receipt *SwapReceipt
	err := e.atomic("swapConditional", func() error {
		pool, err := e.state.GetSpotPool(poolID)
		if err != nil {
			return err
		}
		if !pool.HasActiveProposal {
			return liquidity.ErrNoActiveProposal
		}
		conditionals, err := e.state.GetConditionalPools(poolID)
		if err != nil {
			return err
		}
		if int(outcome) >= len(conditionals) || conditionals[outcome].Outcome != outcome {
			return ErrUnknownVenue
		}
		result, err := conditionals[outcome].Swap(now, dir, amountIn, minAmountOut)
		if err != nil {
			return err
		}
		receipt, err = e.rebalance(now, pool, conditionals)
		if err != nil {
			return err
		}
		receipt.Swap = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.MarkSwap(metrics.VenueConditional, amountIn)
	e.markArbitrage(poolID, receipt.Arbitrage)
	return receipt, nil
}

func (e *Engine) markArbitrage(poolID ids.ID, quote arbitrage.Quote) {
	e.metrics.MarkArbitrage(quote.Amount, quote.Profit)
	if quote.Amount == 0 {
		return
	}
	e.log.Debug("rebalanced pools",
		log.Stringer("poolID", poolID),
		log.Stringer("direction", quote.Direction),
		log.Uint64("amount", quote.Amount),
		log.Uint64("profit", quote.Profit),
	)
}

// rebalance executes the optimal arbitrage trade across [spot] and
// [conditionals] and writes every pool back. With no proposal trading it only
// writes the spot pool.
func (e *Engine) rebalance(now time.Time, spot *liquidity.SpotPool, conditionals []*liquidity.ConditionalPool) (*SwapReceipt, error) {
	receipt := &SwapReceipt{Arbitrage: arbitrage.NoTrade}
	if spot.HasActiveProposal && len(conditionals) > 0 {
		receipt.Arbitrage = arbitrage.Optimize(venues(now, spot, conditionals))
	}

	if quote := receipt.Arbitrage; quote.Amount > 0 {
		var err error
		receipt.Change, err = execute(now, spot, conditionals, quote)
		if err != nil {
			return nil, err
		}
	}

	if err := e.state.PutSpotPool(spot); err != nil {
		return nil, err
	}
	for _, cond := range conditionals {
		if err := e.state.PutConditionalPool(cond); err != nil {
			return nil, err
		}
	}
	return receipt, nil
}

func venues(now time.Time, spot *liquidity.SpotPool, conditionals []*liquidity.ConditionalPool) (arbitrage.Pool, []arbitrage.Pool) {
	pools := make([]arbitrage.Pool, len(conditionals))
	for i, cond := range conditionals {
		pools[i] = arbitrage.Pool{
			AssetReserve:  cond.AssetReserve,
			StableReserve: cond.StableReserve,
			FeeBps:        cond.FeeBps,
		}
	}
	return arbitrage.Pool{
		AssetReserve:  spot.AssetReserve,
		StableReserve: spot.StableReserve,
		FeeBps:        spot.CurrentFeeBps(now),
	}, pools
}

// execute trades [quote] through the pools and returns the per-outcome
// change. The pools are mutated in place.
func execute(now time.Time, spot *liquidity.SpotPool, conditionals []*liquidity.ConditionalPool, quote arbitrage.Quote) ([]uint64, error) {
	outs := make([]uint64, len(conditionals))
	switch quote.Direction {
	case arbitrage.SpotToConditional:
		bought, err := spot.SwapStableForAsset(now, quote.Amount, 0)
		if err != nil {
			return nil, err
		}
		for i, cond := range conditionals {
			result, err := cond.SwapAssetForStable(now, bought.AmountOut, 0)
			if err != nil {
				return nil, err
			}
			outs[i] = result.AmountOut
		}
	default:
		for i, cond := range conditionals {
			result, err := cond.SwapStableForAsset(now, quote.Amount, 0)
			if err != nil {
				return nil, err
			}
			outs[i] = result.AmountOut
		}
		if _, err := spot.SwapAssetForStable(now, slices.Min(outs), 0); err != nil {
			return nil, err
		}
	}

	set := slices.Min(outs)
	for i := range outs {
		outs[i] -= set
	}
	return outs, nil
}
