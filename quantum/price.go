// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package quantum

import (
	"time"

	"github.com/luxfi/futarchy/liquidity"
)

// PriceSource says which oracle a resolved price came from.
type PriceSource uint8

const (
	SpotSource PriceSource = iota
	ConditionalSource
)

func (s PriceSource) String() string {
	if s == ConditionalSource {
		return "conditional"
	}
	return "spot"
}

// ResolvedPrice is a governance-grade price read.
type ResolvedPrice struct {
	Price   uint64      `json:"price"`
	Source  PriceSource `json:"source"`
	Outcome uint32      `json:"outcome"`
}

// ResolvePrice returns the long-window price of [spot] at [now]. While a
// proposal is trading and the conditional pools hold more of the liquidity
// than the pool's oracle threshold, the price comes from the leading
// conditional pool, the one with the highest average. Otherwise the spot
// average is authoritative; it is frozen while a proposal trades.
//
// ResolvePrice does not mutate its arguments.
func ResolvePrice(spot *liquidity.SpotPool, conditionals []*liquidity.ConditionalPool, now time.Time) (ResolvedPrice, error) {
	ratioBps := uint32(spot.ConditionalLiquidityRatioPercent) * 100
	if spot.HasActiveProposal && len(conditionals) > 0 && ratioBps > uint32(spot.OracleConditionalThresholdBps) {
		return leadingConditional(conditionals, now)
	}

	price, err := spot.Oracle.LongTWAP(now)
	if err != nil {
		return ResolvedPrice{}, err
	}
	return ResolvedPrice{Price: price, Source: SpotSource}, nil
}

// leadingConditional returns the highest long-window average among
// [conditionals]. Ties go to the lowest outcome. Every pool's oracle must be
// ready, so a proposal younger than the minimum history has no price.
func leadingConditional(conditionals []*liquidity.ConditionalPool, now time.Time) (ResolvedPrice, error) {
	best := ResolvedPrice{Source: ConditionalSource}
	found := false
	for _, cond := range conditionals {
		price, err := cond.Oracle.LongTWAP(now)
		if err != nil {
			return ResolvedPrice{}, err
		}
		if !found || price > best.Price || (price == best.Price && cond.Outcome < best.Outcome) {
			best.Price, best.Outcome = price, cond.Outcome
			found = true
		}
	}
	return best, nil
}
