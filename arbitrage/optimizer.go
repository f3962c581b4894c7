// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package arbitrage computes the rebalancing trade between a spot pool and the
// conditional pools of the proposal it is split into.
//
// One unit of spot asset (or stable) is worth one unit of every outcome's
// conditional asset (or stable) at once. A trade therefore either buys asset
// on spot and sells the same amount into every conditional pool, or buys in
// every conditional pool with the same stable amount and sells the complete
// set back on spot. Profit is what is left over after the weakest leg.
package arbitrage

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/futarchy/liquidity"
)

// maxSearchIterations bounds the ternary search. Each iteration shrinks the
// interval to two thirds, so 2^64 collapses in well under this.
const maxSearchIterations = 128

// Direction of an arbitrage trade.
type Direction uint8

const (
	// SpotToConditional buys asset on spot and sells it in every conditional pool.
	SpotToConditional Direction = iota
	// ConditionalToSpot buys asset in every conditional pool and sells the
	// complete set on spot.
	ConditionalToSpot
)

func (d Direction) String() string {
	switch d {
	case SpotToConditional:
		return "spot_to_conditional"
	case ConditionalToSpot:
		return "conditional_to_spot"
	default:
		return "unknown"
	}
}

// Venue where an arbitrage trade starts.
type Venue uint8

const (
	Spot Venue = iota
	Conditional
)

func (v Venue) String() string {
	if v == Spot {
		return "spot"
	}
	return "conditional"
}

// Pool is a constant-product reserve pair with its swap fee.
type Pool struct {
	AssetReserve  uint64 `json:"assetReserve"`
	StableReserve uint64 `json:"stableReserve"`
	FeeBps        uint16 `json:"feeBps"`
}

func (p Pool) empty() bool {
	return p.AssetReserve == 0 || p.StableReserve == 0
}

// Quote is the optimal rebalancing trade. Amount is the stable input. A quote
// with Amount 0 means no trade and always reports the spot venue.
type Quote struct {
	Amount    uint64    `json:"amount"`
	Direction Direction `json:"direction"`
	Profit    uint64    `json:"profit"`
	Venue     Venue     `json:"venue"`
}

// NoTrade is returned whenever no trade is profitable.
var NoTrade = Quote{Direction: SpotToConditional, Venue: Spot}

// Optimize returns the profit-maximizing trade across [spot] and
// [conditionals]. It never fails: degenerate inputs yield NoTrade.
func Optimize(spot Pool, conditionals []Pool) Quote {
	if spot.empty() || len(conditionals) == 0 {
		return NoTrade
	}
	for _, c := range conditionals {
		if c.empty() {
			return NoTrade
		}
	}

	best := NoTrade
	for _, dir := range []Direction{SpotToConditional, ConditionalToSpot} {
		amount, profit := search(spot, conditionals, dir)
		// Strictly greater, so equal profits keep the spot-first direction.
		if profit > best.Profit {
			best = Quote{Amount: amount, Direction: dir, Profit: profit, Venue: venueOf(dir)}
		}
	}
	return best
}

func venueOf(dir Direction) Venue {
	if dir == ConditionalToSpot {
		return Conditional
	}
	return Spot
}

// Simulate returns the outputs of trading [amount] stable in direction [dir]:
// the output of every conditional leg and the overall profit, which is zero
// when the trade loses.
func Simulate(spot Pool, conditionals []Pool, dir Direction, amount uint64) ([]uint64, uint64) {
	outs, received := legs(spot, conditionals, dir, amount)
	if received <= amount {
		return outs, 0
	}
	return outs, received - amount
}

// legs returns each conditional leg's output and the stable received back.
// Conditional legs output stable when selling asset and asset when buying it.
func legs(spot Pool, conditionals []Pool, dir Direction, amount uint64) ([]uint64, uint64) {
	outs := make([]uint64, len(conditionals))
	if amount == 0 || len(conditionals) == 0 {
		return outs, 0
	}

	switch dir {
	case SpotToConditional:
		asset := liquidity.GetAmountOut(amount, spot.StableReserve, spot.AssetReserve, spot.FeeBps)
		received := ^uint64(0)
		for i, c := range conditionals {
			outs[i] = liquidity.GetAmountOut(asset, c.AssetReserve, c.StableReserve, c.FeeBps)
			received = min(received, outs[i])
		}
		return outs, received
	default:
		set := ^uint64(0)
		for i, c := range conditionals {
			outs[i] = liquidity.GetAmountOut(amount, c.StableReserve, c.AssetReserve, c.FeeBps)
			set = min(set, outs[i])
		}
		return outs, liquidity.GetAmountOut(set, spot.AssetReserve, spot.StableReserve, spot.FeeBps)
	}
}

// search finds the best amount in [0, bound] for one direction.
func search(spot Pool, conditionals []Pool, dir Direction) (uint64, uint64) {
	hi := upperBound(spot, conditionals, dir)
	if hi == 0 {
		return 0, 0
	}

	lo := uint64(0)
	for i := 0; i < maxSearchIterations && hi-lo > 2; i++ {
		third := (hi - lo) / 3
		m1, m2 := lo+third, hi-third
		if score(spot, conditionals, dir, m1).Lt(score(spot, conditionals, dir, m2)) {
			lo = m1
		} else {
			hi = m2
		}
	}

	var bestAmount, bestProfit uint64
	for x := lo; x <= hi; x++ {
		if _, profit := Simulate(spot, conditionals, dir, x); profit > bestProfit {
			bestAmount, bestProfit = x, profit
		}
		if x == hi {
			break
		}
	}
	return bestAmount, bestProfit
}

// score is received - amount offset by 2^64 so losing trades still order
// correctly.
func score(spot Pool, conditionals []Pool, dir Direction, amount uint64) *uint256.Int {
	_, received := legs(spot, conditionals, dir, amount)
	s := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	s.Add(s, uint256.NewInt(received))
	return s.Sub(s, uint256.NewInt(amount))
}

// upperBound returns the smallest per-venue breakeven input. Beyond it at
// least one leg loses money, so the whole trade does.
//
// Chaining a buy in pool 1 with a sell in pool 2 gives, with B = 10000 and
// g = B - fee,
//
//	out(x) = g1·g2·R1out·R2out·x / (B²·R1in·R2in + g1·x·(B·R2in + g2·R1out))
//
// and out(x) > x exactly when
//
//	x < (g1·g2·R1out·R2out - B²·R1in·R2in) / (g1·(B·R2in + g2·R1out)).
func upperBound(spot Pool, conditionals []Pool, dir Direction) uint64 {
	bound := ^uint64(0)
	for _, c := range conditionals {
		var b uint64
		if dir == SpotToConditional {
			b = breakeven(spot.StableReserve, spot.AssetReserve, spot.FeeBps, c.AssetReserve, c.StableReserve, c.FeeBps)
		} else {
			b = breakeven(c.StableReserve, c.AssetReserve, c.FeeBps, spot.AssetReserve, spot.StableReserve, spot.FeeBps)
		}
		bound = min(bound, b)
	}
	return bound
}

// breakeven computes the bound for buying in (in1, out1) and selling the
// proceeds into (in2, out2).
func breakeven(in1, out1 uint64, fee1 uint16, in2, out2 uint64, fee2 uint16) uint64 {
	g1, g2 := complement(fee1), complement(fee2)
	if g1 == 0 || g2 == 0 {
		return 0
	}
	b := uint256.NewInt(liquidity.BpsDenominator)

	num := new(uint256.Int).Mul(uint256.NewInt(g1), uint256.NewInt(g2))
	num.Mul(num, uint256.NewInt(out1))
	num.Mul(num, uint256.NewInt(out2))

	cost := new(uint256.Int).Mul(b, b)
	cost.Mul(cost, uint256.NewInt(in1))
	cost.Mul(cost, uint256.NewInt(in2))
	if !num.Gt(cost) {
		return 0
	}
	num.Sub(num, cost)

	den := new(uint256.Int).Mul(b, uint256.NewInt(in2))
	den.Add(den, new(uint256.Int).Mul(uint256.NewInt(g2), uint256.NewInt(out1)))
	den.Mul(den, uint256.NewInt(g1))

	num.Div(num, den)
	if !num.IsUint64() {
		return ^uint64(0)
	}
	return num.Uint64()
}

func complement(feeBps uint16) uint64 {
	if feeBps >= liquidity.MaxFeeBps {
		return 0
	}
	return liquidity.BpsDenominator - uint64(feeBps)
}
