// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arbitrage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func pool(asset, stable uint64) Pool {
	return Pool{AssetReserve: asset, StableReserve: stable, FeeBps: 30}
}

func requireSane(t *testing.T, spot Pool, conditionals []Pool, q Quote) {
	t.Helper()
	if q.Amount == 0 || q.Profit == 0 {
		require.Zero(t, q.Profit)
		require.Equal(t, Spot, q.Venue)
		return
	}
	_, profit := Simulate(spot, conditionals, q.Direction, q.Amount)
	require.Equal(t, profit, q.Profit)
	require.Equal(t, venueOf(q.Direction), q.Venue)
}

func TestEdgeCaseGrid(t *testing.T) {
	pairs := []Pool{
		pool(0, 0),
		pool(1, 1),
		pool(1, 2),
		pool(2, 1),
		pool(1_000_000, 1_000_000),
	}
	for _, s := range pairs {
		for _, c := range pairs {
			t.Run(fmt.Sprintf("spot=%d/%d,cond=%d/%d", s.AssetReserve, s.StableReserve, c.AssetReserve, c.StableReserve), func(t *testing.T) {
				conds := []Pool{c, c}
				q := Optimize(s, conds)
				requireSane(t, s, conds, q)
				if s.empty() || c.empty() {
					require.Equal(t, NoTrade, q)
				}
			})
		}
	}
}

func TestExhaustiveSmallReserves(t *testing.T) {
	values := []uint64{0, 1, 2, 1_000_000}
	for _, sa := range values {
		for _, ss := range values {
			for _, a0 := range values {
				for _, s0 := range values {
					for _, a1 := range values {
						for _, s1 := range values {
							spot := pool(sa, ss)
							conds := []Pool{pool(a0, s0), pool(a1, s1)}
							requireSane(t, spot, conds, Optimize(spot, conds))
						}
					}
				}
			}
		}
	}
}

func TestNoConditionals(t *testing.T) {
	require.Equal(t, NoTrade, Optimize(pool(1_000_000, 1_000_000), nil))
}

func TestBalancedPoolsDoNotTrade(t *testing.T) {
	require := require.New(t)

	spot := pool(1_000_000, 1_000_000)
	q := Optimize(spot, []Pool{pool(500_000, 500_000), pool(500_000, 500_000)})
	require.Equal(NoTrade, q)
	require.Equal(Spot, q.Venue)
}

func TestSingleOutcomeDivergenceDoesNotTrade(t *testing.T) {
	// A complete set has to be sold into every outcome, and the outcome at
	// parity absorbs it at a loss.
	spot := pool(1_000_000, 1_000_000)
	q := Optimize(spot, []Pool{pool(500_000, 500_000), pool(400_000, 600_000)})
	require.Equal(t, NoTrade, q)
}

func TestSpotToConditional(t *testing.T) {
	require := require.New(t)

	spot := pool(1_000_000, 1_000_000)
	conds := []Pool{pool(1_000_000, 2_000_000), pool(1_000_000, 2_000_000)}

	q := Optimize(spot, conds)
	require.Equal(SpotToConditional, q.Direction)
	require.Equal(Spot, q.Venue)
	require.Positive(q.Amount)
	require.Positive(q.Profit)
	requireSane(t, spot, conds, q)

	bound := upperBound(spot, conds, SpotToConditional)
	require.LessOrEqual(q.Amount, bound)
	requireNearOptimal(t, spot, conds, SpotToConditional, bound, q.Profit)
}

func TestConditionalToSpot(t *testing.T) {
	require := require.New(t)

	spot := pool(1_000_000, 1_000_000)
	conds := []Pool{pool(2_000_000, 1_000_000), pool(3_000_000, 1_000_000), pool(2_500_000, 1_000_000)}

	q := Optimize(spot, conds)
	require.Equal(ConditionalToSpot, q.Direction)
	require.Equal(Conditional, q.Venue)
	require.Positive(q.Profit)
	requireSane(t, spot, conds, q)

	bound := upperBound(spot, conds, ConditionalToSpot)
	require.LessOrEqual(q.Amount, bound)
	requireNearOptimal(t, spot, conds, ConditionalToSpot, bound, q.Profit)
}

// requireNearOptimal samples the profitable range and checks that no sample
// beats the quote by more than rounding noise.
func requireNearOptimal(t *testing.T, spot Pool, conds []Pool, dir Direction, bound, profit uint64) {
	t.Helper()
	step := max(bound/1_000, 1)
	for x := uint64(0); x <= bound; x += step {
		_, sampled := Simulate(spot, conds, dir, x)
		require.LessOrEqual(t, sampled, profit+10, "amount %d", x)
	}
}

func TestFullFeeDoesNotTrade(t *testing.T) {
	spot := Pool{AssetReserve: 1_000_000, StableReserve: 1_000_000, FeeBps: 10_000}
	q := Optimize(spot, []Pool{pool(1_000_000, 4_000_000), pool(1_000_000, 4_000_000)})
	require.Equal(t, NoTrade, q)
}

func TestLargeReservesDoNotOverflow(t *testing.T) {
	require := require.New(t)

	spot := pool(1<<62, 1<<62)
	conds := []Pool{pool(1<<62, 1<<63), pool(1<<62, 1<<63)}
	q := Optimize(spot, conds)
	require.Equal(SpotToConditional, q.Direction)
	require.Positive(q.Profit)
	requireSane(t, spot, conds, q)
}

func TestBreakeven(t *testing.T) {
	require := require.New(t)

	// Same price on both sides is never profitable once fees apply.
	require.Zero(breakeven(1_000, 1_000, 30, 1_000, 1_000, 30))
	require.Zero(breakeven(1, 1, 0, 1, 1, 0))
	require.Zero(breakeven(1_000, 1_000, 10_000, 1_000, 4_000, 0))

	// Without fees: (4M·1M - 1M·1M) / (1M + 1M) = 1.5M.
	require.Equal(uint64(1_500_000), breakeven(1_000_000, 1_000_000, 0, 1_000_000, 4_000_000, 0))
}
