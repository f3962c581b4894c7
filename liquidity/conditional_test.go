// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package liquidity

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/futarchy/oracle"
)

func newTestConditional(t *testing.T, outcome uint32, asset, stable uint64) *ConditionalPool {
	pool, err := NewConditionalPool(ConditionalParams{
		SpotPoolID:        ids.GenerateTestID(),
		ProposalID:        ids.GenerateTestID(),
		Outcome:           outcome,
		AssetReserve:      asset,
		StableReserve:     stable,
		FeeBps:            30,
		LPFeeSharePercent: DefaultLPFeeSharePercent,
		Oracle:            oracle.DefaultConfig(),
	}, testStart)
	require.NoError(t, err)
	return pool
}

func TestNewConditionalPool(t *testing.T) {
	require := require.New(t)

	pool := newTestConditional(t, 1, 500_000, 1_000_000)
	require.Equal(ConditionalPoolID(pool.ProposalID, 1), pool.ID)
	require.NotEqual(ConditionalPoolID(pool.ProposalID, 0), pool.ID)
	require.Equal(uint64(2*PriceScale), pool.Price())
	require.True(pool.Oracle.Initialized)
	require.Equal(pool.Price(), pool.Oracle.LastPrice)

	_, err := NewConditionalPool(ConditionalParams{
		AssetReserve:  0,
		StableReserve: 10,
		Oracle:        oracle.DefaultConfig(),
	}, testStart)
	require.ErrorIs(err, ErrInsufficientLiquidity)
}

func TestConditionalSwapMatchesSpotMechanics(t *testing.T) {
	require := require.New(t)

	spot, _ := seededSpot(t, 1_000_000, 1_000_000)
	cond := newTestConditional(t, 0, 1_000_000, 1_000_000)
	now := testStart.Add(time.Minute)

	fromSpot, err := spot.SwapAssetForStable(now, 12_345, 0)
	require.NoError(err)
	fromCond, err := cond.SwapAssetForStable(now, 12_345, 0)
	require.NoError(err)
	require.Equal(fromSpot, fromCond)
	require.Equal(spot.AssetReserve, cond.AssetReserve)
	require.Equal(spot.StableReserve, cond.StableReserve)
}

func TestConditionalBuyRaisesPrice(t *testing.T) {
	require := require.New(t)

	pool := newTestConditional(t, 1, 500_000, 500_000)
	before := pool.Price()

	result, err := pool.SwapStableForAsset(testStart.Add(time.Second), 20_000, 0)
	require.NoError(err)
	require.Positive(result.AmountOut)
	require.Less(pool.AssetReserve, uint64(500_000))
	require.Greater(pool.Price(), before)
}

func TestDestroyAndReturnReserves(t *testing.T) {
	require := require.New(t)

	pool := newTestConditional(t, 0, 500_000, 700_000)
	asset, stable, err := pool.DestroyAndReturnReserves()
	require.NoError(err)
	require.Equal(uint64(500_000), asset)
	require.Equal(uint64(700_000), stable)

	asset, stable = pool.Reserves()
	require.Zero(asset)
	require.Zero(stable)

	_, _, err = pool.DestroyAndReturnReserves()
	require.ErrorIs(err, ErrPoolDestroyed)
	_, err = pool.SwapStableForAsset(testStart, 1_000, 0)
	require.ErrorIs(err, ErrPoolDestroyed)
	_, err = pool.QuoteSwap(StableToAsset, 1_000)
	require.ErrorIs(err, ErrPoolDestroyed)
}

func TestGetAmountOutDegenerate(t *testing.T) {
	require := require.New(t)

	require.Zero(GetAmountOut(0, 10, 10, 30))
	require.Zero(GetAmountOut(10, 0, 10, 30))
	require.Zero(GetAmountOut(10, 10, 0, 30))
	require.Zero(GetAmountOut(10, 10, 10, MaxFeeBps))
	require.Zero(GetAmountOut(1, 1, 1, 0))
	require.Equal(uint64(5), GetAmountOut(10, 10, 10, 0))

	// Intermediates do not overflow at the top of the range.
	top := ^uint64(0)
	require.Equal(top/2, GetAmountOut(top, top, top, 0))
}

func TestMulDiv(t *testing.T) {
	require := require.New(t)

	v, ok := MulDiv(7, 3, 2)
	require.True(ok)
	require.Equal(uint64(10), v)

	v, ok = MulDivUp(7, 3, 2)
	require.True(ok)
	require.Equal(uint64(11), v)

	_, ok = MulDiv(^uint64(0), 2, 1)
	require.False(ok)

	_, ok = MulDiv(1, 1, 0)
	require.False(ok)
}

func TestParseDirection(t *testing.T) {
	require := require.New(t)

	for _, dir := range []Direction{AssetToStable, StableToAsset} {
		parsed, err := ParseDirection(dir.String())
		require.NoError(err)
		require.Equal(dir, parsed)
	}

	parsed, err := ParseDirection("buy")
	require.NoError(err)
	require.Equal(StableToAsset, parsed)

	_, err = ParseDirection("sideways")
	require.ErrorIs(err, ErrInputValidation)
}
