// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package futarchy

import (
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/futarchy/arbitrage"
	"github.com/luxfi/futarchy/config"
	"github.com/luxfi/futarchy/liquidity"
	"github.com/luxfi/futarchy/oracle"
	"github.com/luxfi/futarchy/quantum"
	"github.com/luxfi/futarchy/state"
)

var t0 = time.Unix(1_700_000_000, 0)

func newTestEngine(t *testing.T) *Engine {
	require := require.New(t)

	e, err := New(config.DefaultConfig(), memdb.New(), log.NewNoOpLogger(), metric.NewRegistry())
	require.NoError(err)
	t.Cleanup(func() {
		require.NoError(e.Close())
	})
	return e
}

// seededPool creates a pool holding 1,000,000 of each asset at t0.
func seededPool(t *testing.T, e *Engine) (ids.ID, *liquidity.LPShare) {
	require := require.New(t)

	poolID := ids.GenerateTestID()
	_, err := e.CreateSpotPool(poolID)
	require.NoError(err)
	result, err := e.AddLiquidity(t0, poolID, 1_000_000, 1_000_000, 0)
	require.NoError(err)
	return poolID, result.Share
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ConditionalLiquidityRatioPercent = 0
	_, err := New(cfg, memdb.New(), log.NewNoOpLogger(), metric.NewRegistry())
	require.ErrorIs(t, err, config.ErrInvalidRatio)
}

func TestCreateSpotPool(t *testing.T) {
	require := require.New(t)

	e := newTestEngine(t)
	poolID := ids.GenerateTestID()

	pool, err := e.CreateSpotPool(poolID)
	require.NoError(err)
	require.Equal(poolID, pool.ID)
	require.Zero(pool.LPSupply)

	_, err = e.CreateSpotPool(poolID)
	require.ErrorIs(err, ErrPoolExists)
	_, err = e.CreateSpotPool(ids.Empty)
	require.ErrorIs(err, liquidity.ErrInputValidation)

	poolIDs, err := e.SpotPoolIDs()
	require.NoError(err)
	require.Equal([]ids.ID{poolID}, poolIDs)

	phase, err := e.Phase(poolID)
	require.NoError(err)
	require.Equal(quantum.Idle, phase)

	_, err = e.SpotPool(ids.GenerateTestID())
	require.ErrorIs(err, state.ErrSpotPoolNotFound)
}

func TestAddAndRemoveLiquidity(t *testing.T) {
	require := require.New(t)

	e := newTestEngine(t)
	poolID, first := seededPool(t, e)
	require.Equal(uint64(999_000), first.Amount)

	second, err := e.AddLiquidity(t0.Add(time.Minute), poolID, 10_000, 50_000, 0)
	require.NoError(err)
	require.Equal(uint64(10_000), second.Share.Amount)
	require.Zero(second.AssetChange)
	require.Equal(uint64(40_000), second.StableChange)

	asset, stable, err := e.LPValue(second.Share.ID)
	require.NoError(err)
	require.Equal(uint64(10_000), asset)
	require.Equal(uint64(10_000), stable)

	asset, stable, err = e.RemoveLiquidity(second.Share.ID, 0, 0)
	require.NoError(err)
	require.LessOrEqual(asset, uint64(10_000))
	require.LessOrEqual(stable, uint64(10_000))

	// The burned share is gone.
	_, err = e.Share(second.Share.ID)
	require.ErrorIs(err, state.ErrShareNotFound)
	_, _, err = e.RemoveLiquidity(second.Share.ID, 0, 0)
	require.ErrorIs(err, state.ErrShareNotFound)

	pool, err := e.SpotPool(poolID)
	require.NoError(err)
	require.Equal(uint64(1_000_000), pool.LPSupply)
}

func TestFailedOperationDoesNotMutate(t *testing.T) {
	require := require.New(t)

	e := newTestEngine(t)
	poolID, share := seededPool(t, e)
	before, err := e.SpotPool(poolID)
	require.NoError(err)

	_, err = e.SwapSpot(t0.Add(time.Minute), poolID, liquidity.StableToAsset, 10_000, 10_000)
	require.ErrorIs(err, liquidity.ErrSlippageExceeded)

	_, _, err = e.RemoveLiquidity(share.ID, 2_000_000, 0)
	require.ErrorIs(err, liquidity.ErrOutputBelowMinimum)

	after, err := e.SpotPool(poolID)
	require.NoError(err)
	require.Equal(before.AssetReserve, after.AssetReserve)
	require.Equal(before.StableReserve, after.StableReserve)
	require.Equal(before.TxCount, after.TxCount)
	require.Equal(before.LPSupply, after.LPSupply)

	stored, err := e.Share(share.ID)
	require.NoError(err)
	require.Equal(share.Amount, stored.Amount)
}

func TestSwapSpotWithoutProposal(t *testing.T) {
	require := require.New(t)

	e := newTestEngine(t)
	poolID, _ := seededPool(t, e)

	quote, err := e.QuoteSwap(t0.Add(time.Minute), poolID, liquidity.StableToAsset, 10_000)
	require.NoError(err)

	receipt, err := e.SwapSpot(t0.Add(time.Minute), poolID, liquidity.StableToAsset, 10_000, 0)
	require.NoError(err)
	require.Equal(quote, receipt.Swap)
	require.Equal(uint64(9_871), receipt.Swap.AmountOut)
	require.Equal(arbitrage.NoTrade, receipt.Arbitrage)
	require.Empty(receipt.Change)

	_, err = e.SwapConditional(t0.Add(time.Minute), poolID, 0, liquidity.StableToAsset, 10_000, 0)
	require.ErrorIs(err, liquidity.ErrNoActiveProposal)
}

func TestProposalLifecycle(t *testing.T) {
	require := require.New(t)

	e := newTestEngine(t)
	poolID, share := seededPool(t, e)
	proposalID := ids.GenerateTestID()

	session, err := e.BeginTrading(t0.Add(time.Hour), poolID, proposalID, 2)
	require.NoError(err)
	require.True(session.Consumed())
	require.Equal(uint64(500_000), session.Asset)
	require.Equal(uint64(500_000), session.Stable)

	phase, err := e.Phase(poolID)
	require.NoError(err)
	require.Equal(quantum.Trading, phase)

	conditionals, err := e.ConditionalPools(poolID)
	require.NoError(err)
	require.Len(conditionals, 2)
	for i, cond := range conditionals {
		require.Equal(uint32(i), cond.Outcome)
		require.Equal(proposalID, cond.ProposalID)
		require.Equal(uint64(500_000), cond.AssetReserve)
	}

	// The share still claims what it held before the split.
	asset, stable, err := e.LPValue(share.ID)
	require.NoError(err)
	require.Equal(uint64(999_000), asset)
	require.Equal(uint64(999_000), stable)

	// LP operations are blocked while the liquidity is split.
	_, err = e.AddLiquidity(t0.Add(2*time.Hour), poolID, 1_000, 1_000, 0)
	require.ErrorIs(err, liquidity.ErrProposalActive)
	_, _, err = e.RemoveLiquidity(share.ID, 0, 0)
	require.ErrorIs(err, liquidity.ErrProposalActive)

	// A second split is rejected.
	_, err = e.BeginTrading(t0.Add(2*time.Hour), poolID, ids.GenerateTestID(), 2)
	require.ErrorIs(err, liquidity.ErrProposalActive)

	// Finalizing the wrong proposal changes nothing.
	_, err = e.Finalize(t0.Add(3*time.Hour), poolID, ids.GenerateTestID(), 0)
	require.ErrorIs(err, quantum.ErrProposalMismatch)
	conditionals, err = e.ConditionalPools(poolID)
	require.NoError(err)
	require.Len(conditionals, 2)

	session, err = e.Finalize(t0.Add(3*time.Hour), poolID, proposalID, 1)
	require.NoError(err)
	require.Equal(uint32(1), session.Winner)

	conditionals, err = e.ConditionalPools(poolID)
	require.NoError(err)
	require.Empty(conditionals)

	pool, err := e.SpotPool(poolID)
	require.NoError(err)
	require.Equal(uint64(1_000_000), pool.AssetReserve)
	require.Equal(uint64(1_000_000), pool.StableReserve)
	require.Equal(uint64(1_000_000), pool.LPSupply)

	// The cooldown starts when the proposal ends.
	_, err = e.BeginTrading(t0.Add(4*time.Hour), poolID, ids.GenerateTestID(), 2)
	require.ErrorIs(err, quantum.ErrCooldown)
	_, err = e.BeginTrading(t0.Add(9*time.Hour), poolID, ids.GenerateTestID(), 2)
	require.NoError(err)
}

func TestSwapRebalancesConditionalPools(t *testing.T) {
	require := require.New(t)

	e := newTestEngine(t)
	poolID, _ := seededPool(t, e)
	_, err := e.BeginTrading(t0.Add(time.Hour), poolID, ids.GenerateTestID(), 2)
	require.NoError(err)

	// Buying on spot leaves it more expensive than the conditional pools.
	now := t0.Add(2 * time.Hour)
	receipt, err := e.SwapSpot(now, poolID, liquidity.StableToAsset, 200_000, 0)
	require.NoError(err)
	require.Positive(receipt.Swap.AmountOut)

	quote := receipt.Arbitrage
	require.Equal(arbitrage.ConditionalToSpot, quote.Direction)
	require.Equal(arbitrage.Conditional, quote.Venue)
	require.Positive(quote.Amount)
	require.Positive(quote.Profit)
	// Both outcomes moved identically, so no conditional tokens are left over.
	require.Equal([]uint64{0, 0}, receipt.Change)

	conditionals, err := e.ConditionalPools(poolID)
	require.NoError(err)
	for _, cond := range conditionals {
		require.Greater(cond.StableReserve, uint64(500_000))
		require.Less(cond.AssetReserve, uint64(500_000))
	}

	// What is left to take is less than what was taken.
	remaining, err := e.QuoteArbitrage(now, poolID)
	require.NoError(err)
	require.Less(remaining.Profit, quote.Profit)
}

func TestSwapSingleConditional(t *testing.T) {
	require := require.New(t)

	e := newTestEngine(t)
	poolID, _ := seededPool(t, e)
	_, err := e.BeginTrading(t0.Add(time.Hour), poolID, ids.GenerateTestID(), 2)
	require.NoError(err)
	now := t0.Add(2 * time.Hour)

	_, err = e.SwapConditional(now, poolID, 2, liquidity.StableToAsset, 1_000, 0)
	require.ErrorIs(err, ErrUnknownVenue)

	// A complete set cannot be formed profitably when only one outcome moved.
	receipt, err := e.SwapConditional(now, poolID, 0, liquidity.StableToAsset, 50_000, 0)
	require.NoError(err)
	require.Equal(arbitrage.NoTrade, receipt.Arbitrage)

	conditionals, err := e.ConditionalPools(poolID)
	require.NoError(err)
	require.Greater(conditionals[0].Price(), conditionals[1].Price())
	require.Equal(uint64(500_000), conditionals[1].AssetReserve)
}

func TestWithdrawMode(t *testing.T) {
	require := require.New(t)

	e := newTestEngine(t)
	poolID, share := seededPool(t, e)
	proposalID := ids.GenerateTestID()

	_, err := e.MarkForWithdrawal(share.ID)
	require.ErrorIs(err, liquidity.ErrNoActiveProposal)

	_, err = e.BeginTrading(t0.Add(time.Hour), poolID, proposalID, 2)
	require.NoError(err)

	locked, err := e.MarkForWithdrawal(share.ID)
	require.NoError(err)
	require.True(locked.Locked)
	require.True(locked.WithdrawMode)

	_, _, err = e.ClaimWithdrawal(share.ID, 0, 0)
	require.ErrorIs(err, liquidity.ErrProposalActive)

	_, err = e.Finalize(t0.Add(2*time.Hour), poolID, proposalID, 0)
	require.NoError(err)

	// A locked share can only leave through a claim.
	_, _, err = e.RemoveLiquidity(share.ID, 0, 0)
	require.ErrorIs(err, liquidity.ErrShareLocked)

	asset, stable, err := e.ClaimWithdrawal(share.ID, 0, 0)
	require.NoError(err)
	require.Equal(uint64(999_000), asset)
	require.Equal(uint64(999_000), stable)

	_, err = e.Share(share.ID)
	require.ErrorIs(err, state.ErrShareNotFound)
}

func TestDissolve(t *testing.T) {
	require := require.New(t)

	e := newTestEngine(t)
	poolID, first := seededPool(t, e)
	second, err := e.AddLiquidity(t0.Add(time.Minute), poolID, 10_000, 10_000, 0)
	require.NoError(err)

	asset, stable, err := e.Dissolve(second.Share.ID, false)
	require.NoError(err)
	require.Equal(uint64(10_000), asset)
	require.Equal(uint64(10_000), stable)

	pool, err := e.SpotPool(poolID)
	require.NoError(err)
	require.False(pool.Dissolved)

	asset, stable, err = e.Dissolve(first.ID, true)
	require.NoError(err)
	require.Equal(uint64(999_000), asset)
	require.Equal(uint64(999_000), stable)

	pool, err = e.SpotPool(poolID)
	require.NoError(err)
	require.True(pool.Dissolved)
	require.Equal(uint64(1_000), pool.LPSupply)

	_, err = e.SwapSpot(t0.Add(time.Hour), poolID, liquidity.StableToAsset, 100, 0)
	require.ErrorIs(err, liquidity.ErrTradingDisabled)
	_, err = e.AddLiquidity(t0.Add(time.Hour), poolID, 1_000, 1_000, 0)
	require.ErrorIs(err, liquidity.ErrTradingDisabled)
	_, err = e.BeginTrading(t0.Add(time.Hour), poolID, ids.GenerateTestID(), 2)
	require.ErrorIs(err, quantum.ErrProposalsDisabled)
}

func TestCollectProtocolFees(t *testing.T) {
	require := require.New(t)

	e := newTestEngine(t)
	poolID, _ := seededPool(t, e)

	_, err := e.SwapSpot(t0.Add(time.Minute), poolID, liquidity.StableToAsset, 10_000, 0)
	require.NoError(err)

	asset, stable, err := e.CollectProtocolFees(poolID)
	require.NoError(err)
	require.Zero(asset)
	require.Equal(uint64(3), stable)

	_, stable, err = e.CollectProtocolFees(poolID)
	require.NoError(err)
	require.Zero(stable)
}

func TestPrice(t *testing.T) {
	require := require.New(t)

	e := newTestEngine(t)
	poolID, _ := seededPool(t, e)

	_, err := e.Price(t0.Add(time.Hour), poolID)
	require.ErrorIs(err, oracle.ErrNotReady)

	price, err := e.Price(t0.Add(25*time.Hour), poolID)
	require.NoError(err)
	require.Equal(quantum.SpotSource, price.Source)
	require.Equal(uint64(liquidity.PriceScale), price.Price)
}

func TestClosedEngine(t *testing.T) {
	require := require.New(t)

	e, err := New(config.DefaultConfig(), memdb.New(), log.NewNoOpLogger(), metric.NewRegistry())
	require.NoError(err)
	require.NoError(e.Close())
	require.NoError(e.Close())

	_, err = e.CreateSpotPool(ids.GenerateTestID())
	require.ErrorIs(err, ErrClosed)
	_, err = e.SpotPool(ids.GenerateTestID())
	require.ErrorIs(err, ErrClosed)
}
