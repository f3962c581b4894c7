// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package liquidity

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	safemath "github.com/luxfi/math"

	"github.com/luxfi/futarchy/oracle"
)

const (
	DefaultMinimumLiquidity  = 1000
	DefaultLPFeeSharePercent = 90
)

// SpotParams configures a new spot pool.
type SpotParams struct {
	ID                               ids.ID
	FeeBps                           uint16
	FeeSchedule                      *FeeSchedule
	OracleConditionalThresholdBps    uint16
	ConditionalLiquidityRatioPercent uint8
	MinimumLiquidity                 uint64
	LPFeeSharePercent                uint8
	Oracle                           oracle.Config
}

// SpotPool is the primary constant-product market of the governance asset
// against the stable asset.
type SpotPool struct {
	ID ids.ID `serialize:"true" json:"id"`

	Market `serialize:"true" json:"market"`

	LPSupply         uint64 `serialize:"true" json:"lpSupply"`
	MinimumLiquidity uint64 `serialize:"true" json:"minimumLiquidity"`
	ShareSeq         uint64 `serialize:"true" json:"shareSeq"`
	StaticFeeBps     uint16 `serialize:"true" json:"staticFeeBps"`

	HasFeeSchedule bool        `serialize:"true" json:"hasFeeSchedule"`
	FeeSchedule    FeeSchedule `serialize:"true" json:"feeSchedule"`
	Activated      bool        `serialize:"true" json:"activated"`
	ActivationTime int64       `serialize:"true" json:"activationTime"`

	HasActiveProposal  bool   `serialize:"true" json:"hasActiveProposal"`
	ActiveProposalID   ids.ID `serialize:"true" json:"activeProposalId"`
	ActiveOutcomes     uint32 `serialize:"true" json:"activeOutcomes"`
	HasLastProposalEnd bool   `serialize:"true" json:"hasLastProposalEnd"`
	LastProposalEndMs  int64  `serialize:"true" json:"lastProposalEnd"`

	ConditionalLiquidityRatioPercent uint8  `serialize:"true" json:"conditionalLiquidityRatioPercent"`
	OracleConditionalThresholdBps    uint16 `serialize:"true" json:"oracleConditionalThresholdBps"`

	// Dissolved is set by a bypass-minimum dissolution and is permanent.
	Dissolved bool `serialize:"true" json:"dissolved"`
}

// NewSpotPool returns a pool with zero reserves.
func NewSpotPool(p SpotParams) (*SpotPool, error) {
	if p.FeeBps >= MaxFeeBps {
		return nil, ErrInvalidFee
	}
	if p.ConditionalLiquidityRatioPercent < 1 || p.ConditionalLiquidityRatioPercent > 99 {
		return nil, ErrInvalidRatio
	}
	if p.OracleConditionalThresholdBps > BpsDenominator || p.LPFeeSharePercent > 100 {
		return nil, ErrInputValidation
	}
	if p.MinimumLiquidity == 0 {
		return nil, ErrInputValidation
	}
	if err := p.Oracle.Verify(); err != nil {
		return nil, ErrInputValidation
	}

	pool := &SpotPool{
		ID: p.ID,
		Market: Market{
			FeeBps:            p.FeeBps,
			LPFeeSharePercent: p.LPFeeSharePercent,
			Oracle:            oracle.New(p.Oracle),
		},
		MinimumLiquidity:                 p.MinimumLiquidity,
		StaticFeeBps:                     p.FeeBps,
		ConditionalLiquidityRatioPercent: p.ConditionalLiquidityRatioPercent,
		OracleConditionalThresholdBps:    p.OracleConditionalThresholdBps,
	}
	if p.FeeSchedule != nil {
		if err := p.FeeSchedule.Verify(p.FeeBps); err != nil {
			return nil, err
		}
		pool.HasFeeSchedule = true
		pool.FeeSchedule = *p.FeeSchedule
		pool.FeeBps = p.FeeSchedule.InitialFeeBps
	}
	return pool, nil
}

// Clone returns a deep copy of the pool.
func (p *SpotPool) Clone() *SpotPool {
	c := *p
	c.Market = p.Market.clone()
	return &c
}

// ActiveProposal returns the proposal currently holding the pool's liquidity.
func (p *SpotPool) ActiveProposal() (ids.ID, bool) {
	if !p.HasActiveProposal {
		return ids.Empty, false
	}
	return p.ActiveProposalID, true
}

// LastProposalEnd returns when the last proposal was recombined.
func (p *SpotPool) LastProposalEnd() (time.Time, bool) {
	if !p.HasLastProposalEnd {
		return time.Time{}, false
	}
	return time.UnixMilli(p.LastProposalEndMs), true
}

// CurrentFeeBps returns the swap fee in effect at [now].
func (p *SpotPool) CurrentFeeBps(now time.Time) uint16 {
	switch {
	case p.Dissolved:
		return MaxFeeBps
	case !p.HasFeeSchedule:
		return p.StaticFeeBps
	case !p.Activated:
		return p.FeeSchedule.InitialFeeBps
	default:
		return p.FeeSchedule.FeeAt(p.StaticFeeBps, time.UnixMilli(p.ActivationTime), now)
	}
}

// CanCreateProposals reports whether a proposal may split the pool at [now].
// It is false while the launch fee is still decaying.
func (p *SpotPool) CanCreateProposals(now time.Time) bool {
	if p.Dissolved {
		return false
	}
	if !p.HasFeeSchedule {
		return true
	}
	return p.Activated && p.FeeSchedule.Done(time.UnixMilli(p.ActivationTime), now)
}

// refreshFee caches the fee for [now] and drops a fully decayed schedule.
func (p *SpotPool) refreshFee(now time.Time) {
	p.FeeBps = p.CurrentFeeBps(now)
	if p.HasFeeSchedule && p.Activated && p.FeeSchedule.Done(time.UnixMilli(p.ActivationTime), now) {
		p.HasFeeSchedule = false
	}
}

// AddLiquidity deposits up to ([assetIn], [stableIn]) and mints a share. Only
// the amounts matching the current reserve ratio are taken; the rest is
// returned as change so existing LPs receive no donation.
//
// The first deposit mints sqrt(asset*stable) of which MinimumLiquidity is
// burned permanently.
func (p *SpotPool) AddLiquidity(now time.Time, assetIn, stableIn, minLPOut uint64) (*LPShare, uint64, uint64, error) {
	if p.HasActiveProposal {
		return nil, 0, 0, ErrProposalActive
	}
	if p.Dissolved {
		return nil, 0, 0, ErrTradingDisabled
	}
	if assetIn == 0 || stableIn == 0 {
		return nil, 0, 0, ErrZeroAmount
	}

	var minted, supply uint64
	assetUsed, stableUsed := assetIn, stableIn
	if p.LPSupply == 0 {
		total := SqrtProduct(assetIn, stableIn)
		if total <= p.MinimumLiquidity {
			return nil, 0, 0, ErrBelowMinLiquidity
		}
		minted, supply = total-p.MinimumLiquidity, total
	} else {
		var err error
		assetUsed, stableUsed, minted, err = p.proportionalDeposit(assetIn, stableIn)
		if err != nil {
			return nil, 0, 0, err
		}
		supply, err = safemath.Add64(p.LPSupply, minted)
		if err != nil {
			return nil, 0, 0, ErrOverflow
		}
	}
	if minted < minLPOut {
		return nil, 0, 0, ErrLPBelowMinimum
	}

	newAsset, err := safemath.Add64(p.AssetReserve, assetUsed)
	if err != nil {
		return nil, 0, 0, ErrOverflow
	}
	newStable, err := safemath.Add64(p.StableReserve, stableUsed)
	if err != nil {
		return nil, 0, 0, ErrOverflow
	}
	if p.Oracle.Initialized && now.UnixMilli() < p.Oracle.LastTimestamp {
		return nil, 0, 0, ErrTimestampRegression
	}

	if !p.Activated {
		p.Activated = true
		p.ActivationTime = now.UnixMilli()
	}
	p.AssetReserve, p.StableReserve = newAsset, newStable
	p.LPSupply = supply
	if p.Oracle.Initialized {
		if err := p.Oracle.Write(now, p.Price()); err != nil {
			return nil, 0, 0, ErrTimestampRegression
		}
	} else {
		p.Oracle.Init(now, p.Price())
	}
	p.refreshFee(now)

	p.ShareSeq++
	share := &LPShare{
		ID:        DeriveID(p.ID, KindShare, p.ShareSeq),
		PoolID:    p.ID,
		Amount:    minted,
		CreatedAt: now.UnixMilli(),
	}
	return share, assetIn - assetUsed, stableIn - stableUsed, nil
}

// proportionalDeposit returns the amounts taken at the current ratio and the
// LP minted for them. The asset taken is exact and the stable taken is
// rounded up to match it, so the price moves by less than one stable unit per
// asset and never against the pool.
func (p *SpotPool) proportionalDeposit(assetIn, stableIn uint64) (uint64, uint64, uint64, error) {
	assetUsed := assetIn
	stableUsed, ok := MulDivUp(assetIn, p.StableReserve, p.AssetReserve)
	if !ok || stableUsed > stableIn {
		// Stable is the limiting side.
		assetUsed, ok = MulDiv(stableIn, p.AssetReserve, p.StableReserve)
		if !ok || assetUsed > assetIn {
			return 0, 0, 0, ErrOverflow
		}
		stableUsed, ok = MulDivUp(assetUsed, p.StableReserve, p.AssetReserve)
		if !ok || stableUsed > stableIn {
			return 0, 0, 0, ErrOverflow
		}
	}
	if assetUsed == 0 {
		return 0, 0, 0, ErrZeroLiquidityMinted
	}

	fromAsset, ok := MulDiv(assetUsed, p.LPSupply, p.AssetReserve)
	if !ok {
		return 0, 0, 0, ErrOverflow
	}
	fromStable, ok := MulDiv(stableUsed, p.LPSupply, p.StableReserve)
	if !ok {
		return 0, 0, 0, ErrOverflow
	}
	minted := min(fromAsset, fromStable)
	if minted == 0 {
		return 0, 0, 0, ErrZeroLiquidityMinted
	}
	return assetUsed, stableUsed, minted, nil
}

// LPValue returns the reserves [amount] of LP currently claims, without
// withdrawing anything.
func (p *SpotPool) LPValue(amount uint64) (uint64, uint64) {
	if p.LPSupply == 0 || amount == 0 {
		return 0, 0
	}
	asset, _ := MulDiv(amount, p.AssetReserve, p.LPSupply)
	stable, _ := MulDiv(amount, p.StableReserve, p.LPSupply)
	return asset, stable
}

// TradingLPValue returns what [amount] of LP claims while the pool is split:
// its part of the reserves kept on spot plus its part of the reserves every
// outcome holds, which returns to spot whichever outcome wins.
func (p *SpotPool) TradingLPValue(amount uint64, conditionals []*ConditionalPool) (uint64, uint64) {
	asset, stable := p.LPValue(amount)
	if p.LPSupply == 0 || len(conditionals) == 0 {
		return asset, stable
	}
	minAsset, minStable := conditionals[0].Reserves()
	for _, cond := range conditionals[1:] {
		a, s := cond.Reserves()
		minAsset, minStable = min(minAsset, a), min(minStable, s)
	}
	condAsset, _ := MulDiv(amount, minAsset, p.LPSupply)
	condStable, _ := MulDiv(amount, minStable, p.LPSupply)
	asset, _ = safemath.Add64(asset, condAsset)
	stable, _ = safemath.Add64(stable, condStable)
	return asset, stable
}

// RemoveLiquidity burns [share] for its proportional reserves.
func (p *SpotPool) RemoveLiquidity(share *LPShare, minAssetOut, minStableOut uint64) (uint64, uint64, error) {
	if p.HasActiveProposal {
		return 0, 0, ErrProposalActive
	}
	asset, stable, err := p.withdrawable(share)
	if err != nil {
		return 0, 0, err
	}
	if asset < minAssetOut || stable < minStableOut {
		return 0, 0, ErrOutputBelowMinimum
	}
	if err := p.checkFloor(p.AssetReserve-asset, p.StableReserve-stable); err != nil {
		return 0, 0, err
	}
	p.burn(share, asset, stable)
	return asset, stable, nil
}

// RemoveLiquidityForDissolution burns [share] during wind-down. With
// [bypassMinimum] the minimum-liquidity floor is skipped and the fee is set to
// 100% permanently, which disables all further trading.
func (p *SpotPool) RemoveLiquidityForDissolution(share *LPShare, bypassMinimum bool) (uint64, uint64, error) {
	if p.HasActiveProposal {
		return 0, 0, ErrProposalActive
	}
	asset, stable, err := p.withdrawable(share)
	if err != nil {
		return 0, 0, err
	}
	if !bypassMinimum {
		if err := p.checkFloor(p.AssetReserve-asset, p.StableReserve-stable); err != nil {
			return 0, 0, err
		}
	}
	p.burn(share, asset, stable)
	if bypassMinimum {
		p.Dissolved = true
		p.HasFeeSchedule = false
		p.FeeBps = MaxFeeBps
	}
	return asset, stable, nil
}

func (p *SpotPool) withdrawable(share *LPShare) (uint64, uint64, error) {
	switch {
	case share.PoolID != p.ID:
		return 0, 0, ErrPoolMismatch
	case share.Locked:
		return 0, 0, ErrShareLocked
	case share.Amount == 0:
		return 0, 0, ErrZeroAmount
	case share.Amount > p.LPSupply:
		return 0, 0, ErrShareExceedsSupply
	}
	asset, stable := p.LPValue(share.Amount)
	return asset, stable, nil
}

// checkFloor enforces the minimum liquidity on the reserves left behind, and
// on the spot side of a hypothetical split of them.
func (p *SpotPool) checkFloor(asset, stable uint64) error {
	floor := uint256.NewInt(p.MinimumLiquidity)
	if Product(asset, stable).Lt(floor) {
		return ErrBelowMinLiquidity
	}
	if p.ConditionalLiquidityRatioPercent > 0 {
		splitAsset, splitStable := splitAmounts(asset, stable, p.ConditionalLiquidityRatioPercent)
		if Product(asset-splitAsset, stable-splitStable).Lt(floor) {
			return ErrBelowMinLiquidity
		}
	}
	return nil
}

func (p *SpotPool) burn(share *LPShare, asset, stable uint64) {
	p.AssetReserve -= asset
	p.StableReserve -= stable
	p.LPSupply -= share.Amount
	share.Amount = 0
}

// RemoveLiquidityForQuantumSplit moves ConditionalLiquidityRatioPercent of the
// reserves out of the pool without burning LP. Only the quantum coordinator
// calls this.
func (p *SpotPool) RemoveLiquidityForQuantumSplit() (uint64, uint64, error) {
	if p.HasActiveProposal {
		return 0, 0, ErrProposalActive
	}
	if p.AssetReserve == 0 || p.StableReserve == 0 {
		return 0, 0, ErrInsufficientLiquidity
	}
	asset, stable := splitAmounts(p.AssetReserve, p.StableReserve, p.ConditionalLiquidityRatioPercent)
	if asset == 0 || stable == 0 {
		return 0, 0, ErrInsufficientLiquidity
	}
	p.AssetReserve -= asset
	p.StableReserve -= stable
	return asset, stable, nil
}

// AddLiquidityFromQuantumRedeem returns recombined reserves to the pool
// without minting LP; every share is revalued by the new reserves. Only the
// quantum coordinator calls this.
func (p *SpotPool) AddLiquidityFromQuantumRedeem(asset, stable uint64) error {
	newAsset, err := safemath.Add64(p.AssetReserve, asset)
	if err != nil {
		return ErrOverflow
	}
	newStable, err := safemath.Add64(p.StableReserve, stable)
	if err != nil {
		return ErrOverflow
	}
	p.AssetReserve, p.StableReserve = newAsset, newStable
	return nil
}

// SetActiveProposal marks the pool's liquidity as split into the [outcomes]
// conditional pools of [proposalID].
func (p *SpotPool) SetActiveProposal(proposalID ids.ID, outcomes uint32) {
	p.HasActiveProposal = true
	p.ActiveProposalID = proposalID
	p.ActiveOutcomes = outcomes
}

// ClearActiveProposal ends the active proposal at [now], which starts the
// cooldown before the next split.
func (p *SpotPool) ClearActiveProposal(now time.Time) {
	p.HasActiveProposal = false
	p.ActiveProposalID = ids.Empty
	p.ActiveOutcomes = 0
	p.HasLastProposalEnd = true
	p.LastProposalEndMs = now.UnixMilli()
}

// SwapStableForAsset buys the asset with [amountIn] stable. It is only called
// by the engine's swap entrypoint, which rebalances right after.
func (p *SpotPool) SwapStableForAsset(now time.Time, amountIn, minAmountOut uint64) (*SwapResult, error) {
	return p.swap(now, StableToAsset, amountIn, minAmountOut)
}

// SwapAssetForStable sells [amountIn] asset for stable. It is only called by
// the engine's swap entrypoint, which rebalances right after.
func (p *SpotPool) SwapAssetForStable(now time.Time, amountIn, minAmountOut uint64) (*SwapResult, error) {
	return p.swap(now, AssetToStable, amountIn, minAmountOut)
}

// Swap dispatches on [dir].
func (p *SpotPool) Swap(now time.Time, dir Direction, amountIn, minAmountOut uint64) (*SwapResult, error) {
	return p.swap(now, dir, amountIn, minAmountOut)
}

func (p *SpotPool) swap(now time.Time, dir Direction, amountIn, minAmountOut uint64) (*SwapResult, error) {
	fee := p.CurrentFeeBps(now)
	result, err := p.Market.swap(now, dir, amountIn, minAmountOut, fee)
	if err != nil {
		return nil, err
	}
	p.refreshFee(now)
	return result, nil
}

// QuoteSwap returns what a swap would produce at [now] without mutating.
func (p *SpotPool) QuoteSwap(now time.Time, dir Direction, amountIn uint64) (*SwapResult, error) {
	return p.quote(dir, amountIn, p.CurrentFeeBps(now))
}

// CollectProtocolFees zeroes and returns the accrued protocol fees.
func (p *SpotPool) CollectProtocolFees() (uint64, uint64) {
	return p.collectProtocolFees()
}

// AccrueProtocolFees adds fees collected elsewhere, such as in the winning
// conditional pool, to the pool's protocol balances.
func (p *SpotPool) AccrueProtocolFees(asset, stable uint64) error {
	newAsset, err := safemath.Add64(p.ProtocolFeesAsset, asset)
	if err != nil {
		return ErrOverflow
	}
	newStable, err := safemath.Add64(p.ProtocolFeesStable, stable)
	if err != nil {
		return ErrOverflow
	}
	p.ProtocolFeesAsset, p.ProtocolFeesStable = newAsset, newStable
	return nil
}

// splitAmounts returns the part of (asset, stable) that moves into each
// conditional pool at [ratioPercent].
func splitAmounts(asset, stable uint64, ratioPercent uint8) (uint64, uint64) {
	a, _ := MulDiv(asset, uint64(ratioPercent), 100)
	s, _ := MulDiv(stable, uint64(ratioPercent), 100)
	return a, s
}
