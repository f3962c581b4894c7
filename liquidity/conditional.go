// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package liquidity

import (
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/futarchy/oracle"
)

// ConditionalParams seeds a conditional pool for one proposal outcome.
type ConditionalParams struct {
	SpotPoolID        ids.ID
	ProposalID        ids.ID
	Outcome           uint32
	AssetReserve      uint64
	StableReserve     uint64
	FeeBps            uint16
	LPFeeSharePercent uint8
	Oracle            oracle.Config
}

// ConditionalPool trades the outcome-conditional asset against the
// outcome-conditional stable for a single outcome of a proposal. It exists
// only while its proposal is trading.
type ConditionalPool struct {
	ID         ids.ID `serialize:"true" json:"id"`
	SpotPoolID ids.ID `serialize:"true" json:"spotPoolId"`
	ProposalID ids.ID `serialize:"true" json:"proposalId"`
	Outcome    uint32 `serialize:"true" json:"outcome"`

	Market `serialize:"true" json:"market"`

	CreatedAt int64 `serialize:"true" json:"createdAt"`
	Destroyed bool  `serialize:"true" json:"destroyed"`
}

// ConditionalPoolID returns the id of the pool for [outcome] of [proposalID].
func ConditionalPoolID(proposalID ids.ID, outcome uint32) ids.ID {
	return DeriveID(proposalID, KindConditionalPool, uint64(outcome))
}

// NewConditionalPool creates a seeded pool whose oracle starts at the seed
// price at [now].
func NewConditionalPool(p ConditionalParams, now time.Time) (*ConditionalPool, error) {
	if p.FeeBps >= MaxFeeBps {
		return nil, ErrInvalidFee
	}
	if p.AssetReserve == 0 || p.StableReserve == 0 {
		return nil, ErrInsufficientLiquidity
	}
	if err := p.Oracle.Verify(); err != nil {
		return nil, ErrInputValidation
	}

	pool := &ConditionalPool{
		ID:         ConditionalPoolID(p.ProposalID, p.Outcome),
		SpotPoolID: p.SpotPoolID,
		ProposalID: p.ProposalID,
		Outcome:    p.Outcome,
		Market: Market{
			AssetReserve:      p.AssetReserve,
			StableReserve:     p.StableReserve,
			FeeBps:            p.FeeBps,
			LPFeeSharePercent: p.LPFeeSharePercent,
			Oracle:            oracle.New(p.Oracle),
		},
		CreatedAt: now.UnixMilli(),
	}
	pool.Oracle.Init(now, pool.Price())
	return pool, nil
}

// Clone returns a deep copy of the pool.
func (p *ConditionalPool) Clone() *ConditionalPool {
	c := *p
	c.Market = p.Market.clone()
	return &c
}

// Swap trades [amountIn] in direction [dir].
func (p *ConditionalPool) Swap(now time.Time, dir Direction, amountIn, minAmountOut uint64) (*SwapResult, error) {
	if p.Destroyed {
		return nil, ErrPoolDestroyed
	}
	return p.swap(now, dir, amountIn, minAmountOut, p.FeeBps)
}

// SwapStableForAsset buys the conditional asset.
func (p *ConditionalPool) SwapStableForAsset(now time.Time, amountIn, minAmountOut uint64) (*SwapResult, error) {
	return p.Swap(now, StableToAsset, amountIn, minAmountOut)
}

// SwapAssetForStable sells the conditional asset.
func (p *ConditionalPool) SwapAssetForStable(now time.Time, amountIn, minAmountOut uint64) (*SwapResult, error) {
	return p.Swap(now, AssetToStable, amountIn, minAmountOut)
}

// QuoteSwap returns what a swap would produce without mutating.
func (p *ConditionalPool) QuoteSwap(dir Direction, amountIn uint64) (*SwapResult, error) {
	if p.Destroyed {
		return nil, ErrPoolDestroyed
	}
	return p.quote(dir, amountIn, p.FeeBps)
}

// DestroyAndReturnReserves empties the pool and returns its reserves. A
// destroyed pool rejects every further operation.
func (p *ConditionalPool) DestroyAndReturnReserves() (uint64, uint64, error) {
	if p.Destroyed {
		return 0, 0, ErrPoolDestroyed
	}
	asset, stable := p.AssetReserve, p.StableReserve
	p.AssetReserve, p.StableReserve = 0, 0
	p.Destroyed = true
	return asset, stable, nil
}

// CollectProtocolFees zeroes and returns the accrued protocol fees.
func (p *ConditionalPool) CollectProtocolFees() (uint64, uint64) {
	return p.collectProtocolFees()
}
