// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package futarchy

import (
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/futarchy/arbitrage"
	"github.com/luxfi/futarchy/liquidity"
	"github.com/luxfi/futarchy/quantum"
)

// Read-only views. None of them mutate state.

// SpotPoolIDs returns the ids of every spot pool.
func (e *Engine) SpotPoolIDs() ([]ids.ID, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	if e.closed {
		return nil, ErrClosed
	}
	return e.state.SpotPoolIDs()
}

// SpotPool returns a copy of the spot pool [poolID].
func (e *Engine) SpotPool(poolID ids.ID) (*liquidity.SpotPool, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	if e.closed {
		return nil, ErrClosed
	}
	return e.state.GetSpotPool(poolID)
}

// ConditionalPools returns the conditional pools [poolID] is split into,
// ordered by outcome. It is empty outside of trading.
func (e *Engine) ConditionalPools(poolID ids.ID) ([]*liquidity.ConditionalPool, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	if e.closed {
		return nil, ErrClosed
	}
	return e.state.GetConditionalPools(poolID)
}

// Share returns a copy of the LP share [shareID].
func (e *Engine) Share(shareID ids.ID) (*liquidity.LPShare, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	if e.closed {
		return nil, ErrClosed
	}
	return e.state.GetShare(shareID)
}

// LPValue returns the reserves the share [shareID] currently claims. While a
// proposal trades this includes the share's part of the reserves held by
// every conditional pool.
func (e *Engine) LPValue(shareID ids.ID) (uint64, uint64, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	if e.closed {
		return 0, 0, ErrClosed
	}
	share, err := e.state.GetShare(shareID)
	if err != nil {
		return 0, 0, err
	}
	pool, conditionals, err := e.load(share.PoolID)
	if err != nil {
		return 0, 0, err
	}
	if !pool.HasActiveProposal {
		asset, stable := pool.LPValue(share.Amount)
		return asset, stable, nil
	}
	asset, stable := pool.TradingLPValue(share.Amount, conditionals)
	return asset, stable, nil
}

// Phase returns where [poolID] is in the proposal cycle.
func (e *Engine) Phase(poolID ids.ID) (quantum.Phase, error) {
	pool, err := e.SpotPool(poolID)
	if err != nil {
		return quantum.Idle, err
	}
	return quantum.PhaseOf(pool), nil
}

// Price returns the governance price of [poolID] at [now].
func (e *Engine) Price(now time.Time, poolID ids.ID) (quantum.ResolvedPrice, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	if e.closed {
		return quantum.ResolvedPrice{}, ErrClosed
	}
	pool, conditionals, err := e.load(poolID)
	if err != nil {
		return quantum.ResolvedPrice{}, err
	}
	return quantum.ResolvePrice(pool, conditionals, now)
}

// QuoteSwap returns what a spot swap would produce at [now], before any
// rebalancing.
func (e *Engine) QuoteSwap(now time.Time, poolID ids.ID, dir liquidity.Direction, amountIn uint64) (*liquidity.SwapResult, error) {
	pool, err := e.SpotPool(poolID)
	if err != nil {
		return nil, err
	}
	return pool.QuoteSwap(now, dir, amountIn)
}

// QuoteArbitrage returns the rebalancing trade available on [poolID] at
// [now]. It is NoTrade while no proposal is trading.
func (e *Engine) QuoteArbitrage(now time.Time, poolID ids.ID) (arbitrage.Quote, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	if e.closed {
		return arbitrage.NoTrade, ErrClosed
	}
	pool, conditionals, err := e.load(poolID)
	if err != nil {
		return arbitrage.NoTrade, err
	}
	if !pool.HasActiveProposal || len(conditionals) == 0 {
		return arbitrage.NoTrade, nil
	}
	return arbitrage.Optimize(venues(now, pool, conditionals)), nil
}

func (e *Engine) load(poolID ids.ID) (*liquidity.SpotPool, []*liquidity.ConditionalPool, error) {
	pool, err := e.state.GetSpotPool(poolID)
	if err != nil {
		return nil, nil, err
	}
	conditionals, err := e.state.GetConditionalPools(poolID)
	if err != nil {
		return nil, nil, err
	}
	return pool, conditionals, nil
}
