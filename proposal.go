// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package futarchy

import (
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/futarchy/liquidity"
	"github.com/luxfi/futarchy/metrics"
	"github.com/luxfi/futarchy/quantum"
)

// BeginTrading splits [poolID] into [outcomes] conditional pools for
// [proposalID]. The returned session has already been applied.
func (e *Engine) BeginTrading(now time.Time, poolID, proposalID ids.ID, outcomes int) (*quantum.Session, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	var session *quantum.Session
	err := e.atomic("beginTrading", func() error {
		pool, err := e.state.GetSpotPool(poolID)
		if err != nil {
			return err
		}
		session, err = e.coordinator.Split(pool, proposalID, outcomes, now)
		if err != nil {
			return err
		}
		return session.Apply(e.state)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.MarkSplit(outcomes)
	return session, nil
}

// Finalize recombines the [winning] outcome of [proposalID] into [poolID] and
// destroys every conditional pool. The returned session has already been
// applied.
func (e *Engine) Finalize(now time.Time, poolID, proposalID ids.ID, winning uint32) (*quantum.Session, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	var session *quantum.Session
	err := e.atomic("finalize", func() error {
		pool, err := e.state.GetSpotPool(poolID)
		if err != nil {
			return err
		}
		conditionals, err := e.state.GetConditionalPools(poolID)
		if err != nil {
			return err
		}
		session, err = e.coordinator.Recombine(pool, conditionals, proposalID, winning, now)
		if err != nil {
			return err
		}
		return session.Apply(e.state)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.MarkRecombine(len(session.Conditionals))
	return session, nil
}

// MarkForWithdrawal locks the share with [shareID] in its pool's active
// proposal so it can be claimed as coins once the proposal ends.
func (e *Engine) MarkForWithdrawal(shareID ids.ID) (*liquidity.LPShare, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	var locked *liquidity.LPShare
	err := e.atomic("markForWithdrawal", func() error {
		share, err := e.state.GetShare(shareID)
		if err != nil {
			return err
		}
		pool, err := e.state.GetSpotPool(share.PoolID)
		if err != nil {
			return err
		}
		locked, err = e.coordinator.MarkForWithdrawal(pool, share)
		if err != nil {
			return err
		}
		return e.state.PutShare(locked)
	})
	if err != nil {
		return nil, err
	}
	return locked, nil
}

// ClaimWithdrawal settles a share marked for withdrawal after its proposal
// has been finalized.
func (e *Engine) ClaimWithdrawal(shareID ids.ID, minAssetOut, minStableOut uint64) (uint64, uint64, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	var asset, stable uint64
	err := e.atomic(metrics.OpWithdraw, func() error {
		share, err := e.state.GetShare(shareID)
		if err != nil {
			return err
		}
		pool, err := e.state.GetSpotPool(share.PoolID)
		if err != nil {
			return err
		}
		var claimed *liquidity.LPShare
		pool, claimed, asset, stable, err = e.coordinator.ClaimWithdrawal(pool, share, minAssetOut, minStableOut)
		if err != nil {
			return err
		}
		if err := e.state.PutSpotPool(pool); err != nil {
			return err
		}
		return e.state.PutShare(claimed)
	})
	if err != nil {
		return 0, 0, err
	}

	e.metrics.MarkLiquidity(metrics.OpWithdraw)
	e.log.Debug("claimed withdrawal",
		log.Stringer("shareID", shareID),
		log.Uint64("asset", asset),
		log.Uint64("stable", stable),
	)
	return asset, stable, nil
}
