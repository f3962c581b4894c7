// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package futarchy is the quantum liquidity engine behind futarchy markets.
//
// An Engine owns the spot pools, the conditional pools of the proposal each of
// them is split into, and the LP shares. Every exported operation is one
// all-or-nothing unit: it either commits every record it touched or none.
// Time is always supplied by the caller.
package futarchy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/futarchy/config"
	"github.com/luxfi/futarchy/liquidity"
	"github.com/luxfi/futarchy/metrics"
	"github.com/luxfi/futarchy/quantum"
	"github.com/luxfi/futarchy/state"
)

var (
	ErrPoolExists   = fmt.Errorf("%w: spot pool already exists", liquidity.ErrInputValidation)
	ErrEmptyPoolID  = fmt.Errorf("%w: empty pool id", liquidity.ErrInputValidation)
	ErrUnknownVenue = fmt.Errorf("%w: no conditional pool for outcome", liquidity.ErrIdentityMismatch)
	ErrClosed       = errors.New("engine closed")
)

// Engine serializes every operation on the pools it stores.
type Engine struct {
	config config.Config

	log     log.Logger
	metrics metrics.Metrics

	// Lock for thread safety. Writers take it exclusively.
	lock   sync.RWMutex
	closed bool

	state       *state.State
	coordinator *quantum.Coordinator
}

// New returns an engine persisting into [db]. Metrics are registered with
// [registerer].
func New(cfg config.Config, db database.Database, logger log.Logger, registerer metric.Registerer) (*Engine, error) {
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	m, err := metrics.New(registerer)
	if err != nil {
		return nil, fmt.Errorf("couldn't register metrics: %w", err)
	}
	return &Engine{
		config:      cfg,
		log:         logger,
		metrics:     m,
		state:       state.New(db, cfg.CacheSize),
		coordinator: quantum.New(cfg.Quantum(), logger),
	}, nil
}

// Close discards uncommitted writes and closes the state.
func (e *Engine) Close() error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.state.Close()
}

// atomic runs [fn] and commits everything it wrote, or nothing if it fails.
func (e *Engine) atomic(op string, fn func() error) error {
	if e.closed {
		return ErrClosed
	}
	err := fn()
	if err == nil {
		err = e.state.Commit()
	}
	if err != nil {
		e.state.Abort()
		e.metrics.MarkRejected(err)
		e.log.Debug("operation rejected",
			log.String("op", op),
			log.Err(err),
		)
	}
	return err
}

// CreateSpotPool creates an empty spot pool with [poolID] using the engine's
// pool parameters.
func (e *Engine) CreateSpotPool(poolID ids.ID) (*liquidity.SpotPool, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	var pool *liquidity.SpotPool
	err := e.atomic("createSpotPool", func() error {
		if poolID == ids.Empty {
			return ErrEmptyPoolID
		}
		exists, err := e.state.HasSpotPool(poolID)
		if err != nil {
			return err
		}
		if exists {
			return ErrPoolExists
		}
		pool, err = liquidity.NewSpotPool(e.config.SpotParams(poolID))
		if err != nil {
			return err
		}
		return e.state.PutSpotPool(pool)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("created spot pool",
		log.Stringer("poolID", poolID),
		log.Uint32("feeBps", uint32(pool.FeeBps)),
		log.Bool("feeSchedule", pool.HasFeeSchedule),
	)
	return pool.Clone(), nil
}

// AddLiquidityResult is the outcome of a deposit.
type AddLiquidityResult struct {
	Share        *liquidity.LPShare `json:"share"`
	AssetChange  uint64             `json:"assetChange"`
	StableChange uint64             `json:"stableChange"`
}

// AddLiquidity deposits into [poolID] and stores the minted share.
func (e *Engine) AddLiquidity(now time.Time, poolID ids.ID, assetIn, stableIn, minLPOut uint64) (*AddLiquidityResult, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	result := &AddLiquidityResult{}
	err := e.atomic("addLiquidity", func() error {
		pool, err := e.state.GetSpotPool(poolID)
		if err != nil {
			return err
		}
		result.Share, result.AssetChange, result.StableChange, err = pool.AddLiquidity(now, assetIn, stableIn, minLPOut)
		if err != nil {
			return err
		}
		if err := e.state.PutSpotPool(pool); err != nil {
			return err
		}
		return e.state.PutShare(result.Share)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.MarkLiquidity(metrics.OpAdd)
	e.log.Debug("added liquidity",
		log.Stringer("poolID", poolID),
		log.Stringer("shareID", result.Share.ID),
		log.Uint64("lp", result.Share.Amount),
	)
	return result, nil
}

// RemoveLiquidity burns the share with [shareID] for its proportional
// reserves.
func (e *Engine) RemoveLiquidity(shareID ids.ID, minAssetOut, minStableOut uint64) (uint64, uint64, error) {
	return e.burn(metrics.OpRemove, shareID, func(pool *liquidity.SpotPool, share *liquidity.LPShare) (uint64, uint64, error) {
		return pool.RemoveLiquidity(share, minAssetOut, minStableOut)
	})
}

// Dissolve redeems the share with [shareID] during wind-down. With
// [bypassMinimum] the pool may be drained completely and is closed to trading
// for good.
func (e *Engine) Dissolve(shareID ids.ID, bypassMinimum bool) (uint64, uint64, error) {
	asset, stable, err := e.burn(metrics.OpDissolve, shareID, func(pool *liquidity.SpotPool, share *liquidity.LPShare) (uint64, uint64, error) {
		return pool.RemoveLiquidityForDissolution(share, bypassMinimum)
	})
	if err == nil && bypassMinimum {
		e.log.Info("dissolved share with minimum bypassed",
			log.Stringer("shareID", shareID),
		)
	}
	return asset, stable, err
}

type burnFunc func(*liquidity.SpotPool, *liquidity.LPShare) (uint64, uint64, error)

func (e *Engine) burn(op string, shareID ids.ID, fn burnFunc) (uint64, uint64, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	var asset, stable uint64
	err := e.atomic(op, func() error {
		share, err := e.state.GetShare(shareID)
		if err != nil {
			return err
		}
		pool, err := e.state.GetSpotPool(share.PoolID)
		if err != nil {
			return err
		}
		asset, stable, err = fn(pool, share)
		if err != nil {
			return err
		}
		if err := e.state.PutSpotPool(pool); err != nil {
			return err
		}
		return e.state.PutShare(share)
	})
	if err != nil {
		return 0, 0, err
	}

	e.metrics.MarkLiquidity(op)
	return asset, stable, nil
}

// CollectProtocolFees sweeps the protocol fees accrued by [poolID].
func (e *Engine) CollectProtocolFees(poolID ids.ID) (uint64, uint64, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	var asset, stable uint64
	err := e.atomic("collectProtocolFees", func() error {
		pool, err := e.state.GetSpotPool(poolID)
		if err != nil {
			return err
		}
		asset, stable = pool.CollectProtocolFees()
		return e.state.PutSpotPool(pool)
	})
	if err != nil {
		return 0, 0, err
	}

	e.log.Info("collected protocol fees",
		log.Stringer("poolID", poolID),
		log.Uint64("asset", asset),
		log.Uint64("stable", stable),
	)
	return asset, stable, nil
}
