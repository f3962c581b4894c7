// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"errors"

	"github.com/luxfi/metric"

	"github.com/luxfi/futarchy/liquidity"
)

const (
	venueLabel  = "venue"
	opLabel     = "op"
	reasonLabel = "reason"

	VenueSpot        = "spot"
	VenueConditional = "conditional"

	OpAdd      = "add"
	OpRemove   = "remove"
	OpWithdraw = "withdraw"
	OpDissolve = "dissolve"
)

var _ Metrics = (*metricsImpl)(nil)

type Metrics interface {
	// MarkSwap records a user swap on [venue].
	MarkSwap(venue string, amountIn uint64)
	// MarkArbitrage records a rebalancing pass and the trade it executed,
	// if any.
	MarkArbitrage(amount, profit uint64)
	MarkLiquidity(op string)
	MarkSplit(outcomes int)
	MarkRecombine(outcomes int)
	// MarkRejected counts a failed operation by its error kind.
	MarkRejected(err error)
}

type metricsImpl struct {
	swaps        metric.CounterVec
	swapVolume   metric.CounterVec
	liquidityOps metric.CounterVec
	rejected     metric.CounterVec

	arbitragePasses metric.Counter
	arbitrageTrades metric.Counter
	arbitrageProfit metric.Counter
	splits          metric.Counter
	recombines      metric.Counter
	activeOutcomes  metric.Gauge
}

func New(registerer metric.Registerer) (Metrics, error) {
	m := &metricsImpl{
		swaps: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "swaps",
				Help: "Number of user swaps",
			},
			[]string{venueLabel},
		),
		swapVolume: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "swap_volume",
				Help: "Total input amount of user swaps",
			},
			[]string{venueLabel},
		),
		liquidityOps: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "liquidity_ops",
				Help: "Number of LP deposits, withdrawals and dissolution redemptions",
			},
			[]string{opLabel},
		),
		rejected: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "rejected_ops",
				Help: "Number of operations rejected, by error kind",
			},
			[]string{reasonLabel},
		),
		arbitragePasses: metric.NewCounter(metric.CounterOpts{
			Name: "arbitrage_passes",
			Help: "Number of rebalancing passes run after swaps",
		}),
		arbitrageTrades: metric.NewCounter(metric.CounterOpts{
			Name: "arbitrage_trades",
			Help: "Number of rebalancing passes that executed a trade",
		}),
		arbitrageProfit: metric.NewCounter(metric.CounterOpts{
			Name: "arbitrage_profit",
			Help: "Total stable profit of rebalancing trades",
		}),
		splits: metric.NewCounter(metric.CounterOpts{
			Name: "quantum_splits",
			Help: "Number of spot pools split into conditional pools",
		}),
		recombines: metric.NewCounter(metric.CounterOpts{
			Name: "quantum_recombines",
			Help: "Number of conditional pool sets recombined into spot",
		}),
		activeOutcomes: metric.NewGauge(metric.GaugeOpts{
			Name: "active_conditional_pools",
			Help: "Number of conditional pools currently trading",
		}),
	}

	err := errors.Join(
		registerer.Register(metric.AsCollector(m.swaps)),
		registerer.Register(metric.AsCollector(m.swapVolume)),
		registerer.Register(metric.AsCollector(m.liquidityOps)),
		registerer.Register(metric.AsCollector(m.rejected)),
		registerer.Register(metric.AsCollector(m.arbitragePasses)),
		registerer.Register(metric.AsCollector(m.arbitrageTrades)),
		registerer.Register(metric.AsCollector(m.arbitrageProfit)),
		registerer.Register(metric.AsCollector(m.splits)),
		registerer.Register(metric.AsCollector(m.recombines)),
		registerer.Register(metric.AsCollector(m.activeOutcomes)),
	)
	return m, err
}

func (m *metricsImpl) MarkSwap(venue string, amountIn uint64) {
	labels := metric.Labels{venueLabel: venue}
	m.swaps.With(labels).Inc()
	m.swapVolume.With(labels).Add(float64(amountIn))
}

func (m *metricsImpl) MarkArbitrage(amount, profit uint64) {
	m.arbitragePasses.Inc()
	if amount == 0 {
		return
	}
	m.arbitrageTrades.Inc()
	m.arbitrageProfit.Add(float64(profit))
}

func (m *metricsImpl) MarkLiquidity(op string) {
	m.liquidityOps.With(metric.Labels{opLabel: op}).Inc()
}

func (m *metricsImpl) MarkSplit(outcomes int) {
	m.splits.Inc()
	m.activeOutcomes.Add(float64(outcomes))
}

func (m *metricsImpl) MarkRecombine(outcomes int) {
	m.recombines.Inc()
	m.activeOutcomes.Add(-float64(outcomes))
}

func (m *metricsImpl) MarkRejected(err error) {
	m.rejected.With(metric.Labels{reasonLabel: Reason(err)}).Inc()
}

// Reason maps an error to its kind label.
func Reason(err error) string {
	switch {
	case errors.Is(err, liquidity.ErrInputValidation):
		return "input_validation"
	case errors.Is(err, liquidity.ErrSlippageExceeded):
		return "slippage_exceeded"
	case errors.Is(err, liquidity.ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, liquidity.ErrIdentityMismatch):
		return "identity_mismatch"
	default:
		return "other"
	}
}
