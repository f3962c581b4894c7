// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle implements the time-weighted price accumulator attached to
// spot and conditional pools.
//
// The oracle keeps a cumulative price×time integral that is advanced on every
// observation. Each observation may move the recorded price by at most
// MaxMovementBps per short window, which bounds what a single trade can do to
// the average. Checkpoints of the integral are kept for the long window so a
// time-weighted average over up to LongWindow can be read at any time.
package oracle

import (
	"errors"
	"time"

	"github.com/holiman/uint256"
)

var (
	ErrInvalidConfig       = errors.New("invalid oracle config")
	ErrUninitialized       = errors.New("oracle not initialized")
	ErrNotReady            = errors.New("oracle history too short")
	ErrTimestampRegression = errors.New("observation before last update")
	ErrNotFrozen           = errors.New("oracle is not frozen")
)

const (
	// BpsDenominator scales MaxMovementBps.
	BpsDenominator = 10_000

	DefaultLongWindow         = 90 * 24 * time.Hour
	DefaultShortWindow        = time.Minute
	DefaultMaxMovementBps     = 100 // 1% per short window
	DefaultCheckpointInterval = 6 * time.Hour
	DefaultMinHistory         = 24 * time.Hour
)

// Config holds the oracle parameters. They are copied into every Oracle so a
// persisted oracle is self-describing.
type Config struct {
	LongWindow         time.Duration `json:"longWindow"`
	ShortWindow        time.Duration `json:"shortWindow"`
	MaxMovementBps     uint64        `json:"maxMovementBps"`
	CheckpointInterval time.Duration `json:"checkpointInterval"`
	MinHistory         time.Duration `json:"minHistory"`
}

// DefaultConfig returns the governance-grade defaults.
func DefaultConfig() Config {
	return Config{
		LongWindow:         DefaultLongWindow,
		ShortWindow:        DefaultShortWindow,
		MaxMovementBps:     DefaultMaxMovementBps,
		CheckpointInterval: DefaultCheckpointInterval,
		MinHistory:         DefaultMinHistory,
	}
}

// Verify checks that the durations are usable.
func (c Config) Verify() error {
	switch {
	case c.LongWindow <= 0, c.ShortWindow <= 0, c.CheckpointInterval <= 0:
		return ErrInvalidConfig
	case c.CheckpointInterval > c.LongWindow, c.MinHistory < 0:
		return ErrInvalidConfig
	default:
		return nil
	}
}

// Checkpoint is a snapshot of the cumulative integral.
type Checkpoint struct {
	Timestamp  int64       `serialize:"true" json:"timestamp"`
	Cumulative uint256.Int `serialize:"true" json:"cumulative"`
}

// Oracle is the accumulator state. Timestamps are unix milliseconds and the
// integral is price × milliseconds. Arithmetic on the integral wraps modulo
// 2^256, so differences stay correct even after overflow.
type Oracle struct {
	LongWindowMs         int64  `serialize:"true" json:"longWindowMs"`
	ShortWindowMs        int64  `serialize:"true" json:"shortWindowMs"`
	MaxMovementBps       uint64 `serialize:"true" json:"maxMovementBps"`
	CheckpointIntervalMs int64  `serialize:"true" json:"checkpointIntervalMs"`
	MinHistoryMs         int64  `serialize:"true" json:"minHistoryMs"`

	Initialized   bool         `serialize:"true" json:"initialized"`
	Frozen        bool         `serialize:"true" json:"frozen"`
	InitTimestamp int64        `serialize:"true" json:"initTimestamp"`
	LastTimestamp int64        `serialize:"true" json:"lastTimestamp"`
	LastPrice     uint64       `serialize:"true" json:"lastPrice"`
	Cumulative    uint256.Int  `serialize:"true" json:"cumulative"`
	Checkpoints   []Checkpoint `serialize:"true" json:"checkpoints"`
}

// New returns an uninitialized oracle with the given parameters. The first
// Write (or Init) starts the history.
func New(cfg Config) Oracle {
	return Oracle{
		LongWindowMs:         cfg.LongWindow.Milliseconds(),
		ShortWindowMs:        cfg.ShortWindow.Milliseconds(),
		MaxMovementBps:       cfg.MaxMovementBps,
		CheckpointIntervalMs: cfg.CheckpointInterval.Milliseconds(),
		MinHistoryMs:         cfg.MinHistory.Milliseconds(),
	}
}

// Init starts the history at [now] with [price] as the first observation.
func (o *Oracle) Init(now time.Time, price uint64) {
	ts := now.UnixMilli()
	o.Initialized = true
	o.Frozen = false
	o.InitTimestamp = ts
	o.LastTimestamp = ts
	o.LastPrice = price
	o.Cumulative.Clear()
	o.Checkpoints = []Checkpoint{{Timestamp: ts}}
}

// Clone returns a deep copy.
func (o Oracle) Clone() Oracle {
	o.Checkpoints = append([]Checkpoint(nil), o.Checkpoints...)
	return o
}

// LastUpdate returns the time of the last observation.
func (o *Oracle) LastUpdate() time.Time {
	return time.UnixMilli(o.LastTimestamp)
}

// Write records an observation. The recorded price is clamped to the allowed
// movement from the previous price. Writes to a frozen oracle are ignored.
func (o *Oracle) Write(now time.Time, price uint64) error {
	if !o.Initialized {
		o.Init(now, price)
		return nil
	}
	if o.Frozen {
		return nil
	}
	ts := now.UnixMilli()
	if ts < o.LastTimestamp {
		return ErrTimestampRegression
	}

	elapsed := ts - o.LastTimestamp
	o.accumulate(ts)
	o.LastPrice = o.clamp(price, elapsed)
	o.checkpoint(ts)
	return nil
}

// Freeze records a final observation at [now] and stops accumulation.
func (o *Oracle) Freeze(now time.Time, price uint64) error {
	if err := o.Write(now, price); err != nil {
		return err
	}
	o.Frozen = true
	return nil
}

// Reconcile unfreezes the oracle at [now]. The gap since the freeze is filled
// with [gap], an integral over the same interval taken from another oracle,
// and [price] becomes the current price without clamping.
func (o *Oracle) Reconcile(now time.Time, gap *uint256.Int, price uint64) error {
	if !o.Frozen {
		return ErrNotFrozen
	}
	ts := now.UnixMilli()
	if ts < o.LastTimestamp {
		return ErrTimestampRegression
	}
	o.Cumulative.Add(&o.Cumulative, gap)
	o.LastTimestamp = ts
	o.LastPrice = price
	o.Frozen = false
	o.checkpoint(ts)
	return nil
}

// CumulativeAt returns the integral at [now]. A frozen oracle returns the
// integral at the freeze.
func (o *Oracle) CumulativeAt(now time.Time) (*uint256.Int, error) {
	if !o.Initialized {
		return nil, ErrUninitialized
	}
	return o.cumulativeAt(o.effectiveTime(now.UnixMilli()))
}

// IsReady reports whether enough history exists for the long window.
func (o *Oracle) IsReady(now time.Time) bool {
	return o.Initialized && o.effectiveTime(now.UnixMilli())-o.InitTimestamp >= o.MinHistoryMs
}

// TWAP returns the time-weighted average price over the [window] ending at
// [now], or at the freeze if the oracle is frozen. Windows longer than the
// available history are shortened to it.
func (o *Oracle) TWAP(now time.Time, window time.Duration) (uint64, error) {
	if !o.Initialized {
		return 0, ErrUninitialized
	}
	end := o.effectiveTime(now.UnixMilli())
	cumEnd, err := o.cumulativeAt(end)
	if err != nil {
		return 0, err
	}
	start := o.startCheckpoint(end - window.Milliseconds())
	duration := end - start.Timestamp
	if duration <= 0 {
		return o.LastPrice, nil
	}

	sum := new(uint256.Int).Sub(cumEnd, &start.Cumulative)
	sum.Div(sum, uint256.NewInt(uint64(duration)))
	if !sum.IsUint64() {
		return 0, ErrInvalidConfig
	}
	return sum.Uint64(), nil
}

// LongTWAP returns the governance-grade average over the long window. It
// fails until IsReady.
func (o *Oracle) LongTWAP(now time.Time) (uint64, error) {
	if !o.IsReady(now) {
		return 0, ErrNotReady
	}
	return o.TWAP(now, time.Duration(o.LongWindowMs)*time.Millisecond)
}

// effectiveTime pins reads of a frozen oracle to the freeze.
func (o *Oracle) effectiveTime(ts int64) int64 {
	if o.Frozen || ts < o.LastTimestamp {
		return o.LastTimestamp
	}
	return ts
}

func (o *Oracle) cumulativeAt(ts int64) (*uint256.Int, error) {
	if ts < o.LastTimestamp {
		return nil, ErrTimestampRegression
	}
	cum := o.Cumulative.Clone()
	if o.Frozen {
		return cum, nil
	}
	delta := new(uint256.Int).Mul(uint256.NewInt(o.LastPrice), uint256.NewInt(uint64(ts-o.LastTimestamp)))
	return cum.Add(cum, delta), nil
}

// Must be called before LastPrice/LastTimestamp are updated.
func (o *Oracle) accumulate(ts int64) {
	delta := new(uint256.Int).Mul(uint256.NewInt(o.LastPrice), uint256.NewInt(uint64(ts-o.LastTimestamp)))
	o.Cumulative.Add(&o.Cumulative, delta)
	o.LastTimestamp = ts
}

func (o *Oracle) clamp(price uint64, elapsed int64) uint64 {
	if o.MaxMovementBps == 0 || o.LastPrice == 0 {
		return price
	}
	steps := uint64(1)
	if o.ShortWindowMs > 0 && elapsed > o.ShortWindowMs {
		steps = uint64(elapsed / o.ShortWindowMs)
	}

	maxDelta := new(uint256.Int).Mul(uint256.NewInt(o.LastPrice), uint256.NewInt(o.MaxMovementBps))
	maxDelta.Mul(maxDelta, uint256.NewInt(steps))
	maxDelta.Div(maxDelta, uint256.NewInt(BpsDenominator))

	last := uint256.NewInt(o.LastPrice)
	upper := new(uint256.Int).Add(last, maxDelta)
	if p := uint256.NewInt(price); p.Gt(upper) {
		if !upper.IsUint64() {
			return price
		}
		return upper.Uint64()
	}
	if maxDelta.Lt(last) {
		lower := new(uint256.Int).Sub(last, maxDelta).Uint64()
		if price < lower {
			return lower
		}
	}
	return price
}

// checkpoint appends a snapshot when an interval has passed and prunes
// snapshots that can no longer serve as the start of a long window.
func (o *Oracle) checkpoint(ts int64) {
	n := len(o.Checkpoints)
	if n > 0 && ts-o.Checkpoints[n-1].Timestamp < o.CheckpointIntervalMs {
		return
	}
	o.Checkpoints = append(o.Checkpoints, Checkpoint{
		Timestamp:  ts,
		Cumulative: o.Cumulative,
	})

	cutoff := ts - o.LongWindowMs
	drop := 0
	for drop+1 < len(o.Checkpoints) && o.Checkpoints[drop+1].Timestamp <= cutoff {
		drop++
	}
	if drop > 0 {
		o.Checkpoints = append(o.Checkpoints[:0], o.Checkpoints[drop:]...)
	}
}

// startCheckpoint returns the earliest checkpoint at or after [start], or the
// latest one when none qualifies.
func (o *Oracle) startCheckpoint(start int64) Checkpoint {
	for _, cp := range o.Checkpoints {
		if cp.Timestamp >= start {
			return cp
		}
	}
	return o.Checkpoints[len(o.Checkpoints)-1]
}
