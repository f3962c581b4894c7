// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var t0 = time.Unix(1_700_000_000, 0)

// unclamped has no movement cap and short history requirements.
func unclamped() Config {
	return Config{
		LongWindow:         90 * 24 * time.Hour,
		ShortWindow:        time.Minute,
		CheckpointInterval: time.Hour,
		MinHistory:         time.Hour,
	}
}

func TestConfigVerify(t *testing.T) {
	require := require.New(t)

	require.NoError(DefaultConfig().Verify())

	cfg := DefaultConfig()
	cfg.ShortWindow = 0
	require.ErrorIs(cfg.Verify(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.CheckpointInterval = cfg.LongWindow + time.Second
	require.ErrorIs(cfg.Verify(), ErrInvalidConfig)
}

func TestUninitialized(t *testing.T) {
	require := require.New(t)

	o := New(DefaultConfig())
	_, err := o.TWAP(t0, time.Hour)
	require.ErrorIs(err, ErrUninitialized)
	_, err = o.CumulativeAt(t0)
	require.ErrorIs(err, ErrUninitialized)
	require.False(o.IsReady(t0))

	require.NoError(o.Write(t0, 42))
	require.True(o.Initialized)
	require.Equal(uint64(42), o.LastPrice)
}

func TestTWAP(t *testing.T) {
	require := require.New(t)

	o := New(unclamped())
	o.Init(t0, 100)
	require.NoError(o.Write(t0.Add(time.Hour), 300))

	twap, err := o.TWAP(t0.Add(2*time.Hour), 2*time.Hour)
	require.NoError(err)
	require.Equal(uint64(200), twap)

	twap, err = o.TWAP(t0.Add(2*time.Hour), time.Hour)
	require.NoError(err)
	require.Equal(uint64(300), twap)

	// Windows longer than the history are shortened to it.
	twap, err = o.TWAP(t0.Add(2*time.Hour), 30*24*time.Hour)
	require.NoError(err)
	require.Equal(uint64(200), twap)

	twap, err = o.TWAP(t0, time.Hour)
	require.NoError(err)
	require.Equal(uint64(100), twap)
}

func TestMovementClamp(t *testing.T) {
	require := require.New(t)

	o := New(DefaultConfig())
	o.Init(t0, 1_000)

	// 1% per short window.
	require.NoError(o.Write(t0.Add(30*time.Second), 2_000))
	require.Equal(uint64(1_010), o.LastPrice)

	// Five windows allow five steps.
	require.NoError(o.Write(t0.Add(30*time.Second+5*time.Minute), 0))
	require.Equal(uint64(960), o.LastPrice)

	require.NoError(o.Write(t0.Add(time.Hour), 970))
	require.Equal(uint64(970), o.LastPrice)
}

func TestTimestampRegression(t *testing.T) {
	require := require.New(t)

	o := New(DefaultConfig())
	o.Init(t0, 1_000)
	require.ErrorIs(o.Write(t0.Add(-time.Millisecond), 1_000), ErrTimestampRegression)
	require.NoError(o.Write(t0, 1_000))
}

func TestIsReady(t *testing.T) {
	require := require.New(t)

	o := New(unclamped())
	o.Init(t0, 100)

	require.False(o.IsReady(t0.Add(59 * time.Minute)))
	_, err := o.LongTWAP(t0.Add(59 * time.Minute))
	require.ErrorIs(err, ErrNotReady)

	require.True(o.IsReady(t0.Add(time.Hour)))
	twap, err := o.LongTWAP(t0.Add(time.Hour))
	require.NoError(err)
	require.Equal(uint64(100), twap)
}

func TestFreezeAndReconcile(t *testing.T) {
	require := require.New(t)

	o := New(unclamped())
	o.Init(t0, 100)
	require.NoError(o.Freeze(t0.Add(time.Hour), 300))
	require.True(o.Frozen)

	frozen, err := o.CumulativeAt(t0.Add(time.Hour))
	require.NoError(err)
	later, err := o.CumulativeAt(t0.Add(5 * time.Hour))
	require.NoError(err)
	require.Equal(frozen, later)

	// Writes while frozen are ignored.
	require.NoError(o.Write(t0.Add(2*time.Hour), 5_000))
	require.Equal(uint64(300), o.LastPrice)

	twap, err := o.TWAP(t0.Add(5*time.Hour), 24*time.Hour)
	require.NoError(err)
	require.Equal(uint64(100), twap)

	// Fill two hours at 500 from another oracle.
	gap := uint256.NewInt(500 * uint64(2*time.Hour/time.Millisecond))
	require.NoError(o.Reconcile(t0.Add(3*time.Hour), gap, 700))
	require.False(o.Frozen)
	require.Equal(uint64(700), o.LastPrice)

	twap, err = o.TWAP(t0.Add(3*time.Hour), 3*time.Hour)
	require.NoError(err)
	require.Equal(uint64((100+2*500)/3), twap)

	require.ErrorIs(o.Reconcile(t0.Add(4*time.Hour), gap, 1), ErrNotFrozen)
}

func TestCheckpointPruning(t *testing.T) {
	require := require.New(t)

	cfg := unclamped()
	cfg.LongWindow = 2 * time.Hour
	o := New(cfg)
	o.Init(t0, 100)
	for h := 1; h <= 10; h++ {
		require.NoError(o.Write(t0.Add(time.Duration(h)*time.Hour), 100))
	}
	require.Len(o.Checkpoints, 3)
	require.Equal(t0.Add(8*time.Hour).UnixMilli(), o.Checkpoints[0].Timestamp)

	twap, err := o.TWAP(t0.Add(10*time.Hour), 2*time.Hour)
	require.NoError(err)
	require.Equal(uint64(100), twap)
}

func TestClone(t *testing.T) {
	require := require.New(t)

	o := New(unclamped())
	o.Init(t0, 100)
	c := o.Clone()
	require.NoError(c.Write(t0.Add(2*time.Hour), 200))
	require.Len(o.Checkpoints, 1)
	require.Len(c.Checkpoints, 2)
	require.Equal(uint64(100), o.LastPrice)
}
