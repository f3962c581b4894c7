// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/futarchy/liquidity"
	"github.com/luxfi/futarchy/oracle"
	"github.com/luxfi/futarchy/quantum"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require := require.New(t)

	config := DefaultConfig()
	require.NoError(config.Verify())
	require.Equal(oracle.DefaultConfig(), config.Oracle())

	_, ok := config.FeeSchedule()
	require.False(ok)

	params := config.SpotParams(ids.GenerateTestID())
	require.Nil(params.FeeSchedule)
	pool, err := liquidity.NewSpotPool(params)
	require.NoError(err)
	require.Equal(uint16(30), pool.FeeBps)
}

func TestParse(t *testing.T) {
	require := require.New(t)

	config, err := Parse(nil)
	require.NoError(err)
	require.Equal(DefaultConfig(), config)

	config, err = Parse([]byte(`{
		"staticFeeBps": 25,
		"initialFeeBps": 9900,
		"feeDecayDuration": 3600000000000,
		"conditionalLiquidityRatioPercent": 80,
		"maxOutcomes": 4
	}`))
	require.NoError(err)
	require.Equal(uint16(25), config.StaticFeeBps)
	require.Equal(uint8(80), config.ConditionalLiquidityRatioPercent)
	require.Equal(4, config.MaxOutcomes)
	// Unset fields keep their defaults.
	require.Equal(uint16(30), config.ConditionalFeeBps)

	schedule, ok := config.FeeSchedule()
	require.True(ok)
	require.Equal(liquidity.NewFeeSchedule(9_900, time.Hour), schedule)

	params := config.SpotParams(ids.GenerateTestID())
	require.NotNil(params.FeeSchedule)
	pool, err := liquidity.NewSpotPool(params)
	require.NoError(err)
	require.Equal(uint16(9_900), pool.FeeBps)

	coordinator := config.Quantum()
	require.Equal(4, coordinator.MaxOutcomes)
	require.Equal(config.ProposalCooldown, coordinator.Cooldown)

	_, err = Parse([]byte(`{"staticFeeBps": "high"}`))
	require.Error(err)
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{
			name:   "static fee at maximum",
			modify: func(c *Config) { c.StaticFeeBps = liquidity.MaxFeeBps },
			want:   ErrInvalidFee,
		},
		{
			name:   "conditional fee at maximum",
			modify: func(c *Config) { c.ConditionalFeeBps = liquidity.MaxFeeBps },
			want:   ErrInvalidFee,
		},
		{
			name:   "lp share above 100",
			modify: func(c *Config) { c.LPFeeSharePercent = 101 },
			want:   ErrInvalidFeeSplit,
		},
		{
			name:   "zero ratio",
			modify: func(c *Config) { c.ConditionalLiquidityRatioPercent = 0 },
			want:   ErrInvalidRatio,
		},
		{
			name:   "full ratio",
			modify: func(c *Config) { c.ConditionalLiquidityRatioPercent = 100 },
			want:   ErrInvalidRatio,
		},
		{
			name:   "threshold above 100 percent",
			modify: func(c *Config) { c.OracleConditionalThresholdBps = 10_001 },
			want:   ErrInvalidThreshold,
		},
		{
			name:   "zero minimum liquidity",
			modify: func(c *Config) { c.MinimumLiquidity = 0 },
			want:   ErrInvalidMinimum,
		},
		{
			name:   "single outcome",
			modify: func(c *Config) { c.MaxOutcomes = 1 },
			want:   ErrInvalidOutcomes,
		},
		{
			name:   "too many outcomes",
			modify: func(c *Config) { c.MaxOutcomes = quantum.OutcomeLimit + 1 },
			want:   ErrInvalidOutcomes,
		},
		{
			name:   "negative cooldown",
			modify: func(c *Config) { c.ProposalCooldown = -time.Second },
			want:   ErrInvalidCooldown,
		},
		{
			name: "launch fee below static fee",
			modify: func(c *Config) {
				c.InitialFeeBps = 10
				c.FeeDecayDuration = time.Hour
			},
			want: ErrInvalidFeeSchedule,
		},
		{
			name:   "launch fee without duration",
			modify: func(c *Config) { c.InitialFeeBps = 500 },
			want:   liquidity.ErrInvalidFeeSchedule,
		},
		{
			name:   "zero short window",
			modify: func(c *Config) { c.OracleShortWindow = 0 },
			want:   oracle.ErrInvalidConfig,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := DefaultConfig()
			test.modify(&config)
			require.ErrorIs(t, config.Verify(), test.want)
		})
	}
}
