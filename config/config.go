// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/futarchy/liquidity"
	"github.com/luxfi/futarchy/oracle"
	"github.com/luxfi/futarchy/quantum"
)

var (
	ErrInvalidFee         = errors.New("invalid fee")
	ErrInvalidRatio       = errors.New("conditional liquidity ratio must be in [1, 99]")
	ErrInvalidThreshold   = errors.New("oracle conditional threshold exceeds 10000 bps")
	ErrInvalidFeeSplit    = errors.New("lp fee share exceeds 100 percent")
	ErrInvalidMinimum     = errors.New("minimum liquidity must be positive")
	ErrInvalidOutcomes    = errors.New("max outcomes must be in [2, 64]")
	ErrInvalidCooldown    = errors.New("proposal cooldown must not be negative")
	ErrInvalidFeeSchedule = errors.New("invalid launch fee schedule")
)

// Config contains futarchy engine configuration.
type Config struct {
	// Swap fees
	StaticFeeBps      uint16 `json:"staticFeeBps"`      // Spot swap fee after launch
	ConditionalFeeBps uint16 `json:"conditionalFeeBps"` // Conditional pool swap fee
	LPFeeSharePercent uint8  `json:"lpFeeSharePercent"` // Part of every fee left in the pool

	// Launch fee schedule. Disabled when InitialFeeBps is zero.
	InitialFeeBps    uint16        `json:"initialFeeBps"`
	FeeDecayDuration time.Duration `json:"feeDecayDuration"`

	// Liquidity
	MinimumLiquidity                 uint64 `json:"minimumLiquidity"`                 // LP locked forever on first deposit
	ConditionalLiquidityRatioPercent uint8  `json:"conditionalLiquidityRatioPercent"` // Spot share moved into conditional pools
	OracleConditionalThresholdBps    uint16 `json:"oracleConditionalThresholdBps"`    // Ratio above which conditional prices are authoritative

	// Proposals
	ProposalCooldown time.Duration `json:"proposalCooldown"`
	MaxOutcomes      int           `json:"maxOutcomes"`

	// Oracle
	OracleLongWindow         time.Duration `json:"oracleLongWindow"`
	OracleShortWindow        time.Duration `json:"oracleShortWindow"`
	OracleMaxMovementBps     uint64        `json:"oracleMaxMovementBps"`
	OracleCheckpointInterval time.Duration `json:"oracleCheckpointInterval"`
	OracleMinHistory         time.Duration `json:"oracleMinHistory"`

	// State
	CacheSize int `json:"cacheSize"`
}

// DefaultConfig returns default futarchy configuration.
func DefaultConfig() Config {
	return Config{
		StaticFeeBps:      30, // 0.3%
		ConditionalFeeBps: 30, // 0.3%
		LPFeeSharePercent: liquidity.DefaultLPFeeSharePercent,

		MinimumLiquidity:                 liquidity.DefaultMinimumLiquidity,
		ConditionalLiquidityRatioPercent: 50,
		OracleConditionalThresholdBps:    5_000, // 50%

		ProposalCooldown: quantum.DefaultCooldown,
		MaxOutcomes:      quantum.DefaultMaxOutcomes,

		OracleLongWindow:         oracle.DefaultLongWindow,
		OracleShortWindow:        oracle.DefaultShortWindow,
		OracleMaxMovementBps:     oracle.DefaultMaxMovementBps,
		OracleCheckpointInterval: oracle.DefaultCheckpointInterval,
		OracleMinHistory:         oracle.DefaultMinHistory,

		CacheSize: 1024,
	}
}

// Parse decodes [b] over the defaults. Empty input yields the defaults.
func Parse(b []byte) (Config, error) {
	config := DefaultConfig()
	if len(b) > 0 {
		if err := json.Unmarshal(b, &config); err != nil {
			return Config{}, fmt.Errorf("couldn't parse config: %w", err)
		}
	}
	return config, config.Verify()
}

// Verify checks the configuration for consistency.
func (c Config) Verify() error {
	switch {
	case c.StaticFeeBps >= liquidity.MaxFeeBps, c.ConditionalFeeBps >= liquidity.MaxFeeBps:
		return ErrInvalidFee
	case c.LPFeeSharePercent > 100:
		return ErrInvalidFeeSplit
	case c.ConditionalLiquidityRatioPercent < 1 || c.ConditionalLiquidityRatioPercent > 99:
		return ErrInvalidRatio
	case c.OracleConditionalThresholdBps > liquidity.BpsDenominator:
		return ErrInvalidThreshold
	case c.MinimumLiquidity == 0:
		return ErrInvalidMinimum
	case c.MaxOutcomes < 2 || c.MaxOutcomes > quantum.OutcomeLimit:
		return ErrInvalidOutcomes
	case c.ProposalCooldown < 0:
		return ErrInvalidCooldown
	}
	if schedule, ok := c.FeeSchedule(); ok {
		if err := schedule.Verify(c.StaticFeeBps); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFeeSchedule, err)
		}
	}
	return c.Oracle().Verify()
}

// FeeSchedule returns the launch fee schedule, if one is configured.
func (c Config) FeeSchedule() (liquidity.FeeSchedule, bool) {
	if c.InitialFeeBps == 0 {
		return liquidity.FeeSchedule{}, false
	}
	return liquidity.NewFeeSchedule(c.InitialFeeBps, c.FeeDecayDuration), true
}

// Oracle returns the oracle parameters.
func (c Config) Oracle() oracle.Config {
	return oracle.Config{
		LongWindow:         c.OracleLongWindow,
		ShortWindow:        c.OracleShortWindow,
		MaxMovementBps:     c.OracleMaxMovementBps,
		CheckpointInterval: c.OracleCheckpointInterval,
		MinHistory:         c.OracleMinHistory,
	}
}

// SpotParams returns the parameters of a new spot pool with [poolID].
func (c Config) SpotParams(poolID ids.ID) liquidity.SpotParams {
	params := liquidity.SpotParams{
		ID:                               poolID,
		FeeBps:                           c.StaticFeeBps,
		OracleConditionalThresholdBps:    c.OracleConditionalThresholdBps,
		ConditionalLiquidityRatioPercent: c.ConditionalLiquidityRatioPercent,
		MinimumLiquidity:                 c.MinimumLiquidity,
		LPFeeSharePercent:                c.LPFeeSharePercent,
		Oracle:                           c.Oracle(),
	}
	if schedule, ok := c.FeeSchedule(); ok {
		params.FeeSchedule = &schedule
	}
	return params
}

// Quantum returns the split/recombine coordinator parameters.
func (c Config) Quantum() quantum.Config {
	return quantum.Config{
		Cooldown:          c.ProposalCooldown,
		MaxOutcomes:       c.MaxOutcomes,
		ConditionalFeeBps: c.ConditionalFeeBps,
		Oracle:            c.Oracle(),
	}
}
