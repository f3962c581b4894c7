// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/luxfi/futarchy/arbitrage"
)

const (
	SpotKey           = "spot"
	SpotFeeKey        = "spot-fee-bps"
	ConditionalKey    = "conditional"
	ConditionalFeeKey = "conditional-fee-bps"
)

var errInvalidReserves = errors.New("reserves must be given as asset:stable")

func AddFlags(flags *pflag.FlagSet) {
	flags.String(SpotKey, "", "Spot reserves as asset:stable (required)")
	flags.Uint16(SpotFeeKey, 30, "Spot swap fee in basis points")
	flags.StringSlice(ConditionalKey, nil, "Conditional reserves as asset:stable, one per outcome (required)")
	flags.Uint16(ConditionalFeeKey, 30, "Conditional swap fee in basis points")
}

type Config struct {
	Spot         arbitrage.Pool
	Conditionals []arbitrage.Pool
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	spotStr, err := flags.GetString(SpotKey)
	if err != nil {
		return nil, err
	}
	spotFee, err := flags.GetUint16(SpotFeeKey)
	if err != nil {
		return nil, err
	}
	spot, err := parsePool(spotStr, spotFee)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", SpotKey, err)
	}

	condStrs, err := flags.GetStringSlice(ConditionalKey)
	if err != nil {
		return nil, err
	}
	if len(condStrs) == 0 {
		return nil, fmt.Errorf("--%s is required", ConditionalKey)
	}
	condFee, err := flags.GetUint16(ConditionalFeeKey)
	if err != nil {
		return nil, err
	}
	conditionals := make([]arbitrage.Pool, len(condStrs))
	for i, s := range condStrs {
		conditionals[i], err = parsePool(s, condFee)
		if err != nil {
			return nil, fmt.Errorf("--%s %d: %w", ConditionalKey, i, err)
		}
	}

	return &Config{
		Spot:         spot,
		Conditionals: conditionals,
	}, nil
}

func parsePool(s string, feeBps uint16) (arbitrage.Pool, error) {
	assetStr, stableStr, ok := strings.Cut(s, ":")
	if !ok {
		return arbitrage.Pool{}, errInvalidReserves
	}
	asset, err := strconv.ParseUint(strings.TrimSpace(assetStr), 10, 64)
	if err != nil {
		return arbitrage.Pool{}, fmt.Errorf("%w: %w", errInvalidReserves, err)
	}
	stable, err := strconv.ParseUint(strings.TrimSpace(stableStr), 10, 64)
	if err != nil {
		return arbitrage.Pool{}, fmt.Errorf("%w: %w", errInvalidReserves, err)
	}
	return arbitrage.Pool{
		AssetReserve:  asset,
		StableReserve: stable,
		FeeBps:        feeBps,
	}, nil
}
