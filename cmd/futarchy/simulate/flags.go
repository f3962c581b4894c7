// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/futarchy/config"
)

const (
	ScenarioKey = "scenario"
	ConfigKey   = "config"
	VerboseKey  = "verbose"

	HTTPAddressKey        = "http-address"
	HTTPAllowedOriginsKey = "http-allowed-origins"

	StaticFeeKey      = "static-fee-bps"
	ConditionalFeeKey = "conditional-fee-bps"
	RatioKey          = "ratio-percent"
	ThresholdKey      = "threshold-bps"
	CooldownKey       = "cooldown"
)

// Engine config keys the flags above are bound to.
var flagKeys = map[string]string{
	StaticFeeKey:      "staticFeeBps",
	ConditionalFeeKey: "conditionalFeeBps",
	RatioKey:          "conditionalLiquidityRatioPercent",
	ThresholdKey:      "oracleConditionalThresholdBps",
	CooldownKey:       "proposalCooldown",
}

var errMissingScenario = errors.New("--scenario is required")

// setDefaults registers every engine key so FUTARCHY_<KEY> environment
// variables resolve, e.g. FUTARCHY_STATICFEEBPS.
func setDefaults(v *viper.Viper, c config.Config) {
	v.SetDefault("staticFeeBps", c.StaticFeeBps)
	v.SetDefault("conditionalFeeBps", c.ConditionalFeeBps)
	v.SetDefault("lpFeeSharePercent", c.LPFeeSharePercent)
	v.SetDefault("initialFeeBps", c.InitialFeeBps)
	v.SetDefault("feeDecayDuration", c.FeeDecayDuration)
	v.SetDefault("minimumLiquidity", c.MinimumLiquidity)
	v.SetDefault("conditionalLiquidityRatioPercent", c.ConditionalLiquidityRatioPercent)
	v.SetDefault("oracleConditionalThresholdBps", c.OracleConditionalThresholdBps)
	v.SetDefault("proposalCooldown", c.ProposalCooldown)
	v.SetDefault("maxOutcomes", c.MaxOutcomes)
	v.SetDefault("oracleLongWindow", c.OracleLongWindow)
	v.SetDefault("oracleShortWindow", c.OracleShortWindow)
	v.SetDefault("oracleMaxMovementBps", c.OracleMaxMovementBps)
	v.SetDefault("oracleCheckpointInterval", c.OracleCheckpointInterval)
	v.SetDefault("oracleMinHistory", c.OracleMinHistory)
	v.SetDefault("cacheSize", c.CacheSize)
}

func AddFlags(flags *pflag.FlagSet) {
	defaults := config.DefaultConfig()
	flags.String(ScenarioKey, "", "Scenario file to replay (required)")
	flags.String(ConfigKey, "", "Engine config file (yaml, json or toml)")
	flags.Bool(VerboseKey, false, "Log engine operations")
	flags.String(HTTPAddressKey, "", "Serve the read-only API on this address after the replay")
	flags.StringSlice(HTTPAllowedOriginsKey, []string{"*"}, "Origins allowed to call the API")
	flags.Uint16(StaticFeeKey, defaults.StaticFeeBps, "Spot swap fee in basis points")
	flags.Uint16(ConditionalFeeKey, defaults.ConditionalFeeBps, "Conditional swap fee in basis points")
	flags.Uint8(RatioKey, defaults.ConditionalLiquidityRatioPercent, "Share of spot liquidity moved into conditional pools")
	flags.Uint16(ThresholdKey, defaults.OracleConditionalThresholdBps, "Ratio above which conditional prices are authoritative")
	flags.Duration(CooldownKey, defaults.ProposalCooldown, "Minimum time between proposals")
}

type Config struct {
	Scenario       string
	Verbose        bool
	HTTPAddress    string
	AllowedOrigins []string
	Engine         config.Config
}

// ParseFlags merges the config file, FUTARCHY_* environment variables and
// flags over the default engine config. Flags win.
func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("FUTARCHY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v, config.DefaultConfig())

	for flag, key := range flagKeys {
		f := flags.Lookup(flag)
		if !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	cfgFile, err := flags.GetString(ConfigKey)
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	engine := config.DefaultConfig()
	if err := v.Unmarshal(&engine); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := engine.Verify(); err != nil {
		return nil, err
	}

	scenario, err := flags.GetString(ScenarioKey)
	if err != nil {
		return nil, err
	}
	if scenario == "" {
		return nil, errMissingScenario
	}
	verbose, err := flags.GetBool(VerboseKey)
	if err != nil {
		return nil, err
	}
	address, err := flags.GetString(HTTPAddressKey)
	if err != nil {
		return nil, err
	}
	origins, err := flags.GetStringSlice(HTTPAllowedOriginsKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		Scenario:       scenario,
		Verbose:        verbose,
		HTTPAddress:    address,
		AllowedOrigins: origins,
		Engine:         engine,
	}, nil
}
