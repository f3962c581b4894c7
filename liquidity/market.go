// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package liquidity

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	safemath "github.com/luxfi/math"

	"github.com/luxfi/futarchy/oracle"
)

// Direction is the side of a swap.
type Direction uint8

const (
	AssetToStable Direction = iota // sell the governance asset
	StableToAsset                  // buy the governance asset
)

func (d Direction) String() string {
	switch d {
	case AssetToStable:
		return "asset_to_stable"
	case StableToAsset:
		return "stable_to_asset"
	default:
		return "unknown"
	}
}

// ParseDirection parses the String form of a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "asset_to_stable", "sell":
		return AssetToStable, nil
	case "stable_to_asset", "buy":
		return StableToAsset, nil
	default:
		return 0, fmt.Errorf("%w: unknown direction %q", ErrInputValidation, s)
	}
}

// SwapResult contains the result of a swap or a swap quote.
type SwapResult struct {
	Direction   Direction `json:"direction"`
	AmountIn    uint64    `json:"amountIn"`
	AmountOut   uint64    `json:"amountOut"`
	Fee         uint64    `json:"fee"`
	LPFee       uint64    `json:"lpFee"`
	ProtocolFee uint64    `json:"protocolFee"`
	PriceImpact uint64    `json:"priceImpact"` // In basis points
}

// Market is the constant-product state shared by spot and conditional pools.
type Market struct {
	AssetReserve      uint64 `serialize:"true" json:"assetReserve"`
	StableReserve     uint64 `serialize:"true" json:"stableReserve"`
	FeeBps            uint16 `serialize:"true" json:"feeBps"`
	LPFeeSharePercent uint8  `serialize:"true" json:"lpFeeSharePercent"`

	// Protocol share of fees, held outside the reserves.
	ProtocolFeesAsset  uint64 `serialize:"true" json:"protocolFeesAsset"`
	ProtocolFeesStable uint64 `serialize:"true" json:"protocolFeesStable"`

	// Statistics
	VolumeAsset  uint64 `serialize:"true" json:"volumeAsset"`
	VolumeStable uint64 `serialize:"true" json:"volumeStable"`
	TxCount      uint64 `serialize:"true" json:"txCount"`

	Oracle oracle.Oracle `serialize:"true" json:"oracle"`
}

// Reserves returns (asset, stable).
func (m *Market) Reserves() (uint64, uint64) {
	return m.AssetReserve, m.StableReserve
}

// Price returns the marginal price in stable per asset, scaled by PriceScale.
func (m *Market) Price() uint64 {
	return Price(m.AssetReserve, m.StableReserve)
}

func (m *Market) clone() Market {
	c := *m
	c.Oracle = m.Oracle.Clone()
	return c
}

// quote computes a swap without mutating the market.
func (m *Market) quote(dir Direction, amountIn uint64, feeBps uint16) (*SwapResult, error) {
	if feeBps >= MaxFeeBps {
		return nil, ErrTradingDisabled
	}
	if amountIn == 0 {
		return nil, ErrZeroAmount
	}

	reserveIn, reserveOut := m.AssetReserve, m.StableReserve
	if dir == StableToAsset {
		reserveIn, reserveOut = reserveOut, reserveIn
	}
	if reserveIn == 0 || reserveOut == 0 {
		return nil, ErrInsufficientLiquidity
	}

	fee := FeeAmount(amountIn, feeBps)
	lpFee, _ := MulDiv(fee, uint64(m.LPFeeSharePercent), 100)
	amountOut := GetAmountOut(amountIn, reserveIn, reserveOut, feeBps)
	if amountOut == 0 {
		return nil, ErrZeroOutput
	}
	if amountOut >= reserveOut {
		return nil, ErrInsufficientLiquidity
	}

	newIn, err := safemath.Add64(reserveIn, amountIn-(fee-lpFee))
	if err != nil {
		return nil, ErrOverflow
	}
	newOut := reserveOut - amountOut

	// Price impact on the stable-per-asset price, in basis points
	oldPrice, newPrice := Price(m.AssetReserve, m.StableReserve), Price(newOut, newIn)
	if dir == AssetToStable {
		newPrice = Price(newIn, newOut)
	}
	impact, _ := MulDiv(safemath.AbsDiff(oldPrice, newPrice), BpsDenominator, oldPrice)

	return &SwapResult{
		Direction:   dir,
		AmountIn:    amountIn,
		AmountOut:   amountOut,
		Fee:         fee,
		LPFee:       lpFee,
		ProtocolFee: fee - lpFee,
		PriceImpact: impact,
	}, nil
}

// swap executes a swap at [feeBps]. Nothing is mutated unless it succeeds.
// The oracle observes the pre-trade price.
func (m *Market) swap(now time.Time, dir Direction, amountIn, minAmountOut uint64, feeBps uint16) (*SwapResult, error) {
	result, err := m.quote(dir, amountIn, feeBps)
	if err != nil {
		return nil, err
	}
	if result.AmountOut < minAmountOut {
		return nil, ErrOutputBelowMinimum
	}
	if m.Oracle.Initialized && now.UnixMilli() < m.Oracle.LastTimestamp {
		return nil, ErrTimestampRegression
	}

	reserveIn, reserveOut := m.AssetReserve, m.StableReserve
	if dir == StableToAsset {
		reserveIn, reserveOut = reserveOut, reserveIn
	}
	newIn := reserveIn + amountIn - result.ProtocolFee
	newOut := reserveOut - result.AmountOut
	if Product(newIn, newOut).Lt(Product(reserveIn, reserveOut)) {
		return nil, ErrKInvariant
	}

	fees, volume := &m.ProtocolFeesStable, &m.VolumeStable
	if dir == AssetToStable {
		fees, volume = &m.ProtocolFeesAsset, &m.VolumeAsset
	}
	newFees, err := safemath.Add64(*fees, result.ProtocolFee)
	if err != nil {
		return nil, ErrOverflow
	}
	newVolume, err := safemath.Add64(*volume, amountIn)
	if err != nil {
		return nil, ErrOverflow
	}

	if err := m.Oracle.Write(now, m.Price()); err != nil {
		return nil, ErrTimestampRegression
	}

	if dir == AssetToStable {
		m.AssetReserve, m.StableReserve = newIn, newOut
	} else {
		m.AssetReserve, m.StableReserve = newOut, newIn
	}
	*fees, *volume = newFees, newVolume
	m.TxCount++
	return result, nil
}

// constantProduct returns asset × stable in 256 bits.
func (m *Market) constantProduct() *uint256.Int {
	return Product(m.AssetReserve, m.StableReserve)
}

// collectProtocolFees zeroes and returns the accrued protocol fees.
func (m *Market) collectProtocolFees() (uint64, uint64) {
	asset, stable := m.ProtocolFeesAsset, m.ProtocolFeesStable
	m.ProtocolFeesAsset, m.ProtocolFeesStable = 0, 0
	return asset, stable
}
