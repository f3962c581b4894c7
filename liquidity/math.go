// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package liquidity

import (
	"math"

	"github.com/holiman/uint256"
)

const (
	// BpsDenominator is the basis point scale for fees.
	BpsDenominator = 10_000
	// MaxFeeBps is a 100% fee, which disables trading.
	MaxFeeBps = 10_000
	// PriceScale is the fixed-point scale of prices quoted in stable per asset.
	PriceScale = 1_000_000_000
)

// FeeAmount returns floor(amount * feeBps / 10000).
func FeeAmount(amount uint64, feeBps uint16) uint64 {
	fee, _ := MulDiv(amount, uint64(feeBps), BpsDenominator)
	return fee
}

// GetAmountOut returns the output of a constant-product swap of [amountIn]
// against ([reserveIn], [reserveOut]) after charging [feeBps] on the input.
// It returns 0 when any side is empty or the fee consumes the whole input.
func GetAmountOut(amountIn, reserveIn, reserveOut uint64, feeBps uint16) uint64 {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 || feeBps >= MaxFeeBps {
		return 0
	}
	net := amountIn - FeeAmount(amountIn, feeBps)

	// out = net * reserveOut / (reserveIn + net)
	num := new(uint256.Int).Mul(uint256.NewInt(net), uint256.NewInt(reserveOut))
	den := new(uint256.Int).Add(uint256.NewInt(reserveIn), uint256.NewInt(net))
	return num.Div(num, den).Uint64()
}

// MulDiv returns floor(a * b / c) and whether the result fits in 64 bits.
func MulDiv(a, b, c uint64) (uint64, bool) {
	if c == 0 {
		return 0, false
	}
	z := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	z.Div(z, uint256.NewInt(c))
	if !z.IsUint64() {
		return math.MaxUint64, false
	}
	return z.Uint64(), true
}

// MulDivUp returns ceil(a * b / c) and whether the result fits in 64 bits.
func MulDivUp(a, b, c uint64) (uint64, bool) {
	if c == 0 {
		return 0, false
	}
	z := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	z.Add(z, uint256.NewInt(c-1))
	z.Div(z, uint256.NewInt(c))
	if !z.IsUint64() {
		return math.MaxUint64, false
	}
	return z.Uint64(), true
}

// Product returns a * b in 256 bits.
func Product(a, b uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
}

// SqrtProduct returns floor(sqrt(a * b)), which always fits in 64 bits.
func SqrtProduct(a, b uint64) uint64 {
	p := Product(a, b)
	return p.Sqrt(p).Uint64()
}

// Price returns stable/asset scaled by PriceScale, saturating at MaxUint64.
// An empty pool has price 0.
func Price(asset, stable uint64) uint64 {
	if asset == 0 || stable == 0 {
		return 0
	}
	p, _ := MulDiv(stable, PriceScale, asset)
	return p
}
