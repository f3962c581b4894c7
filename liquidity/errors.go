// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package liquidity

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of them.
var (
	ErrInputValidation    = errors.New("input validation failed")
	ErrSlippageExceeded   = errors.New("slippage exceeded")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrIdentityMismatch   = errors.New("identity mismatch")
)

var (
	ErrZeroAmount            = fmt.Errorf("%w: zero amount", ErrInputValidation)
	ErrInvalidFee            = fmt.Errorf("%w: invalid fee", ErrInputValidation)
	ErrInvalidFeeSchedule    = fmt.Errorf("%w: invalid fee schedule", ErrInputValidation)
	ErrInvalidRatio          = fmt.Errorf("%w: conditional liquidity ratio must be in [1, 99]", ErrInputValidation)
	ErrPoolMismatch          = fmt.Errorf("%w: share belongs to another pool", ErrInputValidation)
	ErrShareExceedsSupply    = fmt.Errorf("%w: share exceeds lp supply", ErrInputValidation)
	ErrZeroOutput            = fmt.Errorf("%w: swap output rounds to zero", ErrInputValidation)
	ErrZeroLiquidityMinted   = fmt.Errorf("%w: deposit mints no lp", ErrInputValidation)
	ErrTimestampRegression   = fmt.Errorf("%w: timestamp before last update", ErrInputValidation)
	ErrOutputBelowMinimum    = fmt.Errorf("%w: output below minimum", ErrSlippageExceeded)
	ErrLPBelowMinimum        = fmt.Errorf("%w: lp minted below minimum", ErrSlippageExceeded)
	ErrProposalActive        = fmt.Errorf("%w: liquidity is in use by an active proposal", ErrInvariantViolation)
	ErrNoActiveProposal      = fmt.Errorf("%w: no active proposal", ErrInvariantViolation)
	ErrBelowMinLiquidity     = fmt.Errorf("%w: minimum liquidity breached", ErrInvariantViolation)
	ErrInsufficientLiquidity = fmt.Errorf("%w: insufficient liquidity", ErrInvariantViolation)
	ErrTradingDisabled       = fmt.Errorf("%w: trading disabled", ErrInvariantViolation)
	ErrKInvariant            = fmt.Errorf("%w: constant product decreased", ErrInvariantViolation)
	ErrShareLocked           = fmt.Errorf("%w: share is locked in a proposal", ErrInvariantViolation)
	ErrShareNotLocked        = fmt.Errorf("%w: share is not locked", ErrInvariantViolation)
	ErrPoolDestroyed         = fmt.Errorf("%w: conditional pool destroyed", ErrInvariantViolation)
	ErrOverflow              = fmt.Errorf("%w: arithmetic overflow", ErrInvariantViolation)
)
