// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/futarchy/liquidity"
	"github.com/luxfi/futarchy/quantum"
)

func TestNew(t *testing.T) {
	require := require.New(t)

	m, err := New(metric.NewRegistry())
	require.NoError(err)

	m.MarkSwap(VenueSpot, 1_000)
	m.MarkSwap(VenueConditional, 2_000)
	m.MarkArbitrage(0, 0)
	m.MarkArbitrage(500, 12)
	m.MarkLiquidity(OpAdd)
	m.MarkSplit(2)
	m.MarkRecombine(2)
	m.MarkRejected(liquidity.ErrZeroAmount)
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{liquidity.ErrZeroAmount, "input_validation"},
		{liquidity.ErrOutputBelowMinimum, "slippage_exceeded"},
		{quantum.ErrCooldown, "invariant_violation"},
		{fmt.Errorf("recombine: %w", quantum.ErrProposalMismatch), "identity_mismatch"},
		{errors.New("disk full"), "other"},
	}
	for _, test := range tests {
		require.Equal(t, test.want, Reason(test.err))
	}
}
