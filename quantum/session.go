// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package quantum

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/futarchy/liquidity"
)

// Writer is the record store a Session is applied to. The caller is expected
// to write into a batch and discard the whole batch if Apply fails.
type Writer interface {
	PutSpotPool(pool *liquidity.SpotPool) error
	PutConditionalPool(pool *liquidity.ConditionalPool) error
	DeleteConditionalPool(spotPoolID ids.ID, outcome uint32) error
}

// Session is the complete result of a Split or a Recombine. It has to be
// applied exactly once; a second Apply fails without writing.
type Session struct {
	phase    Phase
	consumed bool

	// Spot is the spot pool after the transition.
	Spot *liquidity.SpotPool
	// Conditionals are the pools created by a Split or destroyed by a
	// Recombine, indexed by outcome.
	Conditionals []*liquidity.ConditionalPool
	// Winner is the winning outcome of a Recombine.
	Winner uint32
	// Asset and Stable are the amounts moved out of spot by a Split, or back
	// into spot by a Recombine.
	Asset  uint64
	Stable uint64
}

// Phase returns Split or Recombine.
func (s *Session) Phase() Phase {
	return s.phase
}

// Consumed reports whether the session was applied.
func (s *Session) Consumed() bool {
	return s.consumed
}

// Apply writes every record the transition touches.
func (s *Session) Apply(w Writer) error {
	if s.consumed {
		return ErrSessionConsumed
	}
	s.consumed = true

	if err := w.PutSpotPool(s.Spot); err != nil {
		return err
	}
	for _, cond := range s.Conditionals {
		var err error
		if s.phase == Split {
			err = w.PutConditionalPool(cond)
		} else {
			err = w.DeleteConditionalPool(cond.SpotPoolID, cond.Outcome)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
