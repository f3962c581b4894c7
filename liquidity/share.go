// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package liquidity

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/luxfi/ids"
)

// LPShare is a claim on a proportional share of a spot pool. It references its
// pool by id only; the pool never points back at its shares.
//
// While a proposal is active the value behind a share sits partly in that
// proposal's conditional pools. A share locked in a proposal with WithdrawMode
// set is settled as coins once the proposal ends instead of staying in the
// recombined pool.
type LPShare struct {
	ID        ids.ID `serialize:"true" json:"id"`
	PoolID    ids.ID `serialize:"true" json:"poolId"`
	Amount    uint64 `serialize:"true" json:"amount"`
	CreatedAt int64  `serialize:"true" json:"createdAt"`

	Locked           bool   `serialize:"true" json:"locked"`
	LockedProposalID ids.ID `serialize:"true" json:"lockedProposalId"`
	WithdrawMode     bool   `serialize:"true" json:"withdrawMode"`
}

// LockedIn returns the proposal the share is locked in, if any.
func (s *LPShare) LockedIn() (ids.ID, bool) {
	if !s.Locked {
		return ids.Empty, false
	}
	return s.LockedProposalID, true
}

// Lock ties the share to [proposalID]. Only the quantum coordinator locks
// shares.
func (s *LPShare) Lock(proposalID ids.ID, withdrawMode bool) error {
	if s.Locked {
		return ErrShareLocked
	}
	s.Locked = true
	s.LockedProposalID = proposalID
	s.WithdrawMode = withdrawMode
	return nil
}

// Unlock frees the share. Only the quantum coordinator unlocks shares.
func (s *LPShare) Unlock() error {
	if !s.Locked {
		return ErrShareNotLocked
	}
	s.Locked = false
	s.LockedProposalID = ids.Empty
	s.WithdrawMode = false
	return nil
}

// Clone returns a copy of the share.
func (s *LPShare) Clone() *LPShare {
	c := *s
	return &c
}

// DeriveID deterministically derives a child id from [parent], a record
// [kind] and a sequence number.
func DeriveID(parent ids.ID, kind byte, seq uint64) ids.ID {
	var buf [ids.IDLen + 1 + 8]byte
	copy(buf[:], parent[:])
	buf[ids.IDLen] = kind
	binary.BigEndian.PutUint64(buf[ids.IDLen+1:], seq)
	return ids.ID(sha256.Sum256(buf[:]))
}

// Record kinds for DeriveID.
const (
	KindShare byte = iota + 1
	KindConditionalPool
)
