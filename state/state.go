// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state persists spot pools, conditional pools and LP shares.
//
// Records reference each other by id only. Writes go to a version database
// and become durable on Commit; Abort discards everything written since the
// last Commit, which makes every engine operation all-or-nothing.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/cache"
	"github.com/luxfi/cache/lru"
	"github.com/luxfi/database"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"

	"github.com/luxfi/futarchy/liquidity"
)

const DefaultCacheSize = 1024

var (
	ErrSpotPoolNotFound = errors.New("spot pool not found")
	ErrShareNotFound    = errors.New("lp share not found")
	ErrStateCorrupted   = errors.New("state corrupted")

	// Database prefixes
	prefixSpot        = []byte("spot:")
	prefixConditional = []byte("cond:")
	prefixShare       = []byte("share:")
)

// State is not safe for concurrent use; the engine serializes access.
type State struct {
	db *versiondb.Database

	spots  cache.Cacher[ids.ID, *liquidity.SpotPool]
	shares cache.Cacher[ids.ID, *liquidity.LPShare]
}

// New returns a state over [db]. Nothing reaches [db] before Commit.
func New(db database.Database, cacheSize int) *State {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &State{
		db:     versiondb.New(db),
		spots:  lru.NewCache[ids.ID, *liquidity.SpotPool](cacheSize),
		shares: lru.NewCache[ids.ID, *liquidity.LPShare](cacheSize),
	}
}

// GetSpotPool returns a copy of the spot pool; callers may mutate it freely.
func (s *State) GetSpotPool(id ids.ID) (*liquidity.SpotPool, error) {
	if pool, ok := s.spots.Get(id); ok {
		return pool.Clone(), nil
	}

	data, err := s.db.Get(spotKey(id))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrSpotPoolNotFound
	}
	if err != nil {
		return nil, err
	}
	pool := &liquidity.SpotPool{}
	if _, err := Codec.Unmarshal(data, pool); err != nil {
		return nil, fmt.Errorf("%w: spot pool %s: %w", ErrStateCorrupted, id, err)
	}
	s.spots.Put(id, pool)
	return pool.Clone(), nil
}

// HasSpotPool reports whether a spot pool with [id] exists.
func (s *State) HasSpotPool(id ids.ID) (bool, error) {
	if _, ok := s.spots.Get(id); ok {
		return true, nil
	}
	return s.db.Has(spotKey(id))
}

// PutSpotPool writes [pool].
func (s *State) PutSpotPool(pool *liquidity.SpotPool) error {
	data, err := Codec.Marshal(CodecVersion, pool)
	if err != nil {
		return err
	}
	if err := s.db.Put(spotKey(pool.ID), data); err != nil {
		return err
	}
	s.spots.Put(pool.ID, pool.Clone())
	return nil
}

// SpotPoolIDs returns the ids of every spot pool in key order.
func (s *State) SpotPoolIDs() ([]ids.ID, error) {
	iter := s.db.NewIteratorWithPrefix(prefixSpot)
	defer iter.Release()

	var poolIDs []ids.ID
	for iter.Next() {
		key := iter.Key()[len(prefixSpot):]
		if len(key) != ids.IDLen {
			return nil, ErrStateCorrupted
		}
		poolIDs = append(poolIDs, ids.ID(key))
	}
	return poolIDs, iter.Error()
}

// GetConditionalPools returns the conditional pools of [spotPoolID] ordered
// by outcome. It is empty unless a proposal is trading.
func (s *State) GetConditionalPools(spotPoolID ids.ID) ([]*liquidity.ConditionalPool, error) {
	iter := s.db.NewIteratorWithPrefix(conditionalPrefix(spotPoolID))
	defer iter.Release()

	var pools []*liquidity.ConditionalPool
	for iter.Next() {
		pool := &liquidity.ConditionalPool{}
		if _, err := Codec.Unmarshal(iter.Value(), pool); err != nil {
			return nil, fmt.Errorf("%w: conditional pool: %w", ErrStateCorrupted, err)
		}
		pools = append(pools, pool)
	}
	return pools, iter.Error()
}

// PutConditionalPool writes [pool].
func (s *State) PutConditionalPool(pool *liquidity.ConditionalPool) error {
	data, err := Codec.Marshal(CodecVersion, pool)
	if err != nil {
		return err
	}
	return s.db.Put(conditionalKey(pool.SpotPoolID, pool.Outcome), data)
}

// DeleteConditionalPool removes the pool for [outcome] of [spotPoolID].
func (s *State) DeleteConditionalPool(spotPoolID ids.ID, outcome uint32) error {
	return s.db.Delete(conditionalKey(spotPoolID, outcome))
}

// GetShare returns a copy of the LP share.
func (s *State) GetShare(id ids.ID) (*liquidity.LPShare, error) {
	if share, ok := s.shares.Get(id); ok {
		return share.Clone(), nil
	}

	data, err := s.db.Get(shareKey(id))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, err
	}
	share := &liquidity.LPShare{}
	if _, err := Codec.Unmarshal(data, share); err != nil {
		return nil, fmt.Errorf("%w: share %s: %w", ErrStateCorrupted, id, err)
	}
	s.shares.Put(id, share)
	return share.Clone(), nil
}

// PutShare writes [share]. A fully burned share is deleted instead.
func (s *State) PutShare(share *liquidity.LPShare) error {
	if share.Amount == 0 {
		return s.DeleteShare(share.ID)
	}
	data, err := Codec.Marshal(CodecVersion, share)
	if err != nil {
		return err
	}
	if err := s.db.Put(shareKey(share.ID), data); err != nil {
		return err
	}
	s.shares.Put(share.ID, share.Clone())
	return nil
}

// DeleteShare removes the share with [id].
func (s *State) DeleteShare(id ids.ID) error {
	s.shares.Evict(id)
	return s.db.Delete(shareKey(id))
}

// Commit writes every pending change to the underlying database.
func (s *State) Commit() error {
	return s.db.Commit()
}

// Abort discards every change since the last Commit.
func (s *State) Abort() {
	s.db.Abort()
	s.spots.Flush()
	s.shares.Flush()
}

// Close closes the version database without committing.
func (s *State) Close() error {
	s.Abort()
	return s.db.Close()
}

func spotKey(id ids.ID) []byte {
	return append(append([]byte{}, prefixSpot...), id[:]...)
}

func shareKey(id ids.ID) []byte {
	return append(append([]byte{}, prefixShare...), id[:]...)
}

func conditionalPrefix(spotPoolID ids.ID) []byte {
	return append(append([]byte{}, prefixConditional...), spotPoolID[:]...)
}

// conditionalKey sorts pools of a spot pool by outcome.
func conditionalKey(spotPoolID ids.ID, outcome uint32) []byte {
	return binary.BigEndian.AppendUint32(conditionalPrefix(spotPoolID), outcome)
}
