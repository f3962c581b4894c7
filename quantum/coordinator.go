// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package quantum moves spot liquidity into per-outcome conditional pools when
// a proposal starts trading and brings the winning outcome's liquidity back
// when it is finalized.
//
// Neither transition mints or burns LP. Every LP share stays a claim on
// whichever venues hold the pool's value at the time.
package quantum

import (
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/futarchy/liquidity"
	"github.com/luxfi/futarchy/oracle"
)

const (
	DefaultCooldown    = 6 * time.Hour
	DefaultMaxOutcomes = 8
	// OutcomeLimit bounds the conditional pools a single proposal may create.
	OutcomeLimit = 64
)

var (
	ErrCooldown          = fmt.Errorf("%w: proposal cooldown has not elapsed", liquidity.ErrInvariantViolation)
	ErrProposalsDisabled = fmt.Errorf("%w: pool cannot host proposals yet", liquidity.ErrInvariantViolation)
	ErrSessionConsumed   = fmt.Errorf("%w: session already applied", liquidity.ErrInvariantViolation)
	ErrInvalidOutcomes   = fmt.Errorf("%w: invalid outcome count", liquidity.ErrInputValidation)
	ErrInvalidProposalID = fmt.Errorf("%w: empty proposal id", liquidity.ErrInputValidation)
	ErrProposalMismatch  = fmt.Errorf("%w: proposal is not active on this pool", liquidity.ErrIdentityMismatch)
	ErrPoolMismatch      = fmt.Errorf("%w: conditional pool belongs to another proposal", liquidity.ErrIdentityMismatch)
	ErrOutcomeMismatch   = fmt.Errorf("%w: conditional pools do not cover the outcomes", liquidity.ErrIdentityMismatch)
)

// Config holds the coordinator parameters.
type Config struct {
	Cooldown          time.Duration `json:"cooldown"`
	MaxOutcomes       int           `json:"maxOutcomes"`
	ConditionalFeeBps uint16        `json:"conditionalFeeBps"`
	Oracle            oracle.Config `json:"oracle"`
}

// DefaultConfig returns the default coordinator parameters.
func DefaultConfig() Config {
	return Config{
		Cooldown:          DefaultCooldown,
		MaxOutcomes:       DefaultMaxOutcomes,
		ConditionalFeeBps: 30,
		Oracle:            oracle.DefaultConfig(),
	}
}

// Phase is where a spot pool is in the proposal cycle. Split and Recombine
// only exist inside a Session and are never observed on a stored pool.
type Phase uint8

const (
	Idle Phase = iota
	Split
	Trading
	Recombine
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Split:
		return "split"
	case Trading:
		return "trading"
	case Recombine:
		return "recombine"
	default:
		return "unknown"
	}
}

// PhaseOf returns the stored phase of [spot].
func PhaseOf(spot *liquidity.SpotPool) Phase {
	if spot.HasActiveProposal {
		return Trading
	}
	return Idle
}

// Coordinator builds the Split and Recombine transitions. It never mutates
// its inputs; every transition is returned as a Session that has to be
// applied exactly once.
type Coordinator struct {
	config Config
	log    log.Logger
}

// New returns a coordinator.
func New(config Config, logger log.Logger) *Coordinator {
	return &Coordinator{
		config: config,
		log:    logger,
	}
}

// CanSplit reports why [spot] cannot be split at [now], or nil.
func (c *Coordinator) CanSplit(spot *liquidity.SpotPool, now time.Time) error {
	if spot.HasActiveProposal {
		return liquidity.ErrProposalActive
	}
	if end, ok := spot.LastProposalEnd(); ok && now.Before(end.Add(c.config.Cooldown)) {
		return ErrCooldown
	}
	if !spot.CanCreateProposals(now) {
		return ErrProposalsDisabled
	}
	return nil
}

// Split drains the configured share of [spot] into one conditional pool per
// outcome, each seeded with the full drained amounts at the spot price. The
// spot oracle takes a final observation and freezes until Recombine.
func (c *Coordinator) Split(spot *liquidity.SpotPool, proposalID ids.ID, outcomes int, now time.Time) (*Session, error) {
	if proposalID == ids.Empty {
		return nil, ErrInvalidProposalID
	}
	if outcomes < 2 || outcomes > c.config.MaxOutcomes {
		return nil, ErrInvalidOutcomes
	}
	if err := c.CanSplit(spot, now); err != nil {
		return nil, err
	}
	if spot.Oracle.Initialized && now.UnixMilli() < spot.Oracle.LastTimestamp {
		return nil, liquidity.ErrTimestampRegression
	}

	pool := spot.Clone()
	asset, stable, err := pool.RemoveLiquidityForQuantumSplit()
	if err != nil {
		return nil, err
	}

	conditionals := make([]*liquidity.ConditionalPool, outcomes)
	for i := range conditionals {
		conditionals[i], err = liquidity.NewConditionalPool(liquidity.ConditionalParams{
			SpotPoolID:        pool.ID,
			ProposalID:        proposalID,
			Outcome:           uint32(i),
			AssetReserve:      asset,
			StableReserve:     stable,
			FeeBps:            c.config.ConditionalFeeBps,
			LPFeeSharePercent: pool.LPFeeSharePercent,
			Oracle:            c.config.Oracle,
		}, now)
		if err != nil {
			return nil, fmt.Errorf("couldn't seed outcome %d: %w", i, err)
		}
	}

	if err := pool.Oracle.Freeze(now, pool.Price()); err != nil {
		return nil, liquidity.ErrTimestampRegression
	}
	pool.SetActiveProposal(proposalID, uint32(outcomes))

	c.log.Info("split spot pool",
		log.Stringer("poolID", pool.ID),
		log.Stringer("proposalID", proposalID),
		log.Int("outcomes", outcomes),
		log.Uint64("asset", asset),
		log.Uint64("stable", stable),
	)
	return &Session{
		phase:        Split,
		Spot:         pool,
		Conditionals: conditionals,
		Asset:        asset,
		Stable:       stable,
	}, nil
}

// Recombine returns the [winning] outcome's reserves to [spot] and destroys
// every conditional pool of [proposalID]. The losing outcomes' reserves are
// discarded. The spot oracle is reconciled with the winner's history over the
// trading period.
func (c *Coordinator) Recombine(
	spot *liquidity.SpotPool,
	conditionals []*liquidity.ConditionalPool,
	proposalID ids.ID,
	winning uint32,
	now time.Time,
) (*Session, error) {
	active, ok := spot.ActiveProposal()
	if !ok {
		return nil, liquidity.ErrNoActiveProposal
	}
	if active != proposalID {
		return nil, ErrProposalMismatch
	}
	if err := checkOutcomes(spot.ID, proposalID, spot.ActiveOutcomes, conditionals); err != nil {
		return nil, err
	}
	if int(winning) >= len(conditionals) {
		return nil, ErrOutcomeMismatch
	}
	if now.UnixMilli() < spot.Oracle.LastTimestamp {
		return nil, liquidity.ErrTimestampRegression
	}

	pool := spot.Clone()
	destroyed := make([]*liquidity.ConditionalPool, len(conditionals))
	for _, cond := range conditionals {
		destroyed[cond.Outcome] = cond.Clone()
	}
	winner := destroyed[winning]

	gap, err := winner.Oracle.CumulativeAt(now)
	if err != nil {
		return nil, fmt.Errorf("couldn't read outcome %d oracle: %w", winning, err)
	}
	feesAsset, feesStable := winner.CollectProtocolFees()
	if err := pool.AccrueProtocolFees(feesAsset, feesStable); err != nil {
		return nil, err
	}

	var asset, stable uint64
	for _, cond := range destroyed {
		a, s, err := cond.DestroyAndReturnReserves()
		if err != nil {
			return nil, err
		}
		if cond.Outcome == winning {
			asset, stable = a, s
		}
	}
	if err := pool.AddLiquidityFromQuantumRedeem(asset, stable); err != nil {
		return nil, err
	}
	if err := pool.Oracle.Reconcile(now, gap, pool.Price()); err != nil && !errors.Is(err, oracle.ErrNotFrozen) {
		return nil, liquidity.ErrTimestampRegression
	}
	pool.ClearActiveProposal(now)

	c.log.Info("recombined spot pool",
		log.Stringer("poolID", pool.ID),
		log.Stringer("proposalID", proposalID),
		log.Uint32("winningOutcome", winning),
		log.Uint64("asset", asset),
		log.Uint64("stable", stable),
	)
	return &Session{
		phase:        Recombine,
		Spot:         pool,
		Conditionals: destroyed,
		Winner:       winning,
		Asset:        asset,
		Stable:       stable,
	}, nil
}

// checkOutcomes requires exactly one pool per outcome 0..n-1, all belonging
// to [proposalID] on [spotID].
func checkOutcomes(spotID, proposalID ids.ID, outcomes uint32, conditionals []*liquidity.ConditionalPool) error {
	if len(conditionals) != int(outcomes) {
		return ErrOutcomeMismatch
	}
	seen := make([]bool, len(conditionals))
	for _, cond := range conditionals {
		if cond.SpotPoolID != spotID || cond.ProposalID != proposalID {
			return ErrPoolMismatch
		}
		if int(cond.Outcome) >= len(conditionals) || seen[cond.Outcome] {
			return ErrOutcomeMismatch
		}
		if cond.Destroyed {
			return liquidity.ErrPoolDestroyed
		}
		seen[cond.Outcome] = true
	}
	return nil
}

// MarkForWithdrawal locks [share] in the active proposal of [spot] in
// withdraw mode, so it is settled as coins once the proposal ends.
func (c *Coordinator) MarkForWithdrawal(spot *liquidity.SpotPool, share *liquidity.LPShare) (*liquidity.LPShare, error) {
	active, ok := spot.ActiveProposal()
	if !ok {
		return nil, liquidity.ErrNoActiveProposal
	}
	if share.PoolID != spot.ID {
		return nil, liquidity.ErrPoolMismatch
	}
	if share.Amount == 0 {
		return nil, liquidity.ErrZeroAmount
	}
	locked := share.Clone()
	if err := locked.Lock(active, true); err != nil {
		return nil, err
	}
	c.log.Debug("marked share for withdrawal",
		log.Stringer("shareID", share.ID),
		log.Stringer("proposalID", active),
	)
	return locked, nil
}

// ClaimWithdrawal settles a share marked for withdrawal after its proposal
// has ended. [spot] and [share] are not mutated.
func (c *Coordinator) ClaimWithdrawal(
	spot *liquidity.SpotPool,
	share *liquidity.LPShare,
	minAssetOut uint64,
	minStableOut uint64,
) (*liquidity.SpotPool, *liquidity.LPShare, uint64, uint64, error) {
	proposalID, locked := share.LockedIn()
	if !locked || !share.WithdrawMode {
		return nil, nil, 0, 0, liquidity.ErrShareNotLocked
	}
	if active, ok := spot.ActiveProposal(); ok && active == proposalID {
		return nil, nil, 0, 0, liquidity.ErrProposalActive
	}

	pool, claimed := spot.Clone(), share.Clone()
	if err := claimed.Unlock(); err != nil {
		return nil, nil, 0, 0, err
	}
	asset, stable, err := pool.RemoveLiquidity(claimed, minAssetOut, minStableOut)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	return pool, claimed, asset, stable, nil
}
