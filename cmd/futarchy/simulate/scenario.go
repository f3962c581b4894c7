// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulate

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/luxfi/futarchy"
	"github.com/luxfi/futarchy/liquidity"
)

const (
	ActionAdd       = "add"
	ActionRemove    = "remove"
	ActionSwap      = "swap"
	ActionSplit     = "split"
	ActionRecombine = "recombine"
	ActionWithdraw  = "withdraw"
	ActionClaim     = "claim"
	ActionDissolve  = "dissolve"
	ActionCollect   = "collect"
	ActionPrice     = "price"
)

var (
	errUnknownAction = errors.New("unknown action")
	errUnknownShare  = errors.New("unknown share")
	errNoProposal    = errors.New("no proposal has been split")
)

// Scenario is a scripted sequence of operations on one spot pool.
type Scenario struct {
	Name  string    `yaml:"name"`
	Start time.Time `yaml:"start"`
	Steps []Step    `yaml:"steps"`
}

// Step is one operation. At is the offset from the scenario start. Shares are
// referenced by the order of the add steps that minted them.
type Step struct {
	At     time.Duration `yaml:"at"`
	Action string        `yaml:"action"`

	Asset  uint64 `yaml:"asset"`
	Stable uint64 `yaml:"stable"`

	Direction string  `yaml:"direction"`
	Amount    uint64  `yaml:"amount"`
	MinOut    uint64  `yaml:"minOut"`
	Outcome   *uint32 `yaml:"outcome"`

	Outcomes int    `yaml:"outcomes"`
	Winner   uint32 `yaml:"winner"`

	Share  int  `yaml:"share"`
	Bypass bool `yaml:"bypass"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a yaml scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if s.Start.IsZero() {
		s.Start = time.Unix(0, 0)
	}
	return s, nil
}

// Runner replays a scenario against an engine.
type Runner struct {
	engine *futarchy.Engine
	log    log.Logger

	scenario   *Scenario
	poolID     ids.ID
	proposalID ids.ID
	proposals  int
	shares     []ids.ID
}

// NewRunner creates the scenario's spot pool on [engine].
func NewRunner(engine *futarchy.Engine, scenario *Scenario, logger log.Logger) (*Runner, error) {
	poolID := ids.ID(sha256.Sum256([]byte(scenario.Name)))
	if _, err := engine.CreateSpotPool(poolID); err != nil {
		return nil, err
	}
	return &Runner{
		engine:   engine,
		log:      logger,
		scenario: scenario,
		poolID:   poolID,
	}, nil
}

// Run executes every step and writes a report to [w]. A failed step is
// reported and the scenario continues.
func (r *Runner) Run(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "At", "Action", "Result", "Spot asset", "Spot stable", "Spot price", "Phase", "Conditional prices")

	for i, step := range r.scenario.Steps {
		now := r.scenario.Start.Add(step.At)
		result, err := r.Step(now, step)
		if err != nil {
			result = "error: " + err.Error()
			r.log.Warn("scenario step failed",
				log.Int("step", i),
				log.String("action", step.Action),
				log.Err(err),
			)
		}

		pool, err := r.engine.SpotPool(r.poolID)
		if err != nil {
			return err
		}
		conditionals, err := r.engine.ConditionalPools(r.poolID)
		if err != nil {
			return err
		}
		prices := make([]string, len(conditionals))
		for j, cond := range conditionals {
			prices[j] = formatPrice(cond.Price())
		}

		phase, err := r.engine.Phase(r.poolID)
		if err != nil {
			return err
		}
		if err := table.Append(
			fmt.Sprintf("%d", i),
			step.At.String(),
			step.Action,
			result,
			fmt.Sprintf("%d", pool.AssetReserve),
			fmt.Sprintf("%d", pool.StableReserve),
			formatPrice(pool.Price()),
			phase.String(),
			strings.Join(prices, " "),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

// End is the time of the last step.
func (r *Runner) End() time.Time {
	end := r.scenario.Start
	for _, step := range r.scenario.Steps {
		if at := r.scenario.Start.Add(step.At); at.After(end) {
			end = at
		}
	}
	return end
}

// Step executes [step] at [now] and describes its result.
func (r *Runner) Step(now time.Time, step Step) (string, error) {
	switch step.Action {
	case ActionAdd:
		result, err := r.engine.AddLiquidity(now, r.poolID, step.Asset, step.Stable, 0)
		if err != nil {
			return "", err
		}
		r.shares = append(r.shares, result.Share.ID)
		return fmt.Sprintf("share %d: lp=%d change=%d/%d",
			len(r.shares)-1, result.Share.Amount, result.AssetChange, result.StableChange), nil

	case ActionRemove:
		shareID, err := r.share(step.Share)
		if err != nil {
			return "", err
		}
		asset, stable, err := r.engine.RemoveLiquidity(shareID, 0, 0)
		return fmt.Sprintf("out=%d/%d", asset, stable), err

	case ActionSwap:
		dir, err := liquidity.ParseDirection(step.Direction)
		if err != nil {
			return "", err
		}
		var receipt *futarchy.SwapReceipt
		if step.Outcome == nil {
			receipt, err = r.engine.SwapSpot(now, r.poolID, dir, step.Amount, step.MinOut)
		} else {
			receipt, err = r.engine.SwapConditional(now, r.poolID, *step.Outcome, dir, step.Amount, step.MinOut)
		}
		if err != nil {
			return "", err
		}
		desc := fmt.Sprintf("out=%d fee=%d", receipt.Swap.AmountOut, receipt.Swap.Fee)
		if arb := receipt.Arbitrage; arb.Amount > 0 {
			desc += fmt.Sprintf(" arb=%s amount=%d profit=%d", arb.Direction, arb.Amount, arb.Profit)
		}
		return desc, nil

	case ActionSplit:
		r.proposals++
		r.proposalID = ids.ID(sha256.Sum256([]byte(fmt.Sprintf("%s/proposal/%d", r.scenario.Name, r.proposals))))
		session, err := r.engine.BeginTrading(now, r.poolID, r.proposalID, step.Outcomes)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("moved=%d/%d into %d pools", session.Asset, session.Stable, len(session.Conditionals)), nil

	case ActionRecombine:
		if r.proposalID == ids.Empty {
			return "", errNoProposal
		}
		session, err := r.engine.Finalize(now, r.poolID, r.proposalID, step.Winner)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("winner=%d returned=%d/%d", session.Winner, session.Asset, session.Stable), nil

	case ActionWithdraw:
		shareID, err := r.share(step.Share)
		if err != nil {
			return "", err
		}
		if _, err := r.engine.MarkForWithdrawal(shareID); err != nil {
			return "", err
		}
		return fmt.Sprintf("share %d marked", step.Share), nil

	case ActionClaim:
		shareID, err := r.share(step.Share)
		if err != nil {
			return "", err
		}
		asset, stable, err := r.engine.ClaimWithdrawal(shareID, 0, 0)
		return fmt.Sprintf("out=%d/%d", asset, stable), err

	case ActionDissolve:
		shareID, err := r.share(step.Share)
		if err != nil {
			return "", err
		}
		asset, stable, err := r.engine.Dissolve(shareID, step.Bypass)
		return fmt.Sprintf("out=%d/%d", asset, stable), err

	case ActionCollect:
		asset, stable, err := r.engine.CollectProtocolFees(r.poolID)
		return fmt.Sprintf("fees=%d/%d", asset, stable), err

	case ActionPrice:
		price, err := r.engine.Price(now, r.poolID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s from %s", formatPrice(price.Price), price.Source), nil

	default:
		return "", fmt.Errorf("%w: %q", errUnknownAction, step.Action)
	}
}

func (r *Runner) share(index int) (ids.ID, error) {
	if index < 0 || index >= len(r.shares) {
		return ids.Empty, fmt.Errorf("%w: %d", errUnknownShare, index)
	}
	return r.shares[index], nil
}

// formatPrice renders a PriceScale fixed-point price.
func formatPrice(price uint64) string {
	return fmt.Sprintf("%d.%09d", price/liquidity.PriceScale, price%liquidity.PriceScale)
}
