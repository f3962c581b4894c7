// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package liquidity

import "time"

// FeeSchedule decays the swap fee linearly from InitialFeeBps down to the
// pool's static fee over Duration, starting when the pool is activated by its
// first deposit. A high initial fee makes sniping a fresh pool unprofitable.
type FeeSchedule struct {
	InitialFeeBps uint16 `serialize:"true" json:"initialFeeBps"`
	DurationMs    int64  `serialize:"true" json:"durationMs"`
}

// NewFeeSchedule returns a schedule decaying from [initialFeeBps] over [duration].
func NewFeeSchedule(initialFeeBps uint16, duration time.Duration) FeeSchedule {
	return FeeSchedule{
		InitialFeeBps: initialFeeBps,
		DurationMs:    duration.Milliseconds(),
	}
}

// Verify checks the schedule against the static fee it decays to.
func (s FeeSchedule) Verify(staticFeeBps uint16) error {
	switch {
	case s.DurationMs <= 0:
		return ErrInvalidFeeSchedule
	case s.InitialFeeBps >= MaxFeeBps:
		return ErrInvalidFeeSchedule
	case s.InitialFeeBps < staticFeeBps:
		return ErrInvalidFeeSchedule
	default:
		return nil
	}
}

// FeeAt returns the fee at [now] for a pool activated at [activation]. The
// result never increases with time and never drops below [staticFeeBps].
func (s FeeSchedule) FeeAt(staticFeeBps uint16, activation, now time.Time) uint16 {
	elapsed := now.Sub(activation).Milliseconds()
	switch {
	case elapsed <= 0:
		return s.InitialFeeBps
	case elapsed >= s.DurationMs:
		return staticFeeBps
	}
	span := uint64(s.InitialFeeBps - staticFeeBps)
	decayed, _ := MulDiv(span, uint64(elapsed), uint64(s.DurationMs))
	return s.InitialFeeBps - uint16(decayed)
}

// Done reports whether the schedule has fully decayed at [now].
func (s FeeSchedule) Done(activation, now time.Time) bool {
	return now.Sub(activation).Milliseconds() >= s.DurationMs
}
