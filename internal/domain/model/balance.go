package model

import (
	"time"

	"contentops-credits/internal/domain"
)

// CreditBalance is the ledger row, one per user: the single source of truth
// for how many credits remain in the current billing period. It is mutated
// exclusively by the deduction path (decrement) and the rollover path
// (reset); SubscriptionSync never touches it.
//
// Invariants: Remaining >= 0 and UsedThisPeriod >= 0 always. For bounded
// plans Remaining == allotment - UsedThisPeriod; for unlimited plans
// Remaining is simply never decremented.
type CreditBalance struct {
	UserID         string
	Remaining      int
	UsedThisPeriod int
	LifetimeUsed   int
	PeriodStart    time.Time
	PeriodEnd      time.Time

	// Version is a monotonic counter bumped on every write; the repository
	// refuses a save whose version no longer matches the stored row.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCreditBalance lazily creates the ledger row the first time a user's
// balance is touched, granting the plan's full allotment for the current
// period. The period is anchored to the subscription's billing date when one
// exists, otherwise to now.
func NewCreditBalance(userID string, plan *Plan, anchor, now time.Time) (*CreditBalance, error) {
	if userID == "" || plan == nil {
		return nil, domain.ErrInvalidArgument
	}
	start, end := PeriodBounds(anchor, plan.Period(), now)
	return &CreditBalance{
		UserID:      userID,
		Remaining:   plan.Allotment.Credits(),
		PeriodStart: start,
		PeriodEnd:   end,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// PeriodBounds computes the billing period containing now, anchored to the
// original billing date plus elapsed whole periods. Anchoring (rather than
// "now + length") keeps period boundaries from creeping forward when a
// rollover check runs late.
func PeriodBounds(anchor time.Time, period time.Duration, now time.Time) (time.Time, time.Time) {
	if period <= 0 {
		period = 30 * 24 * time.Hour
	}
	if anchor.IsZero() || now.Before(anchor) {
		anchor = now
	}
	elapsed := now.Sub(anchor) / period
	start := anchor.Add(elapsed * period)
	return start, start.Add(period)
}
