package usecase

import (
	"time"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/model"
)

// IsRolloverDue reports whether the balance's billing period has closed.
func IsRolloverDue(bal *model.CreditBalance, now time.Time) bool {
	if bal == nil {
		return false
	}
	return !now.Before(bal.PeriodEnd)
}

// Rollover resets the period-scoped counters for a new billing cycle:
// UsedThisPeriod drops to zero, Remaining is regranted from the plan's
// allotment, and the period bounds are recomputed from the subscription's
// billing anchor plus elapsed whole periods. LifetimeUsed is untouched.
//
// The plan passed in is the one in effect for the NEW period (a downgrade or
// cancellation applied mid-period shows up here, never earlier).
func Rollover(bal *model.CreditBalance, plan *model.Plan, sub *model.Subscription, now time.Time) error {
	if bal == nil || plan == nil {
		return domain.ErrInvalidArgument
	}
	anchor := bal.PeriodStart
	if sub != nil && !sub.BillingPeriodStart.IsZero() {
		anchor = sub.BillingPeriodStart
	}
	start, end := model.PeriodBounds(anchor, plan.Period(), now)
	bal.PeriodStart = start
	bal.PeriodEnd = end
	bal.UsedThisPeriod = 0
	bal.Remaining = plan.Allotment.Credits()
	bal.UpdatedAt = now
	return nil
}
