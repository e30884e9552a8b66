package model

import (
	"time"

	"contentops-credits/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPaused   SubscriptionStatus = "paused"
)

// ValidStatus reports whether s is one of the known subscription states.
func ValidStatus(s SubscriptionStatus) bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusTrialing,
		SubscriptionStatusPastDue, SubscriptionStatusCanceled, SubscriptionStatusPaused:
		return true
	}
	return false
}

// Subscription is the locally cached view of the billing provider's
// subscription for a user. Owned by SubscriptionSync: it is mutated only in
// response to provider events or admin override, and it never carries credit
// counters of its own.
type Subscription struct {
	UserID             string
	PlanID             string
	Status             SubscriptionStatus
	BillingPeriodStart time.Time
	BillingPeriodEnd   time.Time

	// LastEventID / LastEventAt identify the most recently applied provider
	// event; duplicates and older events are dropped as no-ops.
	LastEventID string
	LastEventAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubscription creates the local record on first checkout.
func NewSubscription(userID, planID string, status SubscriptionStatus, periodStart, periodEnd time.Time) (*Subscription, error) {
	if userID == "" || planID == "" || !ValidStatus(status) {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		UserID:             userID,
		PlanID:             planID,
		Status:             status,
		BillingPeriodStart: periodStart,
		BillingPeriodEnd:   periodEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Spendable reports whether the subscription entitles the user to its plan's
// allotment. Non-spendable states roll into the free plan at the next period
// boundary; the current balance is grandfathered until then.
func (s *Subscription) Spendable() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// EffectivePlanID is the plan whose allotment applies at the next rollover.
func (s *Subscription) EffectivePlanID() string {
	if s == nil || !s.Spendable() {
		return FreePlanID
	}
	return s.PlanID
}
