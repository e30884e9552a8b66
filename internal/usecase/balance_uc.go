package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/model"
	"contentops-credits/internal/domain/ports/repository"
)

// BalanceView is the display projection of ledger + plan + subscription.
// It is never an authorization to spend: a spend re-validates through
// DeductionUseCase, because a read can be stale the instant it returns.
type BalanceView struct {
	Remaining        int
	Unlimited        bool
	UsedThisPeriod   int
	LifetimeUsed     int
	PeriodStart      time.Time
	PeriodEnd        time.Time
	FreeCreditsTotal int
	FreeCreditsUsed  int
	Plan             *model.Plan
	Subscription     *model.Subscription
}

// BalanceUseCase is the read-only side of the ledger.
type BalanceUseCase struct {
	balances repository.BalanceRepository
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	events   repository.UsageEventRepository
	log      *zerolog.Logger
}

func NewBalanceUseCase(
	balances repository.BalanceRepository,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	events repository.UsageEventRepository,
	logger *zerolog.Logger,
) *BalanceUseCase {
	l := logger.With().Str("component", "BalanceUC").Logger()
	return &BalanceUseCase{balances: balances, subs: subs, plans: plans, events: events, log: &l}
}

// GetBalance returns the current balance projection. Pure read: no locks, no
// writes. A user whose ledger row does not exist yet (or whose period lapsed
// since the last write) is shown the state the next deduction would create;
// the authoritative row is only written by the deduction or rollover paths.
func (uc *BalanceUseCase) GetBalance(ctx context.Context, userID string) (*BalanceView, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()

	sub, err := uc.subs.FindByUser(ctx, repository.NoTX, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		sub = nil
	}
	plan, err := uc.plans.FindByID(ctx, repository.NoTX, sub.EffectivePlanID())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnknownPlan
		}
		return nil, err
	}

	bal, err := uc.balances.FindByUser(ctx, repository.NoTX, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		anchor := now
		if sub != nil {
			anchor = sub.BillingPeriodStart
		}
		bal, err = model.NewCreditBalance(userID, plan, anchor, now)
		if err != nil {
			return nil, err
		}
	} else if IsRolloverDue(bal, now) {
		if err := Rollover(bal, plan, sub, now); err != nil {
			return nil, err
		}
	}

	view := &BalanceView{
		Remaining:      bal.Remaining,
		Unlimited:      plan.Allotment.IsUnlimited(),
		UsedThisPeriod: bal.UsedThisPeriod,
		LifetimeUsed:   bal.LifetimeUsed,
		PeriodStart:    bal.PeriodStart,
		PeriodEnd:      bal.PeriodEnd,
		Plan:           plan,
		Subscription:   sub,
	}
	if view.Unlimited {
		view.Remaining = model.RemainingUnlimited
	}
	if plan.ID == model.FreePlanID {
		view.FreeCreditsTotal = plan.Allotment.Credits()
		view.FreeCreditsUsed = bal.UsedThisPeriod
	}
	return view, nil
}

// ListRecentEvents returns the newest usage events for the user.
func (uc *BalanceUseCase) ListRecentEvents(ctx context.Context, userID string, limit int) ([]*model.UsageEvent, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return uc.events.ListRecentByUser(ctx, repository.NoTX, userID, limit)
}
