package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/model"
	"contentops-credits/internal/domain/ports/repository"
)

// PlanChangeEvent is a billing-provider event (or admin override) changing a
// user's subscription. EventID identifies the provider delivery for dedup.
type PlanChangeEvent struct {
	EventID     string
	UserID      string
	PlanID      string
	Status      model.SubscriptionStatus
	EffectiveAt time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// SyncUseCase reconciles externally owned subscription state onto the local
// record. It updates the Subscription row only: credit counters belong to
// the deduction/rollover paths, so a downgrade never claws back granted
// credits and an upgrade never back-fills the elapsed part of a period.
type SyncUseCase struct {
	subs  repository.SubscriptionRepository
	plans repository.PlanRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewSyncUseCase(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *SyncUseCase {
	l := logger.With().Str("component", "SyncUC").Logger()
	return &SyncUseCase{subs: subs, plans: plans, tm: tm, log: &l}
}

// ApplyPlanChange applies one provider event. Idempotent: a duplicate event
// id, or an event older than the last applied one, is a success no-op.
func (uc *SyncUseCase) ApplyPlanChange(ctx context.Context, ev PlanChangeEvent) error {
	if ev.EventID == "" || ev.UserID == "" || ev.PlanID == "" || !model.ValidStatus(ev.Status) {
		return domain.ErrInvalidArgument
	}
	if ev.EffectiveAt.IsZero() {
		ev.EffectiveAt = time.Now()
	}

	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := uc.plans.FindByID(ctx, tx, ev.PlanID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrUnknownPlan
			}
			return err
		}

		sub, err := uc.subs.FindByUser(ctx, tx, ev.UserID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			sub = nil
		case err != nil:
			return err
		}

		if sub != nil {
			if sub.LastEventID == ev.EventID || ev.EffectiveAt.Before(sub.LastEventAt) {
				uc.log.Debug().Str("user_id", ev.UserID).Str("event_id", ev.EventID).Msg("stale subscription event skipped")
				return nil
			}
		}

		if sub == nil {
			sub, err = model.NewSubscription(ev.UserID, ev.PlanID, ev.Status, defaultStart(ev), defaultEnd(ev))
			if err != nil {
				return err
			}
		} else {
			sub.PlanID = ev.PlanID
			sub.Status = ev.Status
			if !ev.PeriodStart.IsZero() {
				sub.BillingPeriodStart = ev.PeriodStart
			}
			if !ev.PeriodEnd.IsZero() {
				sub.BillingPeriodEnd = ev.PeriodEnd
			}
			sub.UpdatedAt = time.Now()
		}
		sub.LastEventID = ev.EventID
		sub.LastEventAt = ev.EffectiveAt

		if err := uc.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		uc.log.Info().
			Str("user_id", ev.UserID).
			Str("plan_id", ev.PlanID).
			Str("status", string(ev.Status)).
			Str("event_id", ev.EventID).
			Msg("subscription updated")
		return nil
	})
}

func defaultStart(ev PlanChangeEvent) time.Time {
	if !ev.PeriodStart.IsZero() {
		return ev.PeriodStart
	}
	return ev.EffectiveAt
}

func defaultEnd(ev PlanChangeEvent) time.Time {
	if !ev.PeriodEnd.IsZero() {
		return ev.PeriodEnd
	}
	return defaultStart(ev).Add(30 * 24 * time.Hour)
}
