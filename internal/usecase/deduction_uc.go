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
	"contentops-credits/internal/infra/metrics"
)

// maxConsumeAttempts bounds the optimistic-concurrency retry loop so heavy
// contention degrades into a transient failure instead of livelock.
const maxConsumeAttempts = 3

type ConsumeReason string

const (
	ReasonInsufficientCredits ConsumeReason = "insufficient_credits"
)

// ConsumeInput describes one paid action to meter.
type ConsumeInput struct {
	UserID          string
	Amount          int // defaults to 1
	IdempotencyKey  string
	Description     string
	RelatedEntityID string
}

// ConsumeResult is the structured outcome of TryConsume. Insufficient
// credits is a result, not an error: callers branch on OK/Reason.
type ConsumeResult struct {
	OK        bool
	Reason    ConsumeReason
	Unlimited bool
	Remaining int // model.RemainingUnlimited when Unlimited
	Replayed  bool
	EventID   string
}

// DeductionUseCase is the only writer of the ledger for consumption events.
// All spend decisions re-validate against the stored balance inside a
// serializable transaction; client-held balances are advisory only.
type DeductionUseCase struct {
	balances repository.BalanceRepository
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	events   repository.UsageEventRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewDeductionUseCase(
	balances repository.BalanceRepository,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	events repository.UsageEventRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *DeductionUseCase {
	l := logger.With().Str("component", "DeductionUC").Logger()
	return &DeductionUseCase{
		balances: balances,
		subs:     subs,
		plans:    plans,
		events:   events,
		tm:       tm,
		log:      &l,
	}
}

// TryConsume atomically spends credits from the user's balance.
//
// Inside one serializable transaction it: replays an already-recorded
// idempotency key, performs a due rollover, short-circuits unlimited plans,
// refuses when the balance cannot cover the amount (no partial deduction),
// and otherwise decrements the balance and appends a usage event. On a
// concurrency conflict the whole transaction is retried a bounded number of
// times.
func (uc *DeductionUseCase) TryConsume(ctx context.Context, in ConsumeInput) (*ConsumeResult, error) {
	if in.UserID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if in.Amount == 0 {
		in.Amount = 1
	}
	if in.Amount < 0 {
		return nil, domain.ErrInvalidArgument
	}

	var lastErr error
	for attempt := 1; attempt <= maxConsumeAttempts; attempt++ {
		res, err := uc.tryConsumeOnce(ctx, in)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return nil, err
		}
		lastErr = err
		metrics.IncConsumeRetry()
		uc.log.Debug().Str("user_id", in.UserID).Int("attempt", attempt).Msg("consume conflict, retrying")
	}
	uc.log.Warn().Str("user_id", in.UserID).Msg("consume retries exhausted")
	return nil, lastErr
}

func (uc *DeductionUseCase) tryConsumeOnce(ctx context.Context, in ConsumeInput) (*ConsumeResult, error) {
	var res *ConsumeResult
	txOpt := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := uc.tm.WithTx(ctx, txOpt, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()

		if in.IdempotencyKey != "" {
			prev, err := uc.events.FindByIdempotencyKey(ctx, tx, in.UserID, in.IdempotencyKey)
			switch {
			case err == nil:
				res = replayResult(prev)
				return nil
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}
		}

		sub, err := uc.subs.FindByUser(ctx, tx, in.UserID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			sub = nil // never checked out: implicit free tier
		}
		plan, err := uc.plans.FindByID(ctx, tx, sub.EffectivePlanID())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrUnknownPlan
			}
			return err
		}

		bal, err := uc.balances.FindByUserForUpdate(ctx, tx, in.UserID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			anchor := now
			if sub != nil {
				anchor = sub.BillingPeriodStart
			}
			bal, err = model.NewCreditBalance(in.UserID, plan, anchor, now)
			if err != nil {
				return err
			}
		}

		if IsRolloverDue(bal, now) {
			if err := Rollover(bal, plan, sub, now); err != nil {
				return err
			}
		}

		if plan.Allotment.IsUnlimited() {
			bal.UsedThisPeriod += in.Amount
			bal.LifetimeUsed += in.Amount
			bal.UpdatedAt = now
			ev, err := model.NewUsageEvent(in.UserID, in.Amount, in.IdempotencyKey, in.Description, in.RelatedEntityID, model.RemainingUnlimited)
			if err != nil {
				return err
			}
			if err := uc.appendEvent(ctx, tx, ev); err != nil {
				return err
			}
			if err := uc.balances.Save(ctx, tx, bal); err != nil {
				return err
			}
			res = &ConsumeResult{OK: true, Unlimited: true, Remaining: model.RemainingUnlimited, EventID: ev.ID}
			return nil
		}

		if bal.Remaining < in.Amount {
			// A lapsed period still rolls over before the refusal is
			// committed, so the stored row reflects the new period.
			if err := uc.balances.Save(ctx, tx, bal); err != nil {
				return err
			}
			res = &ConsumeResult{OK: false, Reason: ReasonInsufficientCredits, Remaining: bal.Remaining}
			return nil
		}

		bal.Remaining -= in.Amount
		bal.UsedThisPeriod += in.Amount
		bal.LifetimeUsed += in.Amount
		bal.UpdatedAt = now
		if bal.Remaining < 0 {
			return domain.ErrNegativeBalance
		}

		ev, err := model.NewUsageEvent(in.UserID, in.Amount, in.IdempotencyKey, in.Description, in.RelatedEntityID, bal.Remaining)
		if err != nil {
			return err
		}
		if err := uc.appendEvent(ctx, tx, ev); err != nil {
			return err
		}
		if err := uc.balances.Save(ctx, tx, bal); err != nil {
			return err
		}
		res = &ConsumeResult{OK: true, Remaining: bal.Remaining, EventID: ev.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// appendEvent maps a duplicate idempotency key to a concurrency conflict:
// we hold the balance row lock, so the competing writer has already
// committed and the retried attempt will hit the replay path.
func (uc *DeductionUseCase) appendEvent(ctx context.Context, tx repository.Tx, ev *model.UsageEvent) error {
	err := uc.events.Append(ctx, tx, ev)
	if errors.Is(err, domain.ErrAlreadyExists) && ev.IdempotencyKey != "" {
		return domain.ErrConcurrencyConflict
	}
	return err
}

func replayResult(ev *model.UsageEvent) *ConsumeResult {
	return &ConsumeResult{
		OK:        true,
		Unlimited: ev.RemainingAfter == model.RemainingUnlimited,
		Remaining: ev.RemainingAfter,
		Replayed:  true,
		EventID:   ev.ID,
	}
}
