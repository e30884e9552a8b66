package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/ports/repository"
)

// SweepDueRollovers rolls over balances whose period lapsed, in batches.
// Purely hygienic: the deduction path rolls over in-tx regardless, this just
// keeps displayed balances fresh for users who stopped spending. Returns the
// number of balances rolled over.
func (uc *DeductionUseCase) SweepDueRollovers(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	users, err := uc.balances.ListRolloverDue(ctx, repository.NoTX, time.Now(), limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	n := 0
	for _, userID := range users {
		if err := uc.rolloverUser(ctx, userID); err != nil {
			uc.log.Warn().Err(err).Str("user_id", userID).Msg("rollover sweep failed for user")
			continue
		}
		n++
	}
	return n, nil
}

func (uc *DeductionUseCase) rolloverUser(ctx context.Context, userID string) error {
	txOpt := pgx.TxOptions{IsoLevel: pgx.Serializable}
	return uc.tm.WithTx(ctx, txOpt, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()
		bal, err := uc.balances.FindByUserForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !IsRolloverDue(bal, now) {
			// someone else (likely a concurrent deduction) got here first
			return nil
		}

		sub, err := uc.subs.FindByUser(ctx, tx, userID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			sub = nil
		}
		plan, err := uc.plans.FindByID(ctx, tx, sub.EffectivePlanID())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrUnknownPlan
			}
			return err
		}

		if err := Rollover(bal, plan, sub, now); err != nil {
			return err
		}
		return uc.balances.Save(ctx, tx, bal)
	})
}
