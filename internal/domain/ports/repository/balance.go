package repository

import (
	"context"
	"time"

	"contentops-credits/internal/domain/model"
)

// BalanceRepository is the port for the credit ledger rows.
//
// Save performs a compare-and-swap on the row's version: it fails with
// domain.ErrConcurrencyConflict when the stored version no longer matches,
// and bumps the version on success. FindByUserForUpdate additionally takes a
// row lock and therefore requires a transaction handle.
type BalanceRepository interface {
	Save(ctx context.Context, tx Tx, bal *model.CreditBalance) error
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.CreditBalance, error)
	FindByUserForUpdate(ctx context.Context, tx Tx, userID string) (*model.CreditBalance, error)

	// ListRolloverDue returns user ids whose period lapsed before now, for
	// the background sweep. Bounded by limit.
	ListRolloverDue(ctx context.Context, tx Tx, now time.Time, limit int) ([]string, error)
}
