package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/model"
	"contentops-credits/internal/domain/ports/repository"
)

var _ repository.BalanceRepository = (*balanceRepo)(nil)

type balanceRepo struct {
	pool *pgxpool.Pool
}

func NewBalanceRepo(pool *pgxpool.Pool) *balanceRepo {
	return &balanceRepo{pool: pool}
}

const balanceColumns = `user_id, remaining, used_this_period, lifetime_used, period_start, period_end, version, created_at, updated_at`

// Save upserts the ledger row with a compare-and-swap on version: the update
// only lands when the stored version still matches the one the caller read.
// On success the in-memory version is advanced to the stored one.
func (r *balanceRepo) Save(ctx context.Context, tx repository.Tx, b *model.CreditBalance) error {
	const q = `
INSERT INTO credit_balances (` + balanceColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,1,$8,$9)
ON CONFLICT (user_id) DO UPDATE SET
  remaining=$2, used_this_period=$3, lifetime_used=$4,
  period_start=$5, period_end=$6, version=credit_balances.version+1, updated_at=$9
WHERE credit_balances.version = $7;`

	ct, err := execSQL(ctx, r.pool, tx, q,
		b.UserID, b.Remaining, b.UsedThisPeriod, b.LifetimeUsed,
		b.PeriodStart, b.PeriodEnd, b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			if isPgErr(err, codeUniqueViolation) {
				// insert raced another creator for the same user
				return domain.ErrConcurrencyConflict
			}
			if isPgErr(err, codeSerializationFailure) || isPgErr(err, codeDeadlockDetected) {
				return domain.ErrConcurrencyConflict
			}
			return domain.ErrOperationFailed
		}
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrConcurrencyConflict
	}
	b.Version++
	return nil
}

func (r *balanceRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.CreditBalance, error) {
	const q = `SELECT ` + balanceColumns + ` FROM credit_balances WHERE user_id=$1;`
	return r.queryOne(ctx, tx, q, userID)
}

// FindByUserForUpdate takes the row lock that serializes concurrent
// deductions for one user. Only valid inside a transaction.
func (r *balanceRepo) FindByUserForUpdate(ctx context.Context, tx repository.Tx, userID string) (*model.CreditBalance, error) {
	if _, ok := tx.(pgx.Tx); !ok {
		return nil, domain.ErrInvalidExecContext
	}
	const q = `SELECT ` + balanceColumns + ` FROM credit_balances WHERE user_id=$1 FOR UPDATE;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *balanceRepo) ListRolloverDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	const q = `
SELECT user_id FROM credit_balances
 WHERE period_end <= $1
 ORDER BY period_end ASC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *balanceRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) (*model.CreditBalance, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}

	b := &model.CreditBalance{}
	if err := row.Scan(&b.UserID, &b.Remaining, &b.UsedThisPeriod, &b.LifetimeUsed,
		&b.PeriodStart, &b.PeriodEnd, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return b, nil
}
