package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/model"
	"contentops-credits/internal/domain/ports/repository"
)

var _ repository.UsageEventRepository = (*usageEventRepo)(nil)

type usageEventRepo struct {
	pool *pgxpool.Pool
}

func NewUsageEventRepo(pool *pgxpool.Pool) *usageEventRepo {
	return &usageEventRepo{pool: pool}
}

const usageEventColumns = `id, user_id, amount, idempotency_key, description, related_entity_id, remaining_after, created_at`

// Append inserts one write-once ledger entry. The idempotency key's partial
// unique index turns a duplicate into domain.ErrAlreadyExists.
func (r *usageEventRepo) Append(ctx context.Context, tx repository.Tx, ev *model.UsageEvent) error {
	const q = `
INSERT INTO usage_events (` + usageEventColumns + `)
VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8);`

	_, err := execSQL(ctx, r.pool, tx, q,
		ev.ID, ev.UserID, ev.Amount, ev.IdempotencyKey,
		ev.Description, ev.RelatedEntityID, ev.RemainingAfter, ev.CreatedAt,
	)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			if isPgErr(err, codeUniqueViolation) {
				return domain.ErrAlreadyExists
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *usageEventRepo) FindByIdempotencyKey(ctx context.Context, tx repository.Tx, userID, key string) (*model.UsageEvent, error) {
	const q = `
SELECT ` + usageEventColumns + `
  FROM usage_events
 WHERE user_id=$1 AND idempotency_key=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, key)
	if err != nil {
		return nil, err
	}
	return scanUsageEvent(row)
}

func (r *usageEventRepo) ListRecentByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.UsageEvent, error) {
	// ULIDs sort by creation time, so ordering by id is ordering by time.
	const q = `
SELECT ` + usageEventColumns + `
  FROM usage_events
 WHERE user_id=$1
 ORDER BY id DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.UsageEvent
	for rows.Next() {
		ev, err := scanUsageEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanUsageEvent(row pgx.Row) (*model.UsageEvent, error) {
	ev := &model.UsageEvent{}
	var key sql.NullString
	if err := row.Scan(&ev.ID, &ev.UserID, &ev.Amount, &key,
		&ev.Description, &ev.RelatedEntityID, &ev.RemainingAfter, &ev.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	ev.IdempotencyKey = key.String
	return ev, nil
}
