package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/model"
	"contentops-credits/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	const q = `
INSERT INTO plans (id, name, credits_per_period, unlimited, period_days, feature_flags, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
  SET name               = EXCLUDED.name,
      credits_per_period = EXCLUDED.credits_per_period,
      unlimited          = EXCLUDED.unlimited,
      period_days        = EXCLUDED.period_days,
      feature_flags      = EXCLUDED.feature_flags;`

	_, err := execSQL(ctx, r.pool, tx, q,
		plan.ID, plan.Name, plan.Allotment.Credits(), plan.Allotment.IsUnlimited(),
		plan.PeriodDays, plan.FeatureFlags, plan.CreatedAt,
	)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `
SELECT id, name, credits_per_period, unlimited, period_days, feature_flags, created_at
  FROM plans
 WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `
SELECT id, name, credits_per_period, unlimited, period_days, feature_flags, created_at
  FROM plans
 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *planRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM plans WHERE id = $1;`
	ct, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPlan(row pgx.Row) (*model.Plan, error) {
	var (
		p         model.Plan
		credits   int
		unlimited bool
	)
	if err := row.Scan(&p.ID, &p.Name, &credits, &unlimited, &p.PeriodDays, &p.FeatureFlags, &p.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if unlimited {
		p.Allotment = model.Unlimited()
	} else {
		p.Allotment = model.Bounded(credits)
	}
	return &p, nil
}
