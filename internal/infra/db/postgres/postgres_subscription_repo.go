package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/model"
	"contentops-credits/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  user_id, plan_id, status, billing_period_start, billing_period_end,
  last_event_id, last_event_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (user_id) DO UPDATE SET
  plan_id=$2, status=$3, billing_period_start=$4, billing_period_end=$5,
  last_event_id=$6, last_event_at=$7, updated_at=$9;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.UserID, s.PlanID, string(s.Status), s.BillingPeriodStart, s.BillingPeriodEnd,
		s.LastEventID, s.LastEventAt, s.CreatedAt, s.UpdatedAt,
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

func (r *subscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `
SELECT user_id, plan_id, status, billing_period_start, billing_period_end,
       last_event_id, last_event_at, created_at, updated_at
  FROM subscriptions
 WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}

	s := &model.Subscription{}
	var status string
	if err := row.Scan(&s.UserID, &s.PlanID, &status, &s.BillingPeriodStart, &s.BillingPeriodEnd,
		&s.LastEventID, &s.LastEventAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}
