package repository

import (
	"context"

	"contentops-credits/internal/domain/model"
)

// PlanRepository is the port for the plan catalog. Reads go through a bounded
// TTL cache decorator in infra; writes invalidate it.
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Plan, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
