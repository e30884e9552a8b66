package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/model"
	"contentops-credits/internal/domain/ports/repository"
)

// PlanUseCase manages the plan catalog (admin surface). Reads are served
// through the cache decorator in infra; writes invalidate it there.
type PlanUseCase struct {
	plans repository.PlanRepository
	log   *zerolog.Logger
}

func NewPlanUseCase(plans repository.PlanRepository, logger *zerolog.Logger) *PlanUseCase {
	l := logger.With().Str("component", "PlanUC").Logger()
	return &PlanUseCase{plans: plans, log: &l}
}

// GetPlan looks up a catalog entry. Unknown ids are a configuration error
// and must fail the enclosing request; callers never default to free.
func (uc *PlanUseCase) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	p, err := uc.plans.FindByID(ctx, repository.NoTX, id)
	if errors.Is(err, domain.ErrNotFound) {
		uc.log.Error().Str("plan_id", id).Msg("unknown plan requested")
		return nil, domain.ErrUnknownPlan
	}
	return p, err
}

func (uc *PlanUseCase) List(ctx context.Context) ([]*model.Plan, error) {
	return uc.plans.ListAll(ctx, repository.NoTX)
}

func (uc *PlanUseCase) Create(ctx context.Context, id, name string, allotment model.Allotment, periodDays int, featureFlags []string) (*model.Plan, error) {
	p, err := model.NewPlan(id, name, allotment, periodDays, featureFlags)
	if err != nil {
		return nil, err
	}
	if err := uc.plans.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	uc.log.Info().Str("plan_id", p.ID).Msg("plan created")
	return p, nil
}

func (uc *PlanUseCase) Update(ctx context.Context, id, name string, allotment model.Allotment, periodDays int, featureFlags []string) (*model.Plan, error) {
	existing, err := uc.plans.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	p, err := model.NewPlan(id, name, allotment, periodDays, featureFlags)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = existing.CreatedAt
	if err := uc.plans.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	uc.log.Info().Str("plan_id", p.ID).Msg("plan updated")
	return p, nil
}

func (uc *PlanUseCase) Delete(ctx context.Context, id string) error {
	if id == model.FreePlanID {
		// every user without a paid subscription resolves to this entry
		return domain.ErrInvalidArgument
	}
	return uc.plans.Delete(ctx, repository.NoTX, id)
}
