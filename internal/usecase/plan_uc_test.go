//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/model"
)

func TestPlanUseCase_CreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemPlanRepo()
	uc := NewPlanUseCase(repo, newTestLogger())

	created, err := uc.Create(ctx, "creator", "Creator", model.Bounded(40), 30, []string{"priority_render"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := uc.GetPlan(ctx, "creator")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.Name != "Creator" || got.Allotment.Credits() != 40 || got.PeriodDays != 30 {
		t.Fatalf("unexpected plan: %+v", got)
	}
	if !got.HasFeature("priority_render") {
		t.Fatalf("feature flag lost")
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("CreatedAt changed between create and read")
	}
}

func TestPlanUseCase_UnknownPlan(t *testing.T) {
	t.Parallel()

	uc := NewPlanUseCase(newMemPlanRepo(), newTestLogger())
	if _, err := uc.GetPlan(context.Background(), "nope"); !errors.Is(err, domain.ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestPlanUseCase_UpdatePreservesCreatedAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	uc := NewPlanUseCase(newMemPlanRepo(), newTestLogger())

	created, err := uc.Create(ctx, "pro", "Pro", model.Bounded(200), 30, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	updated, err := uc.Update(ctx, "pro", "Pro Max", model.Bounded(300), 30, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Pro Max" || updated.Allotment.Credits() != 300 {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("Update must preserve CreatedAt")
	}
}

func TestPlanUseCase_DeleteFreeRefused(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemPlanRepo()
	uc := NewPlanUseCase(repo, newTestLogger())
	if _, err := uc.Create(ctx, model.FreePlanID, "Free", model.Bounded(3), 30, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := uc.Delete(ctx, model.FreePlanID); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("deleting the free plan must be refused, got %v", err)
	}
	if _, err := uc.GetPlan(ctx, model.FreePlanID); err != nil {
		t.Fatalf("free plan must still exist: %v", err)
	}
}

func TestPlanUseCase_InvalidPlans(t *testing.T) {
	t.Parallel()

	uc := NewPlanUseCase(newMemPlanRepo(), newTestLogger())
	ctx := context.Background()

	if _, err := uc.Create(ctx, "", "x", model.Bounded(1), 30, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("empty id: got %v", err)
	}
	if _, err := uc.Create(ctx, "x", "", model.Bounded(1), 30, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("empty name: got %v", err)
	}
	if _, err := uc.Create(ctx, "x", "x", model.Bounded(1), 0, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("zero period: got %v", err)
	}
	if _, err := uc.Create(ctx, "x", "x", model.Bounded(-5), 30, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("negative credits: got %v", err)
	}
}
