//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/model"
	"contentops-credits/internal/domain/ports/repository"
)

type syncFixture struct {
	plans *memPlanRepo
	subs  *memSubRepo
	uc    *SyncUseCase
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		plans: newMemPlanRepo(),
		subs:  newMemSubRepo(),
	}
	f.uc = NewSyncUseCase(f.subs, f.plans, NewMockTxManager(), newTestLogger())

	ctx := context.Background()
	for _, seed := range []struct {
		id        string
		allotment model.Allotment
	}{
		{model.FreePlanID, model.Bounded(3)},
		{"creator", model.Bounded(40)},
		{"pro", model.Bounded(200)},
	} {
		p, err := model.NewPlan(seed.id, seed.id, seed.allotment, 30, nil)
		if err != nil {
			t.Fatalf("new plan %s: %v", seed.id, err)
		}
		if err := f.plans.Save(ctx, repository.NoTX, p); err != nil {
			t.Fatalf("seed plan %s: %v", seed.id, err)
		}
	}
	return f
}

func TestApplyPlanChange_CreatesSubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newSyncFixture(t)
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	err := f.uc.ApplyPlanChange(ctx, PlanChangeEvent{
		EventID:     "evt-1",
		UserID:      "u1",
		PlanID:      "pro",
		Status:      model.SubscriptionStatusActive,
		EffectiveAt: start,
		PeriodStart: start,
		PeriodEnd:   start.Add(30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ApplyPlanChange: %v", err)
	}

	sub, err := f.subs.FindByUser(ctx, repository.NoTX, "u1")
	if err != nil {
		t.Fatalf("FindByUser: %v", err)
	}
	if sub.PlanID != "pro" || sub.Status != model.SubscriptionStatusActive {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
	if sub.LastEventID != "evt-1" || !sub.LastEventAt.Equal(start) {
		t.Fatalf("event marker not recorded: %+v", sub)
	}
	if !sub.BillingPeriodStart.Equal(start) {
		t.Fatalf("billing anchor not taken from event: %v", sub.BillingPeriodStart)
	}
}

func TestApplyPlanChange_DuplicateEventIsNoOp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newSyncFixture(t)
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	ev := PlanChangeEvent{
		EventID:     "evt-1",
		UserID:      "u1",
		PlanID:      "pro",
		Status:      model.SubscriptionStatusActive,
		EffectiveAt: start,
	}
	if err := f.uc.ApplyPlanChange(ctx, ev); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	before, _ := f.subs.FindByUser(ctx, repository.NoTX, "u1")

	// provider redelivers the same event with a tampered payload
	ev.PlanID = "creator"
	ev.EffectiveAt = start.Add(time.Hour)
	if err := f.uc.ApplyPlanChange(ctx, ev); err != nil {
		t.Fatalf("redelivery must succeed as a no-op: %v", err)
	}

	after, _ := f.subs.FindByUser(ctx, repository.NoTX, "u1")
	if after.PlanID != before.PlanID || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("redelivery mutated the subscription: before=%+v after=%+v", before, after)
	}
}

func TestApplyPlanChange_OutOfOrderEventSkipped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newSyncFixture(t)
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	if err := f.uc.ApplyPlanChange(ctx, PlanChangeEvent{
		EventID: "evt-2", UserID: "u1", PlanID: "pro",
		Status: model.SubscriptionStatusActive, EffectiveAt: base.Add(time.Hour),
	}); err != nil {
		t.Fatalf("newer event: %v", err)
	}

	// an older delivery arrives late
	if err := f.uc.ApplyPlanChange(ctx, PlanChangeEvent{
		EventID: "evt-1", UserID: "u1", PlanID: "creator",
		Status: model.SubscriptionStatusCanceled, EffectiveAt: base,
	}); err != nil {
		t.Fatalf("stale event must be acknowledged: %v", err)
	}

	sub, _ := f.subs.FindByUser(ctx, repository.NoTX, "u1")
	if sub.PlanID != "pro" || sub.Status != model.SubscriptionStatusActive {
		t.Fatalf("stale event overwrote newer state: %+v", sub)
	}
	if sub.LastEventID != "evt-2" {
		t.Fatalf("event marker regressed: %s", sub.LastEventID)
	}
}

func TestApplyPlanChange_UnknownPlan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newSyncFixture(t)

	err := f.uc.ApplyPlanChange(ctx, PlanChangeEvent{
		EventID: "evt-1", UserID: "u1", PlanID: "no-such-plan",
		Status: model.SubscriptionStatusActive, EffectiveAt: time.Now(),
	})
	if !errors.Is(err, domain.ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
	if _, err := f.subs.FindByUser(ctx, repository.NoTX, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("no subscription must be written on unknown plan")
	}
}

func TestApplyPlanChange_InvalidEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newSyncFixture(t)

	cases := []PlanChangeEvent{
		{UserID: "u1", PlanID: "pro", Status: model.SubscriptionStatusActive},               // missing event id
		{EventID: "e", PlanID: "pro", Status: model.SubscriptionStatusActive},               // missing user
		{EventID: "e", UserID: "u1", Status: model.SubscriptionStatusActive},                // missing plan
		{EventID: "e", UserID: "u1", PlanID: "pro", Status: model.SubscriptionStatus("??")}, // bad status
	}
	for i, ev := range cases {
		if err := f.uc.ApplyPlanChange(ctx, ev); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("case %d: expected ErrInvalidArgument, got %v", i, err)
		}
	}
}

// A downgrade updates the subscription immediately but never claws back the
// already granted balance; the smaller allotment lands at the next rollover.
func TestApplyPlanChange_DowngradeNoClawback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newSyncFixture(t)
	bals := newMemBalanceRepo()
	events := newMemEventRepo()
	deduct := NewDeductionUseCase(bals, f.subs, f.plans, events, NewMockTxManager(), newTestLogger())

	start := time.Now().Add(-24 * time.Hour)
	if err := f.uc.ApplyPlanChange(ctx, PlanChangeEvent{
		EventID: "evt-1", UserID: "u1", PlanID: "pro",
		Status: model.SubscriptionStatusActive, EffectiveAt: start,
		PeriodStart: start, PeriodEnd: start.Add(30 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// spend once on pro: balance row now holds 199 of 200
	res, err := deduct.TryConsume(ctx, ConsumeInput{UserID: "u1"})
	if err != nil || !res.OK || res.Remaining != 199 {
		t.Fatalf("spend on pro: res=%+v err=%v", res, err)
	}

	// downgrade mid-period
	if err := f.uc.ApplyPlanChange(ctx, PlanChangeEvent{
		EventID: "evt-2", UserID: "u1", PlanID: "creator",
		Status: model.SubscriptionStatusActive, EffectiveAt: start.Add(48 * time.Hour),
		PeriodStart: start, PeriodEnd: start.Add(30 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("downgrade: %v", err)
	}

	// grandfathered: the granted 199 are still spendable this period
	res, err = deduct.TryConsume(ctx, ConsumeInput{UserID: "u1"})
	if err != nil || !res.OK || res.Remaining != 198 {
		t.Fatalf("spend after downgrade: res=%+v err=%v", res, err)
	}

	// force the period to lapse; the next spend rolls into the new plan
	bal := bals.get("u1")
	bal.PeriodStart = bal.PeriodStart.Add(-31 * 24 * time.Hour)
	bal.PeriodEnd = bal.PeriodEnd.Add(-31 * 24 * time.Hour)
	bals.put(bal)
	sub, _ := f.subs.FindByUser(ctx, repository.NoTX, "u1")
	sub.BillingPeriodStart = sub.BillingPeriodStart.Add(-31 * 24 * time.Hour)
	if err := f.subs.Save(ctx, repository.NoTX, sub); err != nil {
		t.Fatalf("rewind subscription: %v", err)
	}

	res, err = deduct.TryConsume(ctx, ConsumeInput{UserID: "u1"})
	if err != nil || !res.OK {
		t.Fatalf("spend after rollover: res=%+v err=%v", res, err)
	}
	if res.Remaining != 39 {
		t.Fatalf("expected the creator allotment (40) minus one, got %d", res.Remaining)
	}
}

// Cancellation keeps the paid balance until the period closes, then the user
// rolls into the free plan.
func TestApplyPlanChange_CancelRollsIntoFree(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newSyncFixture(t)
	bals := newMemBalanceRepo()
	events := newMemEventRepo()
	deduct := NewDeductionUseCase(bals, f.subs, f.plans, events, NewMockTxManager(), newTestLogger())

	start := time.Now().Add(-40 * 24 * time.Hour)
	if err := f.uc.ApplyPlanChange(ctx, PlanChangeEvent{
		EventID: "evt-1", UserID: "u1", PlanID: "pro",
		Status: model.SubscriptionStatusCanceled, EffectiveAt: start,
		PeriodStart: start, PeriodEnd: start.Add(30 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// lapsed period, canceled sub: the spend resolves against the free plan
	res, err := deduct.TryConsume(ctx, ConsumeInput{UserID: "u1"})
	if err != nil || !res.OK {
		t.Fatalf("spend after cancel: res=%+v err=%v", res, err)
	}
	if res.Remaining != 2 {
		t.Fatalf("expected the free allotment (3) minus one, got %d", res.Remaining)
	}
}
