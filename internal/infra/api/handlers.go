package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/model"
	"contentops-credits/internal/infra/logging"
	"contentops-credits/internal/infra/metrics"
	"contentops-credits/internal/usecase"
)

type creditsPayload struct {
	Remaining        int       `json:"remaining"` // -1 when the plan is unlimited
	UsedThisPeriod   int       `json:"usedThisPeriod"`
	LifetimeUsed     int       `json:"lifetimeUsed"`
	FreeCreditsTotal int       `json:"freeCreditsTotal"`
	FreeCreditsUsed  int       `json:"freeCreditsUsed"`
	PeriodStart      time.Time `json:"periodStart"`
	PeriodEnd        time.Time `json:"periodEnd"`
}

type subscriptionPayload struct {
	PlanID           string    `json:"planId"`
	PlanName         string    `json:"planName"`
	Status           string    `json:"status"`
	CreditsPerMonth  int       `json:"creditsPerMonth"` // -1 when unlimited
	BillingPeriodEnd time.Time `json:"billingPeriodEnd"`
}

type balanceResponse struct {
	Credits      creditsPayload      `json:"credits"`
	Subscription subscriptionPayload `json:"subscription"`
}

// handleGetCredits serves the display projection. Always 200 for an
// authenticated user; never decrements.
func (s *Server) handleGetCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserID(ctx)

	view, err := s.balanceUC.GetBalance(ctx, userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := balanceResponse{
		Credits: creditsPayload{
			Remaining:        view.Remaining,
			UsedThisPeriod:   view.UsedThisPeriod,
			LifetimeUsed:     view.LifetimeUsed,
			FreeCreditsTotal: view.FreeCreditsTotal,
			FreeCreditsUsed:  view.FreeCreditsUsed,
			PeriodStart:      view.PeriodStart,
			PeriodEnd:        view.PeriodEnd,
		},
		Subscription: subscriptionPayload{
			PlanID:           view.Plan.ID,
			PlanName:         view.Plan.Name,
			Status:           "none",
			CreditsPerMonth:  allotmentWire(view.Plan.Allotment),
			BillingPeriodEnd: view.PeriodEnd,
		},
	}
	if sub := view.Subscription; sub != nil {
		resp.Subscription.Status = string(sub.Status)
		resp.Subscription.BillingPeriodEnd = sub.BillingPeriodEnd
	}
	writeJSON(w, http.StatusOK, resp)
}

type consumeRequest struct {
	Description    string `json:"description"`
	SkitID         string `json:"skitId"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// handleConsumeCredit spends one credit. The remaining balance is echoed on
// refusal as well, so the client can resync without a second read.
func (s *Server) handleConsumeCredit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserID(ctx)

	var req consumeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	res, err := s.deductUC.TryConsume(ctx, usecase.ConsumeInput{
		UserID:          userID,
		IdempotencyKey:  req.IdempotencyKey,
		Description:     req.Description,
		RelatedEntityID: req.SkitID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			metrics.IncDeduction("conflict")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error": "temporarily unavailable, retry with an idempotency key",
			})
			return
		}
		metrics.IncDeduction("error")
		s.fail(w, r, err)
		return
	}

	if !res.OK {
		metrics.IncDeduction("insufficient")
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":            string(res.Reason),
			"creditsRemaining": res.Remaining,
		})
		return
	}

	switch {
	case res.Replayed:
		metrics.IncDeduction("replayed")
	case res.Unlimited:
		metrics.IncDeduction("unlimited")
	default:
		metrics.IncDeduction("granted")
	}
	writeJSON(w, http.StatusOK, map[string]any{"creditsRemaining": res.Remaining})
}

type usageEventPayload struct {
	ID              string    `json:"id"`
	Amount          int       `json:"amount"`
	Description     string    `json:"description"`
	RelatedEntityID string    `json:"relatedEntityId,omitempty"`
	Remaining       int       `json:"remaining"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserID(ctx)

	events, err := s.balanceUC.ListRecentEvents(ctx, userID, 50)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]usageEventPayload, 0, len(events))
	for _, ev := range events {
		out = append(out, usageEventPayload{
			ID:              ev.ID,
			Amount:          ev.Amount,
			Description:     ev.Description,
			RelatedEntityID: ev.RelatedEntityID,
			Remaining:       ev.RemainingAfter,
			CreatedAt:       ev.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

type subscriptionEventRequest struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	PlanID      string    `json:"planId"`
	Status      string    `json:"status"`
	EffectiveAt time.Time `json:"effectiveAt"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
}

// handleSubscriptionEvent ingests billing-provider deliveries. Duplicate or
// out-of-order events are acknowledged as applied no-ops so the provider
// stops redelivering them.
func (s *Server) handleSubscriptionEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req subscriptionEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.IncWebhookEvent("rejected")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := s.syncUC.ApplyPlanChange(ctx, usecase.PlanChangeEvent{
		EventID:     req.ID,
		UserID:      req.UserID,
		PlanID:      req.PlanID,
		Status:      model.SubscriptionStatus(req.Status),
		EffectiveAt: req.EffectiveAt,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
	})
	switch {
	case err == nil:
		metrics.IncWebhookEvent("applied")
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
	case errors.Is(err, domain.ErrInvalidArgument):
		metrics.IncWebhookEvent("rejected")
		http.Error(w, "Invalid event", http.StatusBadRequest)
	default:
		metrics.IncWebhookEvent("error")
		s.fail(w, r, err)
	}
}

type planRequest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Credits      int      `json:"credits"`
	Unlimited    bool     `json:"unlimited"`
	PeriodDays   int      `json:"period_days"`
	FeatureFlags []string `json:"feature_flags"`
}

type planPayload struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Credits      int       `json:"credits"` // -1 when unlimited
	Unlimited    bool      `json:"unlimited"`
	PeriodDays   int       `json:"period_days"`
	FeatureFlags []string  `json:"feature_flags"`
	CreatedAt    time.Time `json:"created_at"`
}

func toPlanPayload(p *model.Plan) planPayload {
	return planPayload{
		ID:           p.ID,
		Name:         p.Name,
		Credits:      allotmentWire(p.Allotment),
		Unlimited:    p.Allotment.IsUnlimited(),
		PeriodDays:   p.PeriodDays,
		FeatureFlags: p.FeatureFlags,
		CreatedAt:    p.CreatedAt,
	}
}

func (req planRequest) allotment() model.Allotment {
	if req.Unlimited {
		return model.Unlimited()
	}
	return model.Bounded(req.Credits)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planUC.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]planPayload, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanPayload(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	plan, err := s.planUC.Create(r.Context(), req.ID, req.Name, req.allotment(), req.PeriodDays, req.FeatureFlags)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanPayload(plan))
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	plan, err := s.planUC.Update(r.Context(), id, req.Name, req.allotment(), req.PeriodDays, req.FeatureFlags)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "Plan not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			s.fail(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, toPlanPayload(plan))
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.planUC.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "Plan not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "Plan cannot be deleted", http.StatusBadRequest)
		default:
			s.fail(w, r, err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail logs and maps non-user errors. Data-integrity problems (unknown plan)
// fail closed rather than assuming credits.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	l := logging.With(r.Context(), s.log)
	if errors.Is(err, domain.ErrUnknownPlan) {
		l.Error().Err(err).Msg("plan catalog inconsistency")
		http.Error(w, "Service misconfigured", http.StatusInternalServerError)
		return
	}
	l.Error().Err(err).Msg("request failed")
	http.Error(w, "Internal error", http.StatusInternalServerError)
}

func allotmentWire(a model.Allotment) int {
	if a.IsUnlimited() {
		return model.RemainingUnlimited
	}
	return a.Credits()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
