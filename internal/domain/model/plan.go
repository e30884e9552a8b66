package model

import (
	"encoding/json"
	"time"

	"contentops-credits/internal/domain"
)

// FreePlanID is the catalog entry every user falls back to when no paid
// subscription is in effect. It must exist in the plans table.
const FreePlanID = "free"

// Allotment is the per-period credit grant of a plan: either a bounded
// number of credits or unlimited. Keeping it as a tagged value (instead of
// a -1 sentinel) keeps sign bugs out of the deduction arithmetic; the -1
// convention survives only at the JSON edge for API clients.
type Allotment struct {
	unlimited bool
	credits   int
}

func Unlimited() Allotment { return Allotment{unlimited: true} }

func Bounded(credits int) Allotment { return Allotment{credits: credits} }

func (a Allotment) IsUnlimited() bool { return a.unlimited }

// Credits returns the bounded grant. Zero for unlimited allotments; callers
// must check IsUnlimited first.
func (a Allotment) Credits() int {
	if a.unlimited {
		return 0
	}
	return a.credits
}

type allotmentJSON struct {
	Unlimited bool `json:"unlimited"`
	Credits   int  `json:"credits"`
}

func (a Allotment) MarshalJSON() ([]byte, error) {
	return json.Marshal(allotmentJSON{Unlimited: a.unlimited, Credits: a.credits})
}

func (a *Allotment) UnmarshalJSON(b []byte) error {
	var v allotmentJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	a.unlimited = v.Unlimited
	a.credits = v.Credits
	return nil
}

// Plan is a catalog entry. Immutable at read time; changed only through the
// admin catalog API, never by user action.
type Plan struct {
	ID           string
	Name         string
	Allotment    Allotment
	PeriodDays   int
	FeatureFlags []string
	CreatedAt    time.Time
}

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, allotment Allotment, periodDays int, featureFlags []string) (*Plan, error) {
	if id == "" || name == "" || periodDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if !allotment.IsUnlimited() && allotment.Credits() < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:           id,
		Name:         name,
		Allotment:    allotment,
		PeriodDays:   periodDays,
		FeatureFlags: featureFlags,
		CreatedAt:    time.Now(),
	}, nil
}

// Period is the billing cycle length of the plan.
func (p *Plan) Period() time.Duration {
	return time.Duration(p.PeriodDays) * 24 * time.Hour
}

// HasFeature reports whether the plan carries a capability key.
func (p *Plan) HasFeature(key string) bool {
	for _, f := range p.FeatureFlags {
		if f == key {
			return true
		}
	}
	return false
}
