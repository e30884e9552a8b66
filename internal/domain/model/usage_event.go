package model

import (
	"time"

	"github.com/oklog/ulid/v2"

	"contentops-credits/internal/domain"
)

// RemainingUnlimited marks a usage event recorded against an unlimited plan,
// where no post-deduction balance exists.
const RemainingUnlimited = -1

// UsageEvent is an append-only ledger entry: one row per successful
// deduction. Write-once, never updated or deleted. It makes the balance
// counters reconstructible from the event log and carries the idempotency
// key plus the post-deduction remaining so a retried request can be answered
// with its original result.
type UsageEvent struct {
	ID              string // ULID: lexically ordered by creation time
	UserID          string
	Amount          int
	IdempotencyKey  string // empty when the caller supplied none
	Description     string
	RelatedEntityID string // e.g. the skit the credit paid for
	RemainingAfter  int    // RemainingUnlimited for unlimited plans
	CreatedAt       time.Time
}

// NewUsageEvent constructs an event with a fresh ULID.
func NewUsageEvent(userID string, amount int, idempotencyKey, description, relatedEntityID string, remainingAfter int) (*UsageEvent, error) {
	if userID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &UsageEvent{
		ID:              ulid.Make().String(),
		UserID:          userID,
		Amount:          amount,
		IdempotencyKey:  idempotencyKey,
		Description:     description,
		RelatedEntityID: relatedEntityID,
		RemainingAfter:  remainingAfter,
		CreatedAt:       time.Now(),
	}, nil
}
