package repository

import (
	"context"

	"contentops-credits/internal/domain/model"
)

// UsageEventRepository is the port for the append-only usage log.
//
// Append fails with domain.ErrAlreadyExists when the idempotency key is
// already recorded for the user; callers treat that as a replay, not an
// error.
type UsageEventRepository interface {
	Append(ctx context.Context, tx Tx, ev *model.UsageEvent) error
	FindByIdempotencyKey(ctx context.Context, tx Tx, userID, key string) (*model.UsageEvent, error)
	ListRecentByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.UsageEvent, error)
}
