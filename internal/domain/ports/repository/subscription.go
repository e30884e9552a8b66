package repository

import (
	"context"

	"contentops-credits/internal/domain/model"
)

// SubscriptionRepository is the port for the locally cached subscription
// state. One row per user.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
}
