//go:build !integration

package api_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"contentops-credits/internal/domain"
	"contentops-credits/internal/domain/model"
	"contentops-credits/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ---------------- in-memory repos backing the handler tests ----------------

type memPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Plan
}

func newMemPlanRepo() *memPlanRepo { return &memPlanRepo{store: map[string]*model.Plan{}} }

func (m *memPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *plan
	m.store[plan.ID] = &cp
	return nil
}

func (m *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Plan, 0, len(m.store))
	for _, p := range m.store {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPlanRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

type memSubRepo struct {
	mu   sync.RWMutex
	subs map[string]*model.Subscription
}

func newMemSubRepo() *memSubRepo { return &memSubRepo{subs: map[string]*model.Subscription{}} }

func (m *memSubRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.UserID] = &cp
	return nil
}

func (m *memSubRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

type memBalanceRepo struct {
	mu    sync.RWMutex
	store map[string]*model.CreditBalance
}

func newMemBalanceRepo() *memBalanceRepo {
	return &memBalanceRepo{store: map[string]*model.CreditBalance{}}
}

func (m *memBalanceRepo) Save(ctx context.Context, tx repository.Tx, bal *model.CreditBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.store[bal.UserID]; ok && existing.Version != bal.Version {
		return domain.ErrConcurrencyConflict
	}
	bal.Version++
	cp := *bal
	m.store[bal.UserID] = &cp
	return nil
}

func (m *memBalanceRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.CreditBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.store[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBalanceRepo) FindByUserForUpdate(ctx context.Context, tx repository.Tx, userID string) (*model.CreditBalance, error) {
	return m.FindByUser(ctx, tx, userID)
}

func (m *memBalanceRepo) ListRolloverDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, b := range m.store {
		if !now.Before(b.PeriodEnd) && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}

type memEventRepo struct {
	mu     sync.RWMutex
	events []*model.UsageEvent
	byKey  map[string]*model.UsageEvent
}

func newMemEventRepo() *memEventRepo { return &memEventRepo{byKey: map[string]*model.UsageEvent{}} }

func (m *memEventRepo) Append(ctx context.Context, tx repository.Tx, ev *model.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.IdempotencyKey != "" {
		if _, dup := m.byKey[ev.IdempotencyKey]; dup {
			return domain.ErrAlreadyExists
		}
	}
	cp := *ev
	m.events = append(m.events, &cp)
	if cp.IdempotencyKey != "" {
		m.byKey[cp.IdempotencyKey] = &cp
	}
	return nil
}

func (m *memEventRepo) FindByIdempotencyKey(ctx context.Context, tx repository.Tx, userID, key string) (*model.UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.byKey[key]
	if !ok || ev.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (m *memEventRepo) ListRecentByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.UsageEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].UserID == userID {
			cp := *m.events[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memTxManager struct {
	mu sync.Mutex
}

func (m *memTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}
