// File: internal/usecase/mocks_test.go
package usecase

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

// memPlanRepo is a small in-memory plan catalog used by unit tests.
type memPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Plan
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{store: make(map[string]*model.Plan)}
}

var _ repository.PlanRepository = (*memPlanRepo)(nil)

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

// memSubRepo provides in-memory subscriptions, one per user.
type memSubRepo struct {
	mu   sync.RWMutex
	subs map[string]*model.Subscription
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{subs: make(map[string]*model.Subscription)}
}

var _ repository.SubscriptionRepository = (*memSubRepo)(nil)

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

// memBalanceRepo mimics the Postgres ledger including the version
// compare-and-swap on Save. SaveFunc lets tests inject conflicts.
type memBalanceRepo struct {
	mu    sync.RWMutex
	store map[string]*model.CreditBalance

	SaveFunc func(ctx context.Context, tx repository.Tx, bal *model.CreditBalance) error
}

func newMemBalanceRepo() *memBalanceRepo {
	return &memBalanceRepo{store: make(map[string]*model.CreditBalance)}
}

var _ repository.BalanceRepository = (*memBalanceRepo)(nil)

func (m *memBalanceRepo) Save(ctx context.Context, tx repository.Tx, bal *model.CreditBalance) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, bal)
	}
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
		if !now.Before(b.PeriodEnd) {
			out = append(out, id)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memBalanceRepo) get(userID string) *model.CreditBalance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.store[userID]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

func (m *memBalanceRepo) put(bal *model.CreditBalance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *bal
	m.store[bal.UserID] = &cp
}

// memEventRepo is an in-memory append-only usage log with the unique
// idempotency-key behavior of the real table.
type memEventRepo struct {
	mu     sync.RWMutex
	events []*model.UsageEvent
	byKey  map[string]*model.UsageEvent
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{byKey: make(map[string]*model.UsageEvent)}
}

var _ repository.UsageEventRepository = (*memEventRepo)(nil)

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

func (m *memEventRepo) count(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, ev := range m.events {
		if ev.UserID == userID {
			n++
		}
	}
	return n
}

// MockTxManager runs the transaction body directly. The mutex serializes
// concurrent transactions the way the row lock on the balance does against
// Postgres, which keeps concurrency tests deterministic. Assign WithTxFunc
// to take over transaction behavior entirely.
type MockTxManager struct {
	mu         sync.Mutex
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}
