// Package memory implements the engine's store interfaces with mutex-guarded
// maps. It backs the test suite and lets the API run without Postgres
// (STORE_DRIVER=memory).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/engine"
)

// Store holds all state behind one mutex. An atomic unit holds the lock for
// its whole duration and stages its writes, so a unit either applies entirely
// or not at all, matching the transactional store.
type Store struct {
	mu               sync.Mutex
	accountsByID     map[uuid.UUID]*domain.Account
	accountNumberIdx map[string]uuid.UUID
	transactions     map[string]*domain.Transaction

	transferJobs []*transferJob
	webhookJobs  []*webhookJob
	nextJobID    int64
}

var _ engine.Store = (*Store)(nil)

func NewStore() *Store {
	s := &Store{
		accountsByID:     make(map[uuid.UUID]*domain.Account),
		accountNumberIdx: make(map[string]uuid.UUID),
		transactions:     make(map[string]*domain.Transaction),
	}
	return s
}

func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	return &cp
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	cp := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

func (s *Store) CreateAccount(_ context.Context, acc *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accountNumberIdx[acc.AccountNumber]; exists {
		return &domain.ValidationError{Field: "account_number", Reason: "already exists"}
	}

	cp := cloneAccount(acc)
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.Version == 0 {
		cp.Version = 1
	}
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	s.accountsByID[cp.ID] = cp
	s.accountNumberIdx[cp.AccountNumber] = cp.ID
	*acc = *cp
	return nil
}

func (s *Store) AccountByNumber(_ context.Context, number string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.accountNumberIdx[number]
	if !ok {
		return nil, nil
	}
	return cloneAccount(s.accountsByID[id]), nil
}

func (s *Store) AccountsByNumber(_ context.Context, numbers ...string) (map[string]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*domain.Account, len(numbers))
	for _, n := range numbers {
		if id, ok := s.accountNumberIdx[n]; ok {
			out[n] = cloneAccount(s.accountsByID[id])
		}
	}
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[txn.TransactionID]; exists {
		return &domain.DuplicateTransactionError{TransactionID: txn.TransactionID}
	}
	s.transactions[txn.TransactionID] = cloneTransaction(txn)
	return nil
}

func (s *Store) TransactionByID(_ context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactionLocked(transactionID), nil
}

func (s *Store) transactionLocked(transactionID string) *domain.Transaction {
	txn, ok := s.transactions[transactionID]
	if !ok {
		return nil
	}
	return cloneTransaction(txn)
}

func (s *Store) ListByAccount(_ context.Context, accountID uuid.UUID, limit, offset int, status *domain.Status) ([]domain.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]domain.Transaction, 0)
	for _, txn := range s.transactions {
		if txn.FromAccountID != accountID && txn.ToAccountID != accountID {
			continue
		}
		if status != nil && txn.Status != *status {
			continue
		}
		matched = append(matched, *cloneTransaction(txn))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].TransactionID > matched[j].TransactionID
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []domain.Transaction{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (s *Store) MarkTransactionFailed(_ context.Context, transactionID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[transactionID]
	if !ok || !txn.Status.CanTransitionTo(domain.StatusFailed) {
		return nil
	}
	txn.Status = domain.StatusFailed
	txn.ErrorMessage = message
	return nil
}

// Atomic holds the store lock for the duration of fn and stages every write;
// staged writes apply only when fn succeeds. The account pair is ignored:
// this store has no advisory-lock analogue, which is exactly the environment
// the version checks must stay correct in.
func (s *Store) Atomic(_ context.Context, _, _ string, fn func(engine.AtomicStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := &atomicView{store: s}
	if err := fn(view); err != nil {
		return err
	}
	view.apply()
	return nil
}

type balanceWrite struct {
	id      uuid.UUID
	balance decimal.Decimal
}

type completeWrite struct {
	transactionID string
	completedAt   time.Time
}

type atomicView struct {
	store    *Store
	balances []balanceWrite
	complete *completeWrite
}

func (v *atomicView) TransactionByID(_ context.Context, transactionID string) (*domain.Transaction, error) {
	return v.store.transactionLocked(transactionID), nil
}

func (v *atomicView) AccountByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	acc, ok := v.store.accountsByID[id]
	if !ok {
		return nil, nil
	}
	return cloneAccount(acc), nil
}

func (v *atomicView) UpdateAccountBalance(_ context.Context, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error {
	acc, ok := v.store.accountsByID[id]
	if !ok {
		return domain.ErrVersionConflict
	}
	if acc.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	v.balances = append(v.balances, balanceWrite{id: id, balance: balance})
	return nil
}

func (v *atomicView) CompleteTransaction(_ context.Context, transactionID string, completedAt time.Time) error {
	txn, ok := v.store.transactions[transactionID]
	if !ok || !txn.Status.CanTransitionTo(domain.StatusCompleted) {
		return domain.ErrVersionConflict
	}
	v.complete = &completeWrite{transactionID: transactionID, completedAt: completedAt}
	return nil
}

func (v *atomicView) apply() {
	now := time.Now().UTC()
	for _, w := range v.balances {
		acc := v.store.accountsByID[w.id]
		acc.Balance = w.balance
		acc.Version++
		acc.UpdatedAt = now
	}
	if v.complete != nil {
		txn := v.store.transactions[v.complete.transactionID]
		txn.Status = domain.StatusCompleted
		at := v.complete.completedAt
		txn.CompletedAt = &at
	}
}
