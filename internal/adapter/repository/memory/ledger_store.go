package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// Op names a LedgerTx operation, used to inject faults in tests
type Op string

const (
	OpLockAccount       Op = "LockAccount"
	OpGetHolding        Op = "GetHolding"
	OpSaveAccount       Op = "SaveAccount"
	OpCreateHolding     Op = "CreateHolding"
	OpUpdateHolding     Op = "UpdateHolding"
	OpDeleteHolding     Op = "DeleteHolding"
	OpAppendTransaction Op = "AppendTransaction"
	OpCommit            Op = "Commit"
)

type holdingKey struct {
	accountID uuid.UUID
	symbol    string
}

// LedgerStore is an in-memory persistence gateway.
// Writes made inside RunInTx are staged and applied together on commit, or discarded on error.
// It does not serialize concurrent writers to one account; callers do that.
type LedgerStore struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]domain.Account
	holdings     map[holdingKey]domain.Holding
	transactions []domain.Transaction

	faultMu sync.Mutex
	faults  map[Op]error
}

// NewLedgerStore creates an empty store
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		accounts: make(map[uuid.UUID]domain.Account),
		holdings: make(map[holdingKey]domain.Holding),
		faults:   make(map[Op]error),
	}
}

// FailNext makes the next call of op return err
func (s *LedgerStore) FailNext(op Op, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = err
}

func (s *LedgerStore) fault(op Op) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return fmt.Errorf("failed to %s: %w", op, err)
}

// CreateAccount adds an account
func (s *LedgerStore) CreateAccount(ctx context.Context, account *domain.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	s.accounts[account.ID] = *account
	return nil
}

// GetAccount returns a copy of the account
func (s *LedgerStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &account, nil
}

// ListHoldings returns the account's holdings ordered by symbol
func (s *LedgerStore) ListHoldings(ctx context.Context, accountID uuid.UUID) ([]*domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	holdings := make([]*domain.Holding, 0)
	for key, h := range s.holdings {
		if key.accountID == accountID {
			h := h
			holdings = append(holdings, &h)
		}
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings, nil
}

// ListTransactions returns a page of the account's transactions, newest first
func (s *LedgerStore) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		return []*domain.Transaction{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	page := make([]*domain.Transaction, 0, limit)
	skipped := 0
	for i := len(s.transactions) - 1; i >= 0 && len(page) < limit; i-- {
		t := s.transactions[i]
		if t.AccountID != accountID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		page = append(page, &t)
	}
	return page, nil
}

// CountTransactions returns the number of transactions recorded for the account
func (s *LedgerStore) CountTransactions(ctx context.Context, accountID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, t := range s.transactions {
		if t.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

// RunInTx stages every write made by fn and applies them in one step if fn succeeds
func (s *LedgerStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &ledgerTx{
		store:    s,
		accounts: make(map[uuid.UUID]domain.Account),
		holdings: make(map[holdingKey]*stagedHolding),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := s.fault(OpCommit); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *LedgerStore) commit(tx *ledgerTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, account := range tx.accounts {
		s.accounts[id] = account
	}
	for key, staged := range tx.holdings {
		if staged.deleted {
			delete(s.holdings, key)
			continue
		}
		s.holdings[key] = staged.holding
	}
	s.transactions = append(s.transactions, tx.transactions...)
}

type stagedHolding struct {
	holding domain.Holding
	deleted bool
}

type ledgerTx struct {
	store        *LedgerStore
	accounts     map[uuid.UUID]domain.Account
	holdings     map[holdingKey]*stagedHolding
	transactions []domain.Transaction
}

func (t *ledgerTx) LockAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if err := t.store.fault(OpLockAccount); err != nil {
		return nil, err
	}
	if account, ok := t.accounts[id]; ok {
		return &account, nil
	}
	return t.store.GetAccount(ctx, id)
}

func (t *ledgerTx) GetHolding(ctx context.Context, accountID uuid.UUID, symbol string) (*domain.Holding, error) {
	if err := t.store.fault(OpGetHolding); err != nil {
		return nil, err
	}
	key := holdingKey{accountID: accountID, symbol: symbol}
	if staged, ok := t.holdings[key]; ok {
		if staged.deleted {
			return nil, domain.ErrHoldingNotFound
		}
		h := staged.holding
		return &h, nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	h, ok := t.store.holdings[key]
	if !ok {
		return nil, domain.ErrHoldingNotFound
	}
	return &h, nil
}

func (t *ledgerTx) SaveAccount(ctx context.Context, account *domain.Account) error {
	if err := t.store.fault(OpSaveAccount); err != nil {
		return err
	}
	if err := account.Validate(); err != nil {
		return err
	}
	t.accounts[account.ID] = *account
	return nil
}

func (t *ledgerTx) CreateHolding(ctx context.Context, holding *domain.Holding) error {
	if err := t.store.fault(OpCreateHolding); err != nil {
		return err
	}
	if err := holding.Validate(); err != nil {
		return err
	}
	key := holdingKey{accountID: holding.AccountID, symbol: holding.Symbol}
	if _, err := t.GetHolding(ctx, holding.AccountID, holding.Symbol); err == nil {
		return fmt.Errorf("holding %s already exists for account %s", holding.Symbol, holding.AccountID)
	} else if !errors.Is(err, domain.ErrHoldingNotFound) {
		return err
	}
	t.holdings[key] = &stagedHolding{holding: *holding}
	return nil
}

func (t *ledgerTx) UpdateHolding(ctx context.Context, holding *domain.Holding) error {
	if err := t.store.fault(OpUpdateHolding); err != nil {
		return err
	}
	if err := holding.Validate(); err != nil {
		return err
	}
	t.holdings[holdingKey{accountID: holding.AccountID, symbol: holding.Symbol}] = &stagedHolding{holding: *holding}
	return nil
}

func (t *ledgerTx) DeleteHolding(ctx context.Context, id uuid.UUID) error {
	if err := t.store.fault(OpDeleteHolding); err != nil {
		return err
	}
	for key, staged := range t.holdings {
		if staged.holding.ID == id {
			staged.deleted = true
			t.holdings[key] = staged
			return nil
		}
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for key, h := range t.store.holdings {
		if h.ID == id {
			t.holdings[key] = &stagedHolding{holding: h, deleted: true}
			return nil
		}
	}
	return domain.ErrHoldingNotFound
}

func (t *ledgerTx) AppendTransaction(ctx context.Context, record *domain.Transaction) error {
	if err := t.store.fault(OpAppendTransaction); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}
	t.transactions = append(t.transactions, *record)
	return nil
}
