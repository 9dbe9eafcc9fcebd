package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/cryptotrade-backend/internal/domain"
	"golang.org/x/sync/semaphore"
)

// AccountLocks is an in-process lock table keyed by account ID.
// Entries are reference counted and dropped once no caller holds or waits on them.
type AccountLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
	timeout time.Duration
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// NewAccountLocks creates a lock table. A zero timeout waits until ctx is done.
func NewAccountLocks(timeout time.Duration) *AccountLocks {
	return &AccountLocks{
		entries: make(map[uuid.UUID]*lockEntry),
		timeout: timeout,
	}
}

// Acquire blocks until the caller is the only holder of the account's lock.
// Returns ErrConcurrencyConflict if the wait exceeds the timeout or ctx ends first.
func (l *AccountLocks) Acquire(ctx context.Context, accountID uuid.UUID) (func(), error) {
	entry := l.ref(accountID)

	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := entry.sem.Acquire(waitCtx, 1); err != nil {
		l.unref(accountID, entry)
		return nil, domain.WrapTradeError(domain.KindConcurrencyConflict, domain.ErrConcurrencyConflict.Message, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.sem.Release(1)
			l.unref(accountID, entry)
		})
	}, nil
}

// Len returns the number of accounts currently locked or awaited
func (l *AccountLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *AccountLocks) ref(accountID uuid.UUID) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[accountID]
	if !ok {
		entry = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[accountID] = entry
	}
	entry.refs++
	return entry
}

func (l *AccountLocks) unref(accountID uuid.UUID, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, accountID)
	}
}
