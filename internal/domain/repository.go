package domain

import (
	"context"

	"github.com/google/uuid"
)

// LedgerStore is the transactional persistence gateway used by the ledger
type LedgerStore interface {
	// RunInTx executes fn inside one all-or-nothing unit.
	// If fn returns an error every change made through tx is discarded.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the mutation surface available inside a transactional scope
type LedgerTx interface {
	// LockAccount loads an account and holds it for update until the scope ends
	// Returns ErrAccountNotFound if the account does not exist
	LockAccount(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetHolding loads the holding of symbol for the account
	// Returns ErrHoldingNotFound if the account holds none
	GetHolding(ctx context.Context, accountID uuid.UUID, symbol string) (*Holding, error)

	SaveAccount(ctx context.Context, account *Account) error
	CreateHolding(ctx context.Context, holding *Holding) error
	UpdateHolding(ctx context.Context, holding *Holding) error
	DeleteHolding(ctx context.Context, id uuid.UUID) error

	// AppendTransaction adds to the audit trail; transactions are never modified afterwards
	AppendTransaction(ctx context.Context, tx *Transaction) error
}

// LedgerReader is the read side of the persistence gateway
type LedgerReader interface {
	// GetAccount returns ErrAccountNotFound if the account does not exist
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)

	// ListHoldings returns the account's holdings ordered by symbol
	ListHoldings(ctx context.Context, accountID uuid.UUID) ([]*Holding, error)

	// ListTransactions returns a page of the account's transactions, newest first
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Transaction, error)

	// CountTransactions returns the total number of transactions for the account
	CountTransactions(ctx context.Context, accountID uuid.UUID) (int, error)
}

// AccountCreator provisions accounts; used by seeding and tests only
type AccountCreator interface {
	CreateAccount(ctx context.Context, account *Account) error
}
