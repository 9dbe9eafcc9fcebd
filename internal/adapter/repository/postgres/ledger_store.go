package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LedgerStore implements domain.LedgerStore and domain.LedgerReader over PostgreSQL.
// Rows touched by a trade are locked with SELECT ... FOR UPDATE for the duration of the transaction.
type LedgerStore struct {
	db          *DB
	lockTimeout time.Duration
}

// NewLedgerStore creates a new ledger store.
// lockTimeout bounds how long a transaction waits for a row lock; zero waits indefinitely.
func NewLedgerStore(db *DB, lockTimeout time.Duration) *LedgerStore {
	return &LedgerStore{db: db, lockTimeout: lockTimeout}
}

// RunInTx runs fn in a database transaction, committing only if fn succeeds
func (s *LedgerStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	dbTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if s.lockTimeout > 0 {
		// SET does not accept bind parameters
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := dbTx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(ctx, &ledgerTx{q: dbTx}); err != nil {
		return translateError(err)
	}

	if err := dbTx.Commit(); err != nil {
		return translateError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// CreateAccount creates a new account
func (s *LedgerStore) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, balance, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := s.db.ExecContext(ctx, query, account.ID, account.Balance.String(), account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by its ID
func (s *LedgerStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return getAccount(ctx, s.db, id, false)
}

// ListHoldings retrieves the account's holdings ordered by symbol
func (s *LedgerStore) ListHoldings(ctx context.Context, accountID uuid.UUID) ([]*domain.Holding, error) {
	query := `
		SELECT id, account_id, symbol, quantity, average_cost, updated_at
		FROM holdings
		WHERE account_id = $1
		ORDER BY symbol
	`
	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]*domain.Holding, 0)
	for rows.Next() {
		holding, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, holding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// ListTransactions retrieves a page of the account's transactions, newest first
func (s *LedgerStore) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT id, account_id, symbol, type, quantity, price_per_unit, total_price, transaction_date
		FROM transactions
		WHERE account_id = $1
		ORDER BY transaction_date DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*domain.Transaction, 0)
	for rows.Next() {
		var tx domain.Transaction
		var txType, quantityStr, priceStr, totalStr string
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Symbol, &txType, &quantityStr, &priceStr, &totalStr, &tx.Date); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Type = domain.TransactionType(txType)
		if tx.Quantity, err = decimal.NewFromString(quantityStr); err != nil {
			return nil, fmt.Errorf("failed to parse quantity: %w", err)
		}
		if tx.PricePerUnit, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("failed to parse price_per_unit: %w", err)
		}
		if tx.TotalPrice, err = decimal.NewFromString(totalStr); err != nil {
			return nil, fmt.Errorf("failed to parse total_price: %w", err)
		}
		txs = append(txs, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// CountTransactions returns the number of transactions recorded for the account
func (s *LedgerStore) CountTransactions(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// ledgerTx implements domain.LedgerTx on an open database transaction
type ledgerTx struct {
	q queryer
}

func (t *ledgerTx) LockAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return getAccount(ctx, t.q, id, true)
}

func (t *ledgerTx) GetHolding(ctx context.Context, accountID uuid.UUID, symbol string) (*domain.Holding, error) {
	query := `
		SELECT id, account_id, symbol, quantity, average_cost, updated_at
		FROM holdings
		WHERE account_id = $1 AND symbol = $2
		FOR UPDATE
	`
	rows, err := t.q.QueryContext(ctx, query, accountID, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get holding: %w", err)
		}
		return nil, domain.ErrHoldingNotFound
	}
	return scanHolding(rows)
}

func (t *ledgerTx) SaveAccount(ctx context.Context, account *domain.Account) error {
	res, err := t.q.ExecContext(ctx, `UPDATE accounts SET balance = $2 WHERE id = $1`, account.ID, account.Balance.String())
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return expectOneRow(res, domain.ErrAccountNotFound)
}

func (t *ledgerTx) CreateHolding(ctx context.Context, holding *domain.Holding) error {
	query := `
		INSERT INTO holdings (id, account_id, symbol, quantity, average_cost, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := t.q.ExecContext(ctx, query,
		holding.ID,
		holding.AccountID,
		holding.Symbol,
		holding.Quantity.String(),
		holding.AverageCost.String(),
		holding.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create holding: %w", err)
	}
	return nil
}

func (t *ledgerTx) UpdateHolding(ctx context.Context, holding *domain.Holding) error {
	query := `
		UPDATE holdings
		SET quantity = $2, average_cost = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := t.q.ExecContext(ctx, query, holding.ID, holding.Quantity.String(), holding.AverageCost.String(), holding.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	return expectOneRow(res, domain.ErrHoldingNotFound)
}

func (t *ledgerTx) DeleteHolding(ctx context.Context, id uuid.UUID) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM holdings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return expectOneRow(res, domain.ErrHoldingNotFound)
}

func (t *ledgerTx) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, account_id, symbol, type, quantity, price_per_unit, total_price, transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := t.q.ExecContext(ctx, query,
		tx.ID,
		tx.AccountID,
		tx.Symbol,
		string(tx.Type),
		tx.Quantity.String(),
		tx.PricePerUnit.String(),
		tx.TotalPrice.String(),
		tx.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func getAccount(ctx context.Context, q queryer, id uuid.UUID, forUpdate bool) (*domain.Account, error) {
	query := `
		SELECT id, balance, created_at
		FROM accounts
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var account domain.Account
	var balanceStr string
	err := q.QueryRowContext(ctx, query, id).Scan(&account.ID, &balanceStr, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	account.Balance = balance
	return &account, nil
}

func scanHolding(rows *sql.Rows) (*domain.Holding, error) {
	var holding domain.Holding
	var quantityStr, costStr string
	if err := rows.Scan(&holding.ID, &holding.AccountID, &holding.Symbol, &quantityStr, &costStr, &holding.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan holding: %w", err)
	}

	var err error
	if holding.Quantity, err = decimal.NewFromString(quantityStr); err != nil {
		return nil, fmt.Errorf("failed to parse quantity: %w", err)
	}
	if holding.AverageCost, err = decimal.NewFromString(costStr); err != nil {
		return nil, fmt.Errorf("failed to parse average_cost: %w", err)
	}
	return &holding, nil
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
