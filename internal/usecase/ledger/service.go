package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// TradeInput represents the input for a buy or sell
type TradeInput struct {
	AccountID    uuid.UUID
	Symbol       string
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
}

// TradeResult is the outcome of a committed trade
type TradeResult struct {
	Transaction     *domain.Transaction
	Balance         decimal.Decimal // account balance after the trade
	HoldingQuantity decimal.Decimal // remaining position in the symbol, zero if closed
	HoldingClosed   bool
}

// Service executes trades against the ledger.
// Trades on one account are serialized through Locks and applied inside one Store transaction.
type Service struct {
	Store     domain.LedgerStore
	Locks     *AccountLocks
	Publisher domain.TradeEventPublisher // optional
	Observer  Observer
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewService creates a new ledger Service instance
func NewService(store domain.LedgerStore, locks *AccountLocks, publisher domain.TradeEventPublisher) *Service {
	return &Service{
		Store:     store,
		Locks:     locks,
		Publisher: publisher,
		Observer:  nopObserver{},
		Logger:    slog.Default(),
		Now:       time.Now,
	}
}

type applyFunc func(ctx context.Context, tx domain.LedgerTx, input TradeInput, now time.Time) (*TradeResult, error)

// Buy purchases quantity units of symbol at pricePerUnit
// Logic:
//  1. Lock the Account; AccountNotFound if absent
//  2. cost = quantity x pricePerUnit
//  3. InsufficientBalance if balance < cost (nothing is written)
//  4. Debit the account and persist it
//  5. Increase the existing Holding or open a new one
//  6. Append a BUY Transaction
func (s *Service) Buy(ctx context.Context, input TradeInput) (*TradeResult, error) {
	return s.execute(ctx, domain.TransactionTypeBuy, input, s.buy)
}

// Sell disposes of quantity units of symbol at pricePerUnit
// Logic:
//  1. Load the Holding; InsufficientHolding if absent
//  2. InvalidQuantity if the holding is smaller than quantity (nothing is written)
//  3. proceeds = quantity x pricePerUnit
//  4. Reduce the Holding, deleting it at exactly zero
//  5. Credit the account and persist it
//  6. Append a SELL Transaction
func (s *Service) Sell(ctx context.Context, input TradeInput) (*TradeResult, error) {
	return s.execute(ctx, domain.TransactionTypeSell, input, s.sell)
}

func (s *Service) execute(ctx context.Context, kind domain.TransactionType, input TradeInput, apply applyFunc) (*TradeResult, error) {
	start := time.Now()

	symbol, err := validate(input)
	if err != nil {
		s.finish(ctx, kind, input, start, nil, err)
		return nil, err
	}
	input.Symbol = symbol

	release, err := s.Locks.Acquire(ctx, input.AccountID)
	if err != nil {
		s.finish(ctx, kind, input, start, nil, err)
		return nil, err
	}
	defer release()

	var result *TradeResult
	err = s.Store.RunInTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		r, err := apply(ctx, tx, input, s.Now())
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	// Release before publishing so a slow broker cannot hold up the next trade on the account.
	// The deferred release is a no-op after this.
	release()
	if err != nil {
		if domain.KindOf(err) == "" {
			err = domain.WrapTradeError(domain.KindPersistenceFailure, domain.ErrPersistenceFailure.Message, err)
		}
		s.finish(ctx, kind, input, start, nil, err)
		return nil, err
	}

	s.finish(ctx, kind, input, start, result, nil)
	s.publish(ctx, result)
	return result, nil
}

func validate(input TradeInput) (string, error) {
	if !input.Quantity.IsPositive() {
		return "", domain.ErrInvalidQuantity
	}
	if !input.PricePerUnit.IsPositive() {
		return "", domain.NewTradeError(domain.KindInvalidQuantity, "price per unit must be greater than zero")
	}
	if !domain.FitsScale(input.Quantity) || !domain.FitsScale(input.PricePerUnit) {
		return "", domain.NewTradeError(domain.KindInvalidQuantity, fmt.Sprintf("quantity and price per unit allow at most %d decimal places", domain.AmountScale))
	}
	if !domain.FitsScale(input.Quantity.Mul(input.PricePerUnit)) {
		return "", domain.NewTradeError(domain.KindInvalidQuantity, fmt.Sprintf("total price exceeds %d decimal places", domain.AmountScale))
	}
	return domain.NormalizeSymbol(input.Symbol)
}

func (s *Service) buy(ctx context.Context, tx domain.LedgerTx, input TradeInput, now time.Time) (*TradeResult, error) {
	// 1. Lock the Account
	account, err := tx.LockAccount(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	// 2-4. Debit the cost
	cost := input.Quantity.Mul(input.PricePerUnit)
	if err := account.Debit(cost); err != nil {
		return nil, err
	}
	if err := tx.SaveAccount(ctx, account); err != nil {
		return nil, err
	}

	// 5. Increase or open the Holding
	holding, err := tx.GetHolding(ctx, input.AccountID, input.Symbol)
	switch {
	case errors.Is(err, domain.ErrHoldingNotFound):
		holding = domain.NewHolding(input.AccountID, input.Symbol, input.Quantity, input.PricePerUnit, now)
		if err := tx.CreateHolding(ctx, holding); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		holding.Add(input.Quantity, input.PricePerUnit, now)
		if err := tx.UpdateHolding(ctx, holding); err != nil {
			return nil, err
		}
	}

	// 6. Append the BUY record
	record := domain.NewTransaction(input.AccountID, input.Symbol, domain.TransactionTypeBuy, input.Quantity, input.PricePerUnit, now)
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if err := tx.AppendTransaction(ctx, record); err != nil {
		return nil, err
	}

	return &TradeResult{
		Transaction:     record,
		Balance:         account.Balance,
		HoldingQuantity: holding.Quantity,
	}, nil
}

func (s *Service) sell(ctx context.Context, tx domain.LedgerTx, input TradeInput, now time.Time) (*TradeResult, error) {
	// The account row is locked before the holding so buys and sells take locks in the same order.
	// A missing account is reported only after the holding check.
	account, accountErr := tx.LockAccount(ctx, input.AccountID)
	if accountErr != nil && !errors.Is(accountErr, domain.ErrAccountNotFound) {
		return nil, accountErr
	}

	// 1. Load the Holding
	holding, err := tx.GetHolding(ctx, input.AccountID, input.Symbol)
	if errors.Is(err, domain.ErrHoldingNotFound) {
		return nil, domain.ErrInsufficientHolding
	}
	if err != nil {
		return nil, err
	}
	if accountErr != nil {
		return nil, accountErr
	}

	// 2-4. Reduce or close the Holding
	if err := holding.Remove(input.Quantity, now); err != nil {
		return nil, err
	}
	proceeds := input.Quantity.Mul(input.PricePerUnit)
	if holding.IsClosed() {
		if err := tx.DeleteHolding(ctx, holding.ID); err != nil {
			return nil, err
		}
	} else if err := tx.UpdateHolding(ctx, holding); err != nil {
		return nil, err
	}

	// 5. Credit the proceeds
	account.Credit(proceeds)
	if err := tx.SaveAccount(ctx, account); err != nil {
		return nil, err
	}

	// 6. Append the SELL record
	record := domain.NewTransaction(input.AccountID, input.Symbol, domain.TransactionTypeSell, input.Quantity, input.PricePerUnit, now)
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if err := tx.AppendTransaction(ctx, record); err != nil {
		return nil, err
	}

	return &TradeResult{
		Transaction:     record,
		Balance:         account.Balance,
		HoldingQuantity: holding.Quantity,
		HoldingClosed:   holding.IsClosed(),
	}, nil
}

// publish runs after commit. A failed publish is logged and counted but never fails the trade.
func (s *Service) publish(ctx context.Context, result *TradeResult) {
	if s.Publisher == nil {
		return
	}
	event := domain.NewTradeExecuted(result.Transaction, result.Balance)
	if err := s.Publisher.PublishTradeExecuted(ctx, event); err != nil {
		s.Logger.WarnContext(ctx, "failed to publish trade event",
			"transaction_id", event.TransactionID, "error", err)
		s.Observer.EventPublished("error")
		return
	}
	s.Observer.EventPublished("success")
}

func (s *Service) finish(ctx context.Context, kind domain.TransactionType, input TradeInput, start time.Time, result *TradeResult, err error) {
	attrs := []any{
		"account_id", input.AccountID,
		"symbol", input.Symbol,
		"kind", kind,
		"quantity", input.Quantity,
		"price", input.PricePerUnit,
	}

	outcome := "success"
	switch k := domain.KindOf(err); {
	case err == nil:
		s.Logger.InfoContext(ctx, "trade executed",
			append(attrs, "transaction_id", result.Transaction.ID, "total", result.Transaction.TotalPrice, "balance", result.Balance)...)
	case k == domain.KindPersistenceFailure:
		outcome = strings.ToLower(string(k))
		s.Logger.ErrorContext(ctx, "trade failed", append(attrs, "error", err)...)
	default:
		outcome = strings.ToLower(string(k))
		s.Logger.WarnContext(ctx, "trade rejected", append(attrs, "reason", k, "error", err)...)
	}
	s.Observer.TradeCompleted(kind, outcome, time.Since(start))
}
