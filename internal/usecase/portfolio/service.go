package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// MaxPageSize bounds ListTransactions
const MaxPageSize = 500

// ErrInvalidPage is returned for a limit outside 1..MaxPageSize or a negative offset
var ErrInvalidPage = errors.New("limit must be between 1 and 500 and offset cannot be negative")

// PriceQuoter resolves a holding symbol to its current market price
type PriceQuoter interface {
	Price(symbol string) (float64, bool)
}

// HoldingValuation is one position valued at the current market price
type HoldingValuation struct {
	Symbol        string
	Quantity      decimal.Decimal
	AverageCost   decimal.Decimal
	CostBasis     decimal.Decimal // BOOK VALUE
	Priced        bool            // false when the feed has no price for the symbol yet
	MarketPrice   decimal.Decimal
	MarketValue   decimal.Decimal
	UnrealizedPnL decimal.Decimal // MarketValue - CostBasis
}

// Overview is an account's cash and positions
type Overview struct {
	AccountID     uuid.UUID
	Balance       decimal.Decimal
	CreatedAt     time.Time
	Holdings      []HoldingValuation
	HoldingsValue decimal.Decimal
	TotalEquity   decimal.Decimal // Balance + HoldingsValue
}

// TransactionPage is a page of an account's trade history
type TransactionPage struct {
	Transactions []*domain.Transaction
	Total        int
	Limit        int
	Offset       int
}

// Service handles portfolio read operations
type Service struct {
	Store  domain.LedgerReader
	Prices PriceQuoter
}

// NewService creates a new portfolio Service instance
func NewService(store domain.LedgerReader, prices PriceQuoter) *Service {
	return &Service{
		Store:  store,
		Prices: prices,
	}
}

// GetOverview values an account at current market prices
// Logic:
//   - Cash: account balance
//   - Each holding: MarketValue = Quantity x price, UnrealizedPnL = MarketValue - Quantity x AverageCost
//   - Holdings without a price are reported unpriced and excluded from HoldingsValue
//   - TotalEquity: Cash + HoldingsValue
func (s *Service) GetOverview(ctx context.Context, accountID uuid.UUID) (*Overview, error) {
	account, err := s.Store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.Store.ListHoldings(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	overview := &Overview{
		AccountID:     account.ID,
		Balance:       account.Balance,
		CreatedAt:     account.CreatedAt,
		Holdings:      make([]HoldingValuation, 0, len(holdings)),
		HoldingsValue: decimal.Zero,
	}

	for _, h := range holdings {
		valuation := HoldingValuation{
			Symbol:      h.Symbol,
			Quantity:    h.Quantity,
			AverageCost: h.AverageCost,
			CostBasis:   h.CostBasis(),
		}
		if price, ok := s.Prices.Price(h.Symbol); ok {
			valuation.Priced = true
			valuation.MarketPrice = decimal.NewFromFloat(price)
			valuation.MarketValue = h.Quantity.Mul(valuation.MarketPrice)
			valuation.UnrealizedPnL = valuation.MarketValue.Sub(valuation.CostBasis)
			overview.HoldingsValue = overview.HoldingsValue.Add(valuation.MarketValue)
		}
		overview.Holdings = append(overview.Holdings, valuation)
	}

	overview.TotalEquity = overview.Balance.Add(overview.HoldingsValue)
	return overview, nil
}

// ListTransactions returns a page of the account's transactions, newest first
func (s *Service) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) (*TransactionPage, error) {
	if limit < 1 || limit > MaxPageSize || offset < 0 {
		return nil, ErrInvalidPage
	}

	// Unknown accounts are an error, not an empty page
	if _, err := s.Store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	txs, err := s.Store.ListTransactions(ctx, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	total, err := s.Store.CountTransactions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	return &TransactionPage{
		Transactions: txs,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	}, nil
}
