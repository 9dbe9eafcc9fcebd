package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the direction of a trade
type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

// AmountScale is the number of decimal places stored for quantities, prices and balances
const AmountScale int32 = 10

// FitsScale reports whether d is representable with at most AmountScale decimal places
func FitsScale(d decimal.Decimal) bool {
	return d.Round(AmountScale).Equal(d)
}

// Transaction is the immutable audit record of one executed trade.
// It is appended once and never updated or deleted.
type Transaction struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	Symbol       string
	Type         TransactionType
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
	TotalPrice   decimal.Decimal // Quantity x PricePerUnit
	Date         time.Time
}

// NewTransaction records a trade of quantity units at price
func NewTransaction(accountID uuid.UUID, symbol string, txType TransactionType, quantity, price decimal.Decimal, at time.Time) *Transaction {
	return &Transaction{
		ID:           uuid.New(),
		AccountID:    accountID,
		Symbol:       symbol,
		Type:         txType,
		Quantity:     quantity,
		PricePerUnit: price,
		TotalPrice:   quantity.Mul(price),
		Date:         at,
	}
}

// Validate ensures the transaction adheres to domain rules
// CRITICAL: TotalPrice must equal Quantity x PricePerUnit exactly
func (t *Transaction) Validate() error {
	if t.Type != TransactionTypeBuy && t.Type != TransactionTypeSell {
		return errors.New("transaction type must be BUY or SELL")
	}
	if t.AccountID == uuid.Nil {
		return errors.New("transaction must reference an account")
	}
	if t.Symbol == "" {
		return errors.New("transaction symbol cannot be empty")
	}
	if !t.Quantity.IsPositive() {
		return errors.New("transaction quantity must be positive")
	}
	if !t.PricePerUnit.IsPositive() {
		return errors.New("transaction price per unit must be positive")
	}
	if !t.TotalPrice.Equal(t.Quantity.Mul(t.PricePerUnit)) {
		return errors.New("transaction total must equal quantity times price per unit")
	}
	return nil
}
