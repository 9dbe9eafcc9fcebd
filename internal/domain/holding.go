package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Holding is an account's position in one cryptocurrency symbol.
// A holding exists only while its quantity is positive; it is deleted when it reaches zero.
type Holding struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Symbol      string
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal // weighted average price paid per unit (BOOK VALUE)
	UpdatedAt   time.Time
}

// NewHolding opens a position from a first purchase
func NewHolding(accountID uuid.UUID, symbol string, quantity, price decimal.Decimal, at time.Time) *Holding {
	return &Holding{
		ID:          uuid.New(),
		AccountID:   accountID,
		Symbol:      symbol,
		Quantity:    quantity,
		AverageCost: price,
		UpdatedAt:   at,
	}
}

// Validate ensures the holding adheres to domain rules
func (h *Holding) Validate() error {
	if h.Symbol == "" {
		return errors.New("holding symbol cannot be empty")
	}
	if h.AccountID == uuid.Nil {
		return errors.New("holding must reference an account")
	}
	if !h.Quantity.IsPositive() {
		return errors.New("holding quantity must be positive")
	}
	return nil
}

// Add increases the position and re-weights the average cost
func (h *Holding) Add(quantity, price decimal.Decimal, at time.Time) {
	total := h.Quantity.Add(quantity)
	if total.IsPositive() {
		book := h.Quantity.Mul(h.AverageCost).Add(quantity.Mul(price))
		h.AverageCost = book.DivRound(total, 8)
	}
	h.Quantity = total
	h.UpdatedAt = at
}

// Remove decreases the position. Average cost is unchanged by a sale.
// Returns ErrInsufficientQuantity and leaves the holding untouched if quantity exceeds the position.
func (h *Holding) Remove(quantity decimal.Decimal, at time.Time) error {
	if h.Quantity.LessThan(quantity) {
		return ErrInsufficientQuantity
	}
	h.Quantity = h.Quantity.Sub(quantity)
	h.UpdatedAt = at
	return nil
}

// IsClosed reports whether the position reached exactly zero and must be deleted
func (h *Holding) IsClosed() bool {
	return h.Quantity.IsZero()
}

// CostBasis is quantity times average cost
func (h *Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.AverageCost)
}
