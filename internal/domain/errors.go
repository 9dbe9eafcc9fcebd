package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies ledger failures so callers can branch without inspecting messages
type ErrorKind string

const (
	KindInvalidQuantity     ErrorKind = "INVALID_QUANTITY"
	KindAccountNotFound     ErrorKind = "ACCOUNT_NOT_FOUND"
	KindInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	KindInsufficientHolding ErrorKind = "INSUFFICIENT_HOLDING"
	KindConcurrencyConflict ErrorKind = "CONCURRENCY_CONFLICT"
	KindPersistenceFailure  ErrorKind = "PERSISTENCE_FAILURE"
	KindPriceUnavailable    ErrorKind = "PRICE_UNAVAILABLE"
	KindInvalidSymbol       ErrorKind = "INVALID_SYMBOL"
)

// TradeError is the structured failure returned by trade operations
type TradeError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *TradeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// Is reports a match on Kind, so any TradeError matches the sentinel of its kind
func (e *TradeError) Is(target error) bool {
	t, ok := target.(*TradeError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels, one per kind. Compare with errors.Is.
var (
	ErrInvalidQuantity      = &TradeError{Kind: KindInvalidQuantity, Message: "quantity must be greater than zero"}
	ErrAccountNotFound      = &TradeError{Kind: KindAccountNotFound, Message: "account not found"}
	ErrInsufficientBalance  = &TradeError{Kind: KindInsufficientBalance, Message: "insufficient balance to complete the purchase"}
	ErrInsufficientHolding  = &TradeError{Kind: KindInsufficientHolding, Message: "you do not own any of this cryptocurrency"}
	ErrConcurrencyConflict  = &TradeError{Kind: KindConcurrencyConflict, Message: "account is busy, try again"}
	ErrPersistenceFailure   = &TradeError{Kind: KindPersistenceFailure, Message: "trade could not be committed"}
	ErrPriceUnavailable     = &TradeError{Kind: KindPriceUnavailable, Message: "no market price available for symbol"}
	ErrInvalidSymbol        = &TradeError{Kind: KindInvalidSymbol, Message: "symbol cannot be empty"}
	ErrInsufficientQuantity = &TradeError{Kind: KindInvalidQuantity, Message: "insufficient holdings to complete the sale"}
)

// ErrHoldingNotFound is returned by the persistence gateway when an account holds nothing of a symbol
var ErrHoldingNotFound = errors.New("holding not found")

// NewTradeError builds a TradeError of the given kind
func NewTradeError(kind ErrorKind, message string) *TradeError {
	return &TradeError{Kind: kind, Message: message}
}

// WrapTradeError builds a TradeError of the given kind around a cause
func WrapTradeError(kind ErrorKind, message string, err error) *TradeError {
	return &TradeError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first TradeError in err's chain, or "" if there is none
func KindOf(err error) ErrorKind {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
