package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTradeError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "sentinel matches itself",
			err:    ErrInsufficientBalance,
			target: ErrInsufficientBalance,
			want:   true,
		},
		{
			name:   "custom message matches sentinel of same kind",
			err:    NewTradeError(KindAccountNotFound, "account 42 not found"),
			target: ErrAccountNotFound,
			want:   true,
		},
		{
			name:   "wrapped trade error still matches",
			err:    fmt.Errorf("buy: %w", ErrInsufficientHolding),
			target: ErrInsufficientHolding,
			want:   true,
		},
		{
			name:   "different kinds do not match",
			err:    ErrInsufficientBalance,
			target: ErrInsufficientHolding,
			want:   false,
		},
		{
			name:   "insufficient quantity is an invalid quantity",
			err:    ErrInsufficientQuantity,
			target: ErrInvalidQuantity,
			want:   true,
		},
		{
			name:   "plain error does not match",
			err:    errors.New("boom"),
			target: ErrPersistenceFailure,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestKindOf(t *testing.T) {
	cause := errors.New("connection reset")

	assert.Equal(t, KindPersistenceFailure, KindOf(WrapTradeError(KindPersistenceFailure, "commit failed", cause)))
	assert.Equal(t, KindConcurrencyConflict, KindOf(fmt.Errorf("sell: %w", ErrConcurrencyConflict)))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestTradeError_Error(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapTradeError(KindPersistenceFailure, "commit failed", cause)

	assert.Equal(t, "commit failed: connection reset", err.Error())
	assert.Equal(t, "account not found", ErrAccountNotFound.Error())
	assert.ErrorIs(t, err, cause)
}
