package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/cryptotrade-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountLocks_SerializesSameAccount(t *testing.T) {
	ctx := context.Background()
	locks := NewAccountLocks(0)
	accountID := uuid.New()

	release, err := locks.Acquire(ctx, accountID)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := locks.Acquire(ctx, accountID)
		if err == nil {
			close(acquired)
			second()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second caller acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second caller never acquired the released lock")
	}
}

func TestAccountLocks_DifferentAccountsDoNotBlock(t *testing.T) {
	ctx := context.Background()
	locks := NewAccountLocks(50 * time.Millisecond)

	first, err := locks.Acquire(ctx, uuid.New())
	require.NoError(t, err)
	defer first()

	second, err := locks.Acquire(ctx, uuid.New())
	require.NoError(t, err)
	second()
}

func TestAccountLocks_CancelledContext(t *testing.T) {
	locks := NewAccountLocks(0)
	accountID := uuid.New()

	release, err := locks.Acquire(context.Background(), accountID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locks.Acquire(ctx, accountID)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.ErrorIs(t, err, context.Canceled)

	release()
	release()
	assert.Equal(t, 0, locks.Len())
}
