package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAccount_Validate(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		wantErr bool
		errMsg  string
	}{
		{
			name:    "Positive balance should pass",
			account: Account{ID: uuid.New(), Balance: decimal.NewFromInt(1000), CreatedAt: time.Now()},
			wantErr: false,
		},
		{
			name:    "Zero balance should pass",
			account: Account{ID: uuid.New(), Balance: decimal.Zero},
			wantErr: false,
		},
		{
			name:    "Negative balance should fail",
			account: Account{ID: uuid.New(), Balance: decimal.NewFromInt(-1)},
			wantErr: true,
			errMsg:  "account balance cannot be negative",
		},
		{
			name:    "Missing ID should fail",
			account: Account{Balance: decimal.NewFromInt(10)},
			wantErr: true,
			errMsg:  "account ID cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAccount_Debit(t *testing.T) {
	tests := []struct {
		name        string
		balance     decimal.Decimal
		amount      decimal.Decimal
		wantBalance decimal.Decimal
		wantErr     error
	}{
		{
			name:        "Debit within balance",
			balance:     decimal.NewFromInt(1000),
			amount:      decimal.NewFromInt(500),
			wantBalance: decimal.NewFromInt(500),
		},
		{
			name:        "Debit of the entire balance",
			balance:     decimal.NewFromInt(500),
			amount:      decimal.NewFromInt(500),
			wantBalance: decimal.Zero,
		},
		{
			name:        "Debit above balance leaves balance untouched",
			balance:     decimal.NewFromInt(100),
			amount:      decimal.NewFromInt(50000),
			wantBalance: decimal.NewFromInt(100),
			wantErr:     ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := Account{ID: uuid.New(), Balance: tt.balance}
			err := account.Debit(tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.True(t, account.Balance.Equal(tt.wantBalance), "balance = %s", account.Balance)
		})
	}
}

func TestAccount_Credit(t *testing.T) {
	account := Account{ID: uuid.New(), Balance: decimal.NewFromInt(500)}
	account.Credit(decimal.NewFromInt(600))
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(1100)))
}
