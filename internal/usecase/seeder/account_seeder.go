package seeder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// DemoAccountID is the fixed account seeded for local runs when none are configured
var DemoAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// SeedAccount defines an account to be seeded
type SeedAccount struct {
	ID      uuid.UUID
	Balance decimal.Decimal
}

// AccountStore is what the seeder needs from the persistence gateway
type AccountStore interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	domain.AccountCreator
}

// AccountSeeder handles seeding of accounts for local runs and end-to-end tests
type AccountSeeder struct {
	repo AccountStore
}

// NewAccountSeeder creates a new AccountSeeder instance
func NewAccountSeeder(repo AccountStore) *AccountSeeder {
	return &AccountSeeder{
		repo: repo,
	}
}

// DefaultAccounts is the demo account with a 10000 cash balance
func DefaultAccounts() []SeedAccount {
	return []SeedAccount{{ID: DemoAccountID, Balance: decimal.NewFromInt(10000)}}
}

// Seed ensures every account exists. Existing accounts keep their current balance.
// Returns the number of accounts created.
func (s *AccountSeeder) Seed(ctx context.Context, accounts []SeedAccount) (int, error) {
	created := 0
	for _, seed := range accounts {
		_, err := s.repo.GetAccount(ctx, seed.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return created, fmt.Errorf("failed to look up account %s: %w", seed.ID, err)
		}

		account := &domain.Account{
			ID:        seed.ID,
			Balance:   seed.Balance,
			CreatedAt: time.Now().UTC(),
		}
		if err := account.Validate(); err != nil {
			return created, err
		}
		if err := s.repo.CreateAccount(ctx, account); err != nil {
			return created, fmt.Errorf("failed to create account %s: %w", seed.ID, err)
		}
		created++
	}
	return created, nil
}

// ParseSeedAccounts parses "id:balance" entries
func ParseSeedAccounts(entries []string) ([]SeedAccount, error) {
	accounts := make([]SeedAccount, 0, len(entries))
	for _, entry := range entries {
		i := strings.LastIndex(entry, ":")
		if i <= 0 {
			return nil, fmt.Errorf("invalid seed account %q: want id:balance", entry)
		}
		idPart, balancePart := strings.TrimSpace(entry[:i]), strings.TrimSpace(entry[i+1:])
		id, err := uuid.Parse(idPart)
		if err != nil {
			return nil, fmt.Errorf("invalid seed account id %q: %w", idPart, err)
		}
		balance, err := decimal.NewFromString(balancePart)
		if err != nil {
			return nil, fmt.Errorf("invalid seed account balance %q: %w", balancePart, err)
		}
		accounts = append(accounts, SeedAccount{ID: id, Balance: balance})
	}
	return accounts, nil
}
