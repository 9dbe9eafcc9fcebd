//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpcadapter "github.com/simaogato/cryptotrade-backend/internal/adapter/grpc"
	"github.com/simaogato/cryptotrade-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/cryptotrade-backend/internal/domain"
	"github.com/simaogato/cryptotrade-backend/internal/usecase/ledger"
)

var (
	db       *postgres.DB
	store    *postgres.LedgerStore
	grpcConn *grpc.ClientConn
)

// TestMain connects to the database and to a running server
func TestMain(m *testing.M) {
	ctx := context.Background()

	// 1. Connect to Database and apply the schema
	var err error
	db, err = postgres.NewDB(ctx, getDBConnectionString(), postgres.PoolConfig{MaxOpenConns: 20})
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	if err := db.Migrate(ctx); err != nil {
		panic(fmt.Sprintf("Failed to migrate database: %v", err))
	}
	store = postgres.NewLedgerStore(db, 2*time.Second)

	// 2. Connect to gRPC Server
	grpcConn, err = grpc.NewClient(getGRPCAddress(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to gRPC server: %v", err))
	}

	code := m.Run()

	_ = grpcConn.Close()
	_ = db.Close()
	os.Exit(code)
}

func getAuthContext() context.Context {
	token := os.Getenv("API_TOKEN")
	if token == "" {
		token = "dev-token"
	}
	md := metadata.New(map[string]string{
		"authorization": token,
	})
	return metadata.NewOutgoingContext(context.Background(), md)
}

func getDBConnectionString() string {
	connStr := os.Getenv("DB_CONN_STR")
	if connStr != "" {
		return connStr
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("DB_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("DB_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("DB_NAME")
	if dbname == "" {
		dbname = "cryptotrade"
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

func getGRPCAddress() string {
	addr := os.Getenv("GRPC_ADDRESS")
	if addr == "" {
		addr = "localhost:9090"
	}
	return addr
}

// createAccount inserts a fresh account so tests never share state
func createAccount(t *testing.T, balance string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := store.CreateAccount(context.Background(), &domain.Account{
		ID:        id,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now(),
	})
	require.NoError(t, err, "Should be able to create test account")
	return id
}

func queryBalance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	var raw string
	err := db.QueryRowContext(context.Background(), `SELECT balance FROM accounts WHERE id = $1`, id).Scan(&raw)
	require.NoError(t, err)
	return decimal.RequireFromString(raw)
}

func countTransactions(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, id).Scan(&n)
	require.NoError(t, err)
	return n
}

func invoke(t *testing.T, method string, fields map[string]interface{}) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	require.NoError(t, err)

	out := new(structpb.Struct)
	if err := grpcConn.Invoke(getAuthContext(), grpcadapter.FullMethod(method), req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func TestEndToEndFlow(t *testing.T) {
	accountID := createAccount(t, "1000")

	// Step A: Buy 0.01 BTC at 50000
	resp, err := invoke(t, "Buy", map[string]interface{}{
		"accountId":    accountID.String(),
		"cryptoSymbol": "BTC",
		"quantity":     "0.01",
		"pricePerUnit": "50000",
	})
	require.NoError(t, err, "Buy should succeed")
	assert.Equal(t, "500", resp.GetFields()["balance"].GetStringValue())
	assert.True(t, queryBalance(t, accountID).Equal(decimal.NewFromInt(500)), "Balance should be debited in the database")

	// Step B: Sell everything at 60000
	resp, err = invoke(t, "Sell", map[string]interface{}{
		"accountId":    accountID.String(),
		"cryptoSymbol": "BTC",
		"quantity":     "0.01",
		"pricePerUnit": "60000",
	})
	require.NoError(t, err, "Sell should succeed")
	assert.True(t, resp.GetFields()["holdingClosed"].GetBoolValue())
	assert.True(t, queryBalance(t, accountID).Equal(decimal.NewFromInt(1100)), "Balance should be credited in the database")

	// Step C: The closed holding row is gone and both trades are recorded
	var holdings int
	err = db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM holdings WHERE account_id = $1`, accountID).Scan(&holdings)
	require.NoError(t, err)
	assert.Equal(t, 0, holdings)
	assert.Equal(t, 2, countTransactions(t, accountID))

	// Step D: The portfolio reflects the final state
	resp, err = invoke(t, "GetPortfolio", map[string]interface{}{"accountId": accountID.String()})
	require.NoError(t, err)
	assert.Equal(t, "1100", resp.GetFields()["balance"].GetStringValue())
	assert.Empty(t, resp.GetFields()["holdings"].GetListValue().GetValues())
}

func TestNegativeScenarios(t *testing.T) {
	accountID := createAccount(t, "100")

	tests := []struct {
		name     string
		method   string
		fields   map[string]interface{}
		wantCode codes.Code
	}{
		{
			name:     "Insufficient balance",
			method:   "Buy",
			fields:   map[string]interface{}{"accountId": accountID.String(), "cryptoSymbol": "ETH", "quantity": "1", "pricePerUnit": "3000"},
			wantCode: codes.FailedPrecondition,
		},
		{
			name:     "Sell without holding",
			method:   "Sell",
			fields:   map[string]interface{}{"accountId": accountID.String(), "cryptoSymbol": "ETH", "quantity": "1", "pricePerUnit": "3000"},
			wantCode: codes.FailedPrecondition,
		},
		{
			name:     "Zero quantity",
			method:   "Buy",
			fields:   map[string]interface{}{"accountId": accountID.String(), "cryptoSymbol": "ETH", "quantity": "0", "pricePerUnit": "3000"},
			wantCode: codes.InvalidArgument,
		},
		{
			name:     "Unknown account",
			method:   "Buy",
			fields:   map[string]interface{}{"accountId": uuid.NewString(), "cryptoSymbol": "ETH", "quantity": "1", "pricePerUnit": "1"},
			wantCode: codes.NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, tt.method, tt.fields)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, status.Code(err))
		})
	}

	assert.True(t, queryBalance(t, accountID).Equal(decimal.NewFromInt(100)), "Rejected trades must not change the balance")
	assert.Equal(t, 0, countTransactions(t, accountID), "Rejected trades must not be recorded")
}

func TestUnauthenticated(t *testing.T) {
	req, err := structpb.NewStruct(map[string]interface{}{})
	require.NoError(t, err)

	err = grpcConn.Invoke(context.Background(), grpcadapter.FullMethod("GetPrices"), req, new(structpb.Struct))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

// TestConcurrentBuys runs the ledger directly against Postgres from several goroutines.
// Row locks must serialize them so the final balance is exact.
func TestConcurrentBuys(t *testing.T) {
	accountID := createAccount(t, "1000")
	service := ledger.NewService(store, ledger.NewAccountLocks(5*time.Second), nil)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Buy(context.Background(), ledger.TradeInput{
				AccountID:    accountID,
				Symbol:       "DOT",
				Quantity:     decimal.NewFromInt(1),
				PricePerUnit: decimal.NewFromInt(10),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.True(t, queryBalance(t, accountID).Equal(decimal.NewFromInt(800)))
	assert.Equal(t, workers, countTransactions(t, accountID))

	holdings, err := store.ListHoldings(context.Background(), accountID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.True(t, holdings[0].Quantity.Equal(decimal.NewFromInt(workers)))
}

// TestAcrossProcessesLockTimeout holds the account row in an open transaction and checks
// that a trade waiting on it fails with a concurrency conflict instead of hanging.
func TestAcrossProcessesLockTimeout(t *testing.T) {
	accountID := createAccount(t, "1000")
	ctx := context.Background()

	holder, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer holder.Rollback()
	_, err = holder.ExecContext(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	require.NoError(t, err)

	shortStore := postgres.NewLedgerStore(db, 200*time.Millisecond)
	service := ledger.NewService(shortStore, ledger.NewAccountLocks(time.Second), nil)

	_, err = service.Buy(ctx, ledger.TradeInput{
		AccountID:    accountID,
		Symbol:       "ETH",
		Quantity:     decimal.NewFromInt(1),
		PricePerUnit: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}
