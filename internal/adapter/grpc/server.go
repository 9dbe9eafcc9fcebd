package grpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/cryptotrade-backend/internal/domain"
	"github.com/simaogato/cryptotrade-backend/internal/logging"
	"github.com/simaogato/cryptotrade-backend/internal/usecase/ledger"
	"github.com/simaogato/cryptotrade-backend/internal/usecase/portfolio"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// LedgerService executes trades
type LedgerService interface {
	Buy(ctx context.Context, input ledger.TradeInput) (*ledger.TradeResult, error)
	Sell(ctx context.Context, input ledger.TradeInput) (*ledger.TradeResult, error)
}

// PortfolioService serves account overviews
type PortfolioService interface {
	GetOverview(ctx context.Context, accountID uuid.UUID) (*portfolio.Overview, error)
}

// PriceSource serves market data reads
type PriceSource interface {
	Snapshot() domain.PriceSnapshot
	Price(symbol string) (float64, bool)
}

// Server implements the TradingService gRPC server
type Server struct {
	LedgerService    LedgerService
	PortfolioService PortfolioService
	Prices           PriceSource
}

// NewServer creates a new gRPC server instance
func NewServer(ledgerService LedgerService, portfolioService PortfolioService, prices PriceSource) *Server {
	return &Server{
		LedgerService:    ledgerService,
		PortfolioService: portfolioService,
		Prices:           prices,
	}
}

// Buy handles the Buy RPC
func (s *Server) Buy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.trade(ctx, req, s.LedgerService.Buy)
}

// Sell handles the Sell RPC
func (s *Server) Sell(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.trade(ctx, req, s.LedgerService.Sell)
}

func (s *Server) trade(
	ctx context.Context,
	req *structpb.Struct,
	execute func(context.Context, ledger.TradeInput) (*ledger.TradeResult, error),
) (*structpb.Struct, error) {
	input, err := s.tradeInput(req)
	if err != nil {
		return nil, err
	}

	result, err := execute(ctx, input)
	if err != nil {
		return nil, mapError(ctx, err)
	}

	tx := result.Transaction
	return newStruct(map[string]interface{}{
		"transactionId":   tx.ID.String(),
		"accountId":       tx.AccountID.String(),
		"type":            string(tx.Type),
		"cryptoSymbol":    tx.Symbol,
		"quantity":        tx.Quantity.String(),
		"pricePerUnit":    tx.PricePerUnit.String(),
		"totalPrice":      tx.TotalPrice.String(),
		"balance":         result.Balance.String(),
		"holdingQuantity": result.HoldingQuantity.String(),
		"holdingClosed":   result.HoldingClosed,
		"executedAt":      tx.Date.UTC().Format(time.RFC3339Nano),
	})
}

// tradeInput parses a trade request. A missing pricePerUnit is filled from the price cache.
func (s *Server) tradeInput(req *structpb.Struct) (ledger.TradeInput, error) {
	fields := req.GetFields()

	accountID, err := uuid.Parse(fields["accountId"].GetStringValue())
	if err != nil {
		return ledger.TradeInput{}, status.Errorf(codes.InvalidArgument, "invalid accountId format: %v", err)
	}

	quantity, err := decimalField(fields, "quantity")
	if err != nil {
		return ledger.TradeInput{}, status.Errorf(codes.InvalidArgument, "invalid quantity: %v", err)
	}

	symbol, err := domain.NormalizeSymbol(fields["cryptoSymbol"].GetStringValue())
	if err != nil {
		return ledger.TradeInput{}, status.Error(codes.InvalidArgument, err.Error())
	}

	input := ledger.TradeInput{
		AccountID: accountID,
		Symbol:    symbol,
		Quantity:  quantity,
	}

	if _, ok := fields["pricePerUnit"]; !ok {
		price, ok := s.Prices.Price(symbol)
		if !ok {
			return ledger.TradeInput{}, status.Error(codes.Unavailable, domain.ErrPriceUnavailable.Message)
		}
		input.PricePerUnit = decimal.NewFromFloat(price)
		return input, nil
	}

	input.PricePerUnit, err = decimalField(fields, "pricePerUnit")
	if err != nil {
		return ledger.TradeInput{}, status.Errorf(codes.InvalidArgument, "invalid pricePerUnit: %v", err)
	}
	return input, nil
}

// GetPrices handles the GetPrices RPC.
// With a "symbol" field it returns that symbol's price, otherwise the whole snapshot.
func (s *Server) GetPrices(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if raw := req.GetFields()["symbol"].GetStringValue(); raw != "" {
		symbol, err := domain.NormalizeSymbol(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		price, ok := s.Prices.Price(symbol)
		if !ok {
			return nil, status.Error(codes.Unavailable, domain.ErrPriceUnavailable.Message)
		}
		return newStruct(map[string]interface{}{"symbol": symbol, "price": price})
	}

	snapshot := s.Prices.Snapshot()
	prices := make(map[string]interface{}, len(snapshot))
	for symbol, price := range snapshot {
		prices[symbol] = price
	}
	return newStruct(map[string]interface{}{"prices": prices})
}

// GetPortfolio handles the GetPortfolio RPC
func (s *Server) GetPortfolio(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := uuid.Parse(req.GetFields()["accountId"].GetStringValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid accountId format: %v", err)
	}

	overview, err := s.PortfolioService.GetOverview(ctx, accountID)
	if err != nil {
		return nil, mapError(ctx, err)
	}

	holdings := make([]interface{}, 0, len(overview.Holdings))
	for _, h := range overview.Holdings {
		holding := map[string]interface{}{
			"cryptoSymbol":  h.Symbol,
			"quantity":      h.Quantity.String(),
			"averageCost":   h.AverageCost.String(),
			"costBasis":     h.CostBasis.String(),
			"marketPrice":   nil,
			"marketValue":   nil,
			"unrealizedPnl": nil,
		}
		if h.Priced {
			holding["marketPrice"] = h.MarketPrice.String()
			holding["marketValue"] = h.MarketValue.String()
			holding["unrealizedPnl"] = h.UnrealizedPnL.String()
		}
		holdings = append(holdings, holding)
	}

	return newStruct(map[string]interface{}{
		"accountId":     overview.AccountID.String(),
		"balance":       overview.Balance.String(),
		"holdings":      holdings,
		"holdingsValue": overview.HoldingsValue.String(),
		"totalEquity":   overview.TotalEquity.String(),
	})
}

// decimalField accepts a decimal sent as a string or as a number
func decimalField(fields map[string]*structpb.Value, name string) (decimal.Decimal, error) {
	v, ok := fields[name]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s is required", name)
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return decimal.NewFromString(strings.TrimSpace(kind.StringValue))
	case *structpb.Value_NumberValue:
		if math.IsNaN(kind.NumberValue) || math.IsInf(kind.NumberValue, 0) {
			return decimal.Zero, fmt.Errorf("%s must be a finite number", name)
		}
		return decimal.NewFromFloat(kind.NumberValue), nil
	default:
		return decimal.Zero, fmt.Errorf("%s must be a string or number", name)
	}
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// mapError converts domain errors to gRPC status errors
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var te *domain.TradeError
	if !errors.As(err, &te) {
		logging.Error(ctx, "grpc request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}

	switch te.Kind {
	case domain.KindInvalidQuantity, domain.KindInvalidSymbol:
		return status.Error(codes.InvalidArgument, te.Message)
	case domain.KindAccountNotFound:
		return status.Error(codes.NotFound, te.Message)
	case domain.KindInsufficientBalance, domain.KindInsufficientHolding:
		return status.Error(codes.FailedPrecondition, te.Message)
	case domain.KindConcurrencyConflict:
		return status.Error(codes.Aborted, te.Message)
	case domain.KindPriceUnavailable:
		return status.Error(codes.Unavailable, te.Message)
	default:
		logging.Error(ctx, "grpc request failed", "error", err)
		return status.Error(codes.Internal, te.Message)
	}
}
