// Package http exposes the ledger, portfolio and price surfaces over gin.
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/cryptotrade-backend/internal/domain"
	"github.com/simaogato/cryptotrade-backend/internal/logging"
	"github.com/simaogato/cryptotrade-backend/internal/usecase/ledger"
	"github.com/simaogato/cryptotrade-backend/internal/usecase/portfolio"
)

// KindInvalidRequest is reported for requests that cannot be parsed into a trade or query
const KindInvalidRequest domain.ErrorKind = "INVALID_REQUEST"

// Ledger executes trades
type Ledger interface {
	Buy(ctx context.Context, input ledger.TradeInput) (*ledger.TradeResult, error)
	Sell(ctx context.Context, input ledger.TradeInput) (*ledger.TradeResult, error)
}

// Portfolio serves the account read side
type Portfolio interface {
	GetOverview(ctx context.Context, accountID uuid.UUID) (*portfolio.Overview, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) (*portfolio.TransactionPage, error)
}

// Prices serves market data reads
type Prices interface {
	Snapshot() domain.PriceSnapshot
	Price(symbol string) (float64, bool)
}

// Handler serves the REST API
type Handler struct {
	ledger    Ledger
	portfolio Portfolio
	prices    Prices
	feedState func() string
}

// NewHandler creates a new Handler. feedState may be nil when no feed runs.
func NewHandler(ledgerService Ledger, portfolioService Portfolio, prices Prices, feedState func() string) *Handler {
	if feedState == nil {
		feedState = func() string { return "disabled" }
	}
	return &Handler{
		ledger:    ledgerService,
		portfolio: portfolioService,
		prices:    prices,
		feedState: feedState,
	}
}

// RegisterRoutes registers the API routes
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		api.GET("/cryptos", h.GetPrices)
		api.POST("/account/buy", h.Buy)
		api.POST("/account/sell", h.Sell)
		api.GET("/account/:id", h.GetAccount)
		api.GET("/account/:id/transactions", h.ListTransactions)
	}
}

// Health reports liveness and the market feed state
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "feed": h.feedState()})
}

// GetPrices returns the whole snapshot, or one price when ?symbol= is given
func (h *Handler) GetPrices(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusOK, h.prices.Snapshot())
		return
	}

	normalized, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	price, ok := h.prices.Price(normalized)
	if !ok {
		respondError(c, domain.ErrPriceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": normalized, "price": price})
}

// Buy handles POST /api/account/buy
func (h *Handler) Buy(c *gin.Context) {
	h.trade(c, h.ledger.Buy)
}

// Sell handles POST /api/account/sell
func (h *Handler) Sell(c *gin.Context) {
	h.trade(c, h.ledger.Sell)
}

func (h *Handler) trade(c *gin.Context, execute func(context.Context, ledger.TradeInput) (*ledger.TradeResult, error)) {
	var req tradeRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, domain.WrapTradeError(KindInvalidRequest, "malformed trade request", err))
		return
	}

	input, err := h.tradeInput(req)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := execute(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTradeResponse(result))
}

// tradeInput parses the request. A missing price is filled from the current snapshot.
func (h *Handler) tradeInput(req tradeRequest) (ledger.TradeInput, error) {
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return ledger.TradeInput{}, domain.WrapTradeError(KindInvalidRequest, "invalid accountId", err)
	}

	quantity, err := decimal.NewFromString(req.Quantity.String())
	if err != nil {
		return ledger.TradeInput{}, domain.WrapTradeError(domain.KindInvalidQuantity, "invalid quantity", err)
	}

	symbol, err := domain.NormalizeSymbol(req.CryptoSymbol)
	if err != nil {
		return ledger.TradeInput{}, err
	}

	input := ledger.TradeInput{
		AccountID: accountID,
		Symbol:    symbol,
		Quantity:  quantity,
	}

	if req.PricePerUnit == "" {
		price, ok := h.prices.Price(symbol)
		if !ok {
			return ledger.TradeInput{}, domain.ErrPriceUnavailable
		}
		input.PricePerUnit = decimal.NewFromFloat(price)
		return input, nil
	}

	input.PricePerUnit, err = decimal.NewFromString(req.PricePerUnit.String())
	if err != nil {
		return ledger.TradeInput{}, domain.WrapTradeError(domain.KindInvalidQuantity, "invalid pricePerUnit", err)
	}
	return input, nil
}

// GetAccount returns the account overview at current prices
func (h *Handler) GetAccount(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	overview, err := h.portfolio.GetOverview(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOverviewResponse(overview))
}

// ListTransactions returns a page of trade history, newest first
func (h *Handler) ListTransactions(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		respondError(c, domain.WrapTradeError(KindInvalidRequest, "invalid limit", err))
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		respondError(c, domain.WrapTradeError(KindInvalidRequest, "invalid offset", err))
		return
	}

	page, err := h.portfolio.ListTransactions(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTransactionPageResponse(page))
}

func parseAccountID(c *gin.Context) (uuid.UUID, bool) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, domain.WrapTradeError(KindInvalidRequest, "invalid account id", err))
		return uuid.Nil, false
	}
	return accountID, true
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidQuantity, domain.KindInvalidSymbol, KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindAccountNotFound:
		return http.StatusNotFound
	case domain.KindConcurrencyConflict:
		return http.StatusConflict
	case domain.KindInsufficientBalance, domain.KindInsufficientHolding:
		return http.StatusUnprocessableEntity
	case domain.KindPriceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	var te *domain.TradeError
	switch {
	case errors.As(err, &te):
		status := statusForKind(te.Kind)
		message := te.Message
		if status == http.StatusInternalServerError {
			logging.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		} else if te.Kind == KindInvalidRequest && te.Err != nil {
			message = te.Message + ": " + te.Err.Error()
		}
		c.JSON(status, errorResponse{Error: errorBody{Kind: string(te.Kind), Message: message}})
	case errors.Is(err, portfolio.ErrInvalidPage):
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorBody{Kind: string(KindInvalidRequest), Message: err.Error()}})
	default:
		logging.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: errorBody{Kind: string(domain.KindPersistenceFailure), Message: "internal error"}})
	}
}
