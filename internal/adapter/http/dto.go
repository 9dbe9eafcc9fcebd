package http

import (
	"encoding/json"
	"time"

	"github.com/simaogato/cryptotrade-backend/internal/usecase/ledger"
	"github.com/simaogato/cryptotrade-backend/internal/usecase/portfolio"
)

// tradeRequest binds from a JSON body or from query/form parameters.
// Numbers are accepted either as JSON numbers or as strings.
type tradeRequest struct {
	AccountID    string      `form:"accountId" json:"accountId"`
	CryptoSymbol string      `form:"cryptoSymbol" json:"cryptoSymbol"`
	Quantity     json.Number `form:"quantity" json:"quantity"`
	PricePerUnit json.Number `form:"pricePerUnit" json:"pricePerUnit"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type tradeResponse struct {
	TransactionID   string    `json:"transactionId"`
	AccountID       string    `json:"accountId"`
	Type            string    `json:"type"`
	Symbol          string    `json:"cryptoSymbol"`
	Quantity        string    `json:"quantity"`
	PricePerUnit    string    `json:"pricePerUnit"`
	TotalPrice      string    `json:"totalPrice"`
	Balance         string    `json:"balance"`
	HoldingQuantity string    `json:"holdingQuantity"`
	HoldingClosed   bool      `json:"holdingClosed"`
	ExecutedAt      time.Time `json:"executedAt"`
}

func newTradeResponse(result *ledger.TradeResult) tradeResponse {
	tx := result.Transaction
	return tradeResponse{
		TransactionID:   tx.ID.String(),
		AccountID:       tx.AccountID.String(),
		Type:            string(tx.Type),
		Symbol:          tx.Symbol,
		Quantity:        tx.Quantity.String(),
		PricePerUnit:    tx.PricePerUnit.String(),
		TotalPrice:      tx.TotalPrice.String(),
		Balance:         result.Balance.String(),
		HoldingQuantity: result.HoldingQuantity.String(),
		HoldingClosed:   result.HoldingClosed,
		ExecutedAt:      tx.Date,
	}
}

type holdingResponse struct {
	Symbol        string  `json:"cryptoSymbol"`
	Quantity      string  `json:"quantity"`
	AverageCost   string  `json:"averageCost"`
	CostBasis     string  `json:"costBasis"`
	MarketPrice   *string `json:"marketPrice"`
	MarketValue   *string `json:"marketValue"`
	UnrealizedPnL *string `json:"unrealizedPnl"`
}

type overviewResponse struct {
	AccountID     string            `json:"accountId"`
	Balance       string            `json:"balance"`
	CreatedAt     time.Time         `json:"createdAt"`
	Holdings      []holdingResponse `json:"holdings"`
	HoldingsValue string            `json:"holdingsValue"`
	TotalEquity   string            `json:"totalEquity"`
}

func newOverviewResponse(o *portfolio.Overview) overviewResponse {
	resp := overviewResponse{
		AccountID:     o.AccountID.String(),
		Balance:       o.Balance.String(),
		CreatedAt:     o.CreatedAt,
		Holdings:      make([]holdingResponse, 0, len(o.Holdings)),
		HoldingsValue: o.HoldingsValue.String(),
		TotalEquity:   o.TotalEquity.String(),
	}
	for _, h := range o.Holdings {
		hr := holdingResponse{
			Symbol:      h.Symbol,
			Quantity:    h.Quantity.String(),
			AverageCost: h.AverageCost.String(),
			CostBasis:   h.CostBasis.String(),
		}
		// Unpriced holdings are reported with null market fields
		if h.Priced {
			price, value, pnl := h.MarketPrice.String(), h.MarketValue.String(), h.UnrealizedPnL.String()
			hr.MarketPrice, hr.MarketValue, hr.UnrealizedPnL = &price, &value, &pnl
		}
		resp.Holdings = append(resp.Holdings, hr)
	}
	return resp
}

type transactionResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Symbol       string    `json:"cryptoSymbol"`
	Quantity     string    `json:"quantity"`
	PricePerUnit string    `json:"pricePerUnit"`
	TotalPrice   string    `json:"totalPrice"`
	Date         time.Time `json:"date"`
}

type transactionPageResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Total        int                   `json:"total"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

func newTransactionPageResponse(page *portfolio.TransactionPage) transactionPageResponse {
	resp := transactionPageResponse{
		Transactions: make([]transactionResponse, 0, len(page.Transactions)),
		Total:        page.Total,
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	for _, tx := range page.Transactions {
		resp.Transactions = append(resp.Transactions, transactionResponse{
			ID:           tx.ID.String(),
			Type:         string(tx.Type),
			Symbol:       tx.Symbol,
			Quantity:     tx.Quantity.String(),
			PricePerUnit: tx.PricePerUnit.String(),
			TotalPrice:   tx.TotalPrice.String(),
			Date:         tx.Date,
		})
	}
	return resp
}
