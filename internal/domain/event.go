package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeExecuted is emitted after a trade commits
type TradeExecuted struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	AccountID     uuid.UUID       `json:"account_id"`
	Symbol        string          `json:"symbol"`
	Type          TransactionType `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Balance       decimal.Decimal `json:"balance"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewTradeExecuted builds the event for a committed transaction
func NewTradeExecuted(tx *Transaction, balance decimal.Decimal) TradeExecuted {
	return TradeExecuted{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		Symbol:        tx.Symbol,
		Type:          tx.Type,
		Quantity:      tx.Quantity,
		PricePerUnit:  tx.PricePerUnit,
		TotalPrice:    tx.TotalPrice,
		Balance:       balance,
		OccurredAt:    tx.Date,
	}
}

// TradeEventPublisher delivers trade events to downstream consumers
type TradeEventPublisher interface {
	PublishTradeExecuted(ctx context.Context, event TradeExecuted) error
}
