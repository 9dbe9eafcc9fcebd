package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIError is the error body returned by the server
type APIError struct {
	Status  int    `json:"-"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

// TradeResult is the server's answer to a buy or sell
type TradeResult struct {
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

// Holding is one position in a Portfolio
type Holding struct {
	Symbol        string  `json:"cryptoSymbol"`
	Quantity      string  `json:"quantity"`
	AverageCost   string  `json:"averageCost"`
	CostBasis     string  `json:"costBasis"`
	MarketPrice   *string `json:"marketPrice"`
	MarketValue   *string `json:"marketValue"`
	UnrealizedPnL *string `json:"unrealizedPnl"`
}

// Portfolio is an account overview
type Portfolio struct {
	AccountID     string    `json:"accountId"`
	Balance       string    `json:"balance"`
	Holdings      []Holding `json:"holdings"`
	HoldingsValue string    `json:"holdingsValue"`
	TotalEquity   string    `json:"totalEquity"`
}

// Transaction is one entry of the trade history
type Transaction struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Symbol       string    `json:"cryptoSymbol"`
	Quantity     string    `json:"quantity"`
	PricePerUnit string    `json:"pricePerUnit"`
	TotalPrice   string    `json:"totalPrice"`
	Date         time.Time `json:"date"`
}

// TransactionPage is a page of trade history
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
}

// Client talks to the REST API of the trading server
type Client struct {
	http *resty.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// Trade sends a buy or sell. An empty price trades at the server's current market price.
func (c *Client) Trade(ctx context.Context, side, accountID, symbol, quantity, price string) (*TradeResult, error) {
	body := map[string]string{
		"accountId":    accountID,
		"cryptoSymbol": symbol,
		"quantity":     quantity,
	}
	if price != "" {
		body["pricePerUnit"] = price
	}

	var result TradeResult
	var apiErr errorEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/account/" + side)
	if err := checkResponse(resp, err, &apiErr); err != nil {
		return nil, err
	}
	return &result, nil
}

// Prices returns the current price snapshot
func (c *Client) Prices(ctx context.Context) (map[string]float64, error) {
	prices := map[string]float64{}
	var apiErr errorEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&prices).
		SetError(&apiErr).
		Get("/api/cryptos")
	if err := checkResponse(resp, err, &apiErr); err != nil {
		return nil, err
	}
	return prices, nil
}

// Portfolio returns the account overview
func (c *Client) Portfolio(ctx context.Context, accountID string) (*Portfolio, error) {
	var result Portfolio
	var apiErr errorEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", accountID).
		SetResult(&result).
		SetError(&apiErr).
		Get("/api/account/{id}")
	if err := checkResponse(resp, err, &apiErr); err != nil {
		return nil, err
	}
	return &result, nil
}

// Transactions returns a page of the account's trade history
func (c *Client) Transactions(ctx context.Context, accountID string, limit, offset int) (*TransactionPage, error) {
	var result TransactionPage
	var apiErr errorEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", accountID).
		SetQueryParams(map[string]string{
			"limit":  fmt.Sprint(limit),
			"offset": fmt.Sprint(offset),
		}).
		SetResult(&result).
		SetError(&apiErr).
		Get("/api/account/{id}/transactions")
	if err := checkResponse(resp, err, &apiErr); err != nil {
		return nil, err
	}
	return &result, nil
}

func checkResponse(resp *resty.Response, err error, apiErr *errorEnvelope) error {
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	if resp.IsError() {
		e := apiErr.Error
		e.Status = resp.StatusCode()
		if e.Kind == "" {
			e.Kind = "HTTP_ERROR"
			e.Message = resp.Status()
		}
		return &e
	}
	return nil
}
