package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// MockWriter is a mock implementation of messageWriter for testing
type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

func sampleEvent() domain.TradeExecuted {
	tx := domain.NewTransaction(uuid.New(), "BTC", domain.TransactionTypeBuy,
		decimal.RequireFromString("0.01"), decimal.NewFromInt(50000), time.Now())
	return domain.NewTradeExecuted(tx, decimal.NewFromInt(500))
}

func TestPublisher_WritesKeyedJSON(t *testing.T) {
	writer := new(MockWriter)
	publisher := newPublisher(writer, time.Second, nil)
	event := sampleEvent()

	writer.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != event.AccountID.String() {
			return false
		}
		var decoded map[string]any
		if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
			return false
		}
		return decoded["symbol"] == "BTC" && decoded["type"] == "BUY" && decoded["total_price"] == "500"
	})).Return(nil).Once()

	require.NoError(t, publisher.PublishTradeExecuted(context.Background(), event))
	writer.AssertExpectations(t)
}

func TestPublisher_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	writer := new(MockWriter)
	publisher := newPublisher(writer, time.Second, nil)
	event := sampleEvent()

	writer.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker unreachable")).Times(5)

	for i := 0; i < 5; i++ {
		err := publisher.PublishTradeExecuted(context.Background(), event)
		assert.ErrorContains(t, err, "broker unreachable")
	}

	// The breaker is open: the writer is not called again
	err := publisher.PublishTradeExecuted(context.Background(), event)
	assert.ErrorIs(t, err, ErrUnavailable)
	writer.AssertNumberOfCalls(t, "WriteMessages", 5)
}

func TestPublisher_Close(t *testing.T) {
	writer := new(MockWriter)
	writer.On("Close").Return(nil).Once()

	require.NoError(t, newPublisher(writer, 0, nil).Close())
	writer.AssertExpectations(t)
}
