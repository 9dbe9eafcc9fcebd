package ledger

import (
	"time"

	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// Observer receives trade outcomes for instrumentation
type Observer interface {
	TradeCompleted(kind domain.TransactionType, result string, elapsed time.Duration)
	EventPublished(result string)
}

type nopObserver struct{}

func (nopObserver) TradeCompleted(domain.TransactionType, string, time.Duration) {}
func (nopObserver) EventPublished(string)                                       {}
