package postgres

import (
	"errors"

	"github.com/lib/pq"
	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// SQLSTATE codes raised when a row lock cannot be taken or a transaction must be retried
const (
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// translateError maps lock contention to ErrConcurrencyConflict and leaves other errors as they are
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
			return domain.WrapTradeError(domain.KindConcurrencyConflict, domain.ErrConcurrencyConflict.Message, err)
		}
	}
	return err
}
