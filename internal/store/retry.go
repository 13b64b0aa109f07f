package store

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	logger "github.com/sirupsen/logrus"
)

const (
	baseDelay = 50 * time.Millisecond
	maxDelay  = 5 * time.Second

	maxStoreRetries = 5
)

// Backoff returns the exponential backoff duration for a given retry count.
// Logic: baseDelay * 2^retryCount, capped at maxDelay.
func Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return baseDelay
	}
	if retryCount > 30 {
		return maxDelay
	}

	backoff := baseDelay * time.Duration(1<<retryCount)
	if backoff > maxDelay {
		return maxDelay
	}
	return backoff
}

// IsTransient reports whether a store error is expected contention that should
// be retried with backoff rather than surfaced. Logical conflicts
// (ErrOpenSignalExists, ErrVersionConflict) are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOpenSignalExists) || errors.Is(err, ErrVersionConflict) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"57014": // query_canceled (statement timeout under load)
			return true
		}
		// Class 08: connection exceptions
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return true
		}
		return false
	}

	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// withRetry runs fn, retrying on transient store errors with exponential
// backoff. The final error is returned untouched so callers can classify it.
func (s *Store) withRetry(op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxStoreRetries; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
		delay := Backoff(attempt)
		logger.WithFields(logger.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"delay":   delay.String(),
		}).Warnf("Transient store error, retrying: %v", err)
		time.Sleep(delay)
	}
	return err
}
