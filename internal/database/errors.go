package database

import (
	"errors"

	"github.com/lib/pq"
	"github.com/safar/vinyl-store/internal/models"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassDeadlock:
		return "deadlock"
	case ErrorClassSerialization:
		return "serialization"
	default:
		return "permanent"
	}
}

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	// A lost optimistic version check is retried like a serialization failure.
	if errors.Is(err, models.ErrConflict) {
		return ErrorClassSerialization
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case "23505", "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsCheckViolation reports a CHECK constraint rejection, e.g. stock >= 0.
func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23514"
}

// Wrap passes domain errors through untouched and turns anything else into
// a *models.StorageError tagged with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if models.IsDomainError(err) || errors.Is(err, models.ErrStorage) {
		return err
	}
	return &models.StorageError{Op: op, Err: err}
}
