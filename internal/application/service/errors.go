package service

import (
	"errors"
	"fmt"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/billing"
)

// Error classes returned by the services. Callers match them with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrGateway       = errors.New("payment gateway error")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
}

func conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func invalidAmount(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidAmount, fmt.Sprintf(format, args...))
}

// classify folds domain and storage errors into the service error classes.
// Errors that already carry a class, and unknown errors, pass through.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrConflict), errors.Is(err, ErrUnauthorized), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrGateway):
		return err
	case errors.Is(err, billing.ErrBalanceOutOfRange):
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	case errors.Is(err, billing.ErrInvalidTransition),
		errors.Is(err, billing.ErrGuardFailed),
		errors.Is(err, port.ErrStaleVersion),
		errors.Is(err, port.ErrDuplicate),
		errors.Is(err, port.ErrMissingReference):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
