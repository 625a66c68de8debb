package billing

import "errors"

var (
	// ErrInvalidTransition is returned when a status transition is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidState is returned when a status is not recognised
	ErrInvalidState = errors.New("invalid invoice status")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrBalanceOutOfRange is returned when a paid amount falls outside [0, total]
	ErrBalanceOutOfRange = errors.New("paid amount out of range")
)
