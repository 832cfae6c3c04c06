package models

import (
	"errors"
	"fmt"
)

// Domain errors surfaced synchronously by the booking, payment and payout
// services. Handlers map them to HTTP status codes; nothing in the services
// retries a failed multi-document write on its own.
var (
	ErrValidation          = errors.New("validation error")
	ErrStateConflict       = errors.New("state conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSettlement          = errors.New("settlement error")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
)

func ValidationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func StateConflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrStateConflict, fmt.Sprintf(format, args...))
}

func SettlementError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSettlement, fmt.Sprintf(format, args...))
}

func NotFoundError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
