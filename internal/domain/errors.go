package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks out-of-range parameters, malformed or empty
	// populations and zero/negative divisors.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData marks well-formed input that is too small for a
	// statistically meaningful conclusion.
	ErrInsufficientData = errors.New("insufficient data")
)

// Invalidf returns an error wrapping ErrInvalidInput with a specific reason.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Insufficientf returns an error wrapping ErrInsufficientData.
func Insufficientf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInsufficientData, fmt.Sprintf(format, args...))
}

// ErrorKind classifies err for reporting: "invalid_input",
// "insufficient_data" or "internal".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	default:
		return "internal"
	}
}
