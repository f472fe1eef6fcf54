package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInsufficientData = errors.New("insufficient candle data")
	ErrSignalRejected   = errors.New("signal rejected")
	ErrUnsupportedJob   = errors.New("unsupported job")
)

// TransientError marks a failure that may succeed on a later attempt.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return err
	}
	return &TransientError{Err: err}
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Retryable reports whether err is worth another attempt. Semantic failures never are.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrSignalRejected) ||
		errors.Is(err, ErrUnsupportedJob) {
		return false
	}
	return IsTransient(err)
}
