package services

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced by the engine. Not-found and validation errors are
// reported to the caller before any ledger write; dependency failures are
// wrapped and propagated without retry.
var (
	ErrEventNotFound = errors.New("generation event not found")
	ErrUnknownSignal = errors.New("unknown feedback signal")
)

// ValidationError rejects a submission before any state is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrUnknownSignal)
}
