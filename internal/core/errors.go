package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. Callers match with errors.Is.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnresolvableSchema = errors.New("could not identify date and amount columns")
	ErrCouldNotExtract    = errors.New("could not extract data")
	ErrPartialFailure     = errors.New("operation could not complete atomically")
)

var (
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be a positive number with at most 2 decimals", ErrInvalidInput)
	ErrInvalidDate        = fmt.Errorf("%w: invalid date", ErrInvalidInput)
	ErrInvalidKind        = fmt.Errorf("%w: kind must be EXPENSE or INCOME", ErrInvalidInput)
	ErrInvalidInterval    = fmt.Errorf("%w: interval must be DAILY, WEEKLY, MONTHLY or YEARLY", ErrInvalidInput)
	ErrInvalidAccountType = fmt.Errorf("%w: invalid account type", ErrInvalidInput)
)

// NotFound wraps ErrNotFound with the entity name and id.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// PartialFailure marks err as the reason a multi-row operation was rolled back.
func PartialFailure(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPartialFailure, err)
}
