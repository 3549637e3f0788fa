package windowing

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ValidatePositive returns an error if v is not > 0, nil otherwise.
func ValidatePositive(name string, v int64) error {
	if v <= 0 {
		return fmt.Errorf("%s must be > 0, got %d", name, v)
	}
	return nil
}

// ValidateAtLeastOne returns an error if v is not >= 1, nil otherwise.
func ValidateAtLeastOne(name string, v int64) error {
	if v < 1 {
		return fmt.Errorf("%s must be >= 1, got %d", name, v)
	}
	return nil
}

// ValidateNonNegative returns an error if v is negative, nil otherwise.
func ValidateNonNegative(name string, v int64) error {
	if v < 0 {
		return fmt.Errorf("%s must be >= 0, got %d", name, v)
	}
	return nil
}

// ErrMissingExtractor is returned when a required extractor function was
// not supplied.
var ErrMissingExtractor = errors.New("extractTimestamp is required")

// Combine collects every non-nil error into one multierr value, so a
// caller sees all violated construction preconditions at once instead of
// only the first.
func Combine(errs ...error) error {
	return multierr.Combine(errs...)
}
