package shared

import (
	"errors"
	"fmt"
)

// ErrConfiguration flags an invalid strategy configuration. Configuration
// errors surface at activation time and stop the strategy run from starting.
var ErrConfiguration = errors.New("invalid configuration")

// ErrPrecondition flags a call made with arguments violating its
// preconditions. Precondition errors are fatal to the offending call only.
var ErrPrecondition = errors.New("precondition violated")

// ConfigurationError returns a formatted error wrapping ErrConfiguration.
func ConfigurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// PreconditionError returns a formatted error wrapping ErrPrecondition.
func PreconditionError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}
