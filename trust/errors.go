package trust

import (
	"errors"
	"fmt"
)

// ErrTrustConfiguration is matched by every error returned from Build.
// Use errors.Is(err, ErrTrustConfiguration) to detect a rejected policy.
var ErrTrustConfiguration = errors.New("trust: invalid transport configuration")

// ConfigurationError describes a failure to load or initialize a store.
type ConfigurationError struct {
	// Op is the step that failed, e.g. "load key store".
	Op string

	// Path is the store location involved, if any.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("trust: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("trust: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTrustConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrTrustConfiguration
}
