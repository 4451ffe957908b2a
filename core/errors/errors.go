// Package errors defines the account kernel's error taxonomy. Invalid-input
// conditions abort the whole invocation; failures propagated from called
// targets or modules are surfaced as the underlying error with context
// joined on, never replaced.
package errors

import "errors"

// Typed failures of the account kernel.
var (
	// ErrUnsupportedCallType rejects a mode descriptor whose call type is
	// outside the supported set.
	ErrUnsupportedCallType = errors.New("unsupported call type")
	// ErrUnsupportedExecType rejects a mode descriptor whose exec type is
	// outside the supported set.
	ErrUnsupportedExecType = errors.New("unsupported exec type")
	// ErrUnsupportedModuleType rejects install/uninstall against an unknown
	// module category.
	ErrUnsupportedModuleType = errors.New("unsupported module type")
	// ErrMismatchModuleType rejects installing a module under a category it
	// does not self-report.
	ErrMismatchModuleType = errors.New("module type mismatch")
	// ErrInvalidModule rejects a validator selection that names no installed
	// module on the direct-signature surface.
	ErrInvalidModule = errors.New("invalid module")
	// ErrExecutionFailed is the generic failure signal of the coordinator
	// self-delegation entry point.
	ErrExecutionFailed = errors.New("execution failed")
	// ErrUnauthorized rejects a caller that fails an access predicate.
	ErrUnauthorized = errors.New("unauthorized caller")
)

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Wrap adds context to an existing error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Join(errors.New(message), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
