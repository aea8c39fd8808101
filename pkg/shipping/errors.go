package shipping

import (
	"errors"
	"fmt"
)

// ModuleError represents an error raised by a rate module or processor.
type ModuleError struct {
	Module    string
	Code      string
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *ModuleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Module, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Module, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ModuleError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ModuleError.
func (e *ModuleError) Is(target error) bool {
	t, ok := target.(*ModuleError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewModuleError creates a new ModuleError.
func NewModuleError(module, code, message string) *ModuleError {
	return &ModuleError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *ModuleError) WithCause(err error) *ModuleError {
	e.Cause = err
	return e
}

// WithRetryable marks the error as retryable.
func (e *ModuleError) WithRetryable(retryable bool) *ModuleError {
	e.Retryable = retryable
	return e
}

// Sentinel errors for quote computation faults.
var (
	// ErrModuleNotFound indicates no rate module is registered under the code.
	ErrModuleNotFound = errors.New("shipping module not found")

	// ErrProcessorNotFound indicates no processor is registered under the code.
	ErrProcessorNotFound = errors.New("shipping processor not found")

	// ErrInvalidConfiguration indicates stored configuration cannot be used.
	ErrInvalidConfiguration = errors.New("invalid shipping configuration")

	// ErrRejectedConfiguration indicates a submitted module configuration
	// failed validation and was not saved.
	ErrRejectedConfiguration = errors.New("rejected shipping configuration")

	// ErrMissingCountry indicates the store or delivery country is unset.
	ErrMissingCountry = errors.New("missing country")

	// ErrInvalidModuleSwitch indicates a pre-processor selected an unusable module.
	ErrInvalidModuleSwitch = errors.New("invalid shipping module switch")

	// ErrProcessorFailed indicates a pre or post processor failed.
	ErrProcessorFailed = errors.New("shipping processor failed")

	// ErrModuleFailed indicates the rate module could not quote.
	ErrModuleFailed = errors.New("shipping module failed")

	// ErrInvalidPackage indicates package dimensions or weight are invalid.
	ErrInvalidPackage = errors.New("invalid package")

	// ErrStoreNotFound indicates the store code is unknown.
	ErrStoreNotFound = errors.New("store not found")

	// ErrNoLineItems indicates the quote request has no products.
	ErrNoLineItems = errors.New("no line items")

	// ErrServiceUnavailable indicates a carrier service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var moduleErr *ModuleError
	if errors.As(err, &moduleErr) {
		return moduleErr.Retryable
	}
	return errors.Is(err, ErrServiceUnavailable)
}
