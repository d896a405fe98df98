package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Classify resolves any error to exactly one failure. A failure already in
// the chain is returned unchanged. Context errors, transport errors
// (net.Error, which includes *url.Error) and encoding/json errors are
// converted; everything else becomes Internal with the original error
// attached as cause. Classify(nil) returns nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	if failure, ok := As(err); ok {
		return failure
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(0, WithCause(err))
	}
	if errors.Is(err, context.Canceled) {
		return Internal("operation canceled", WithCause(err))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Timeout(0, WithCause(err))
		}
		return Network(err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return Network(err)
	}

	if isCodecError(err) {
		return Serialization(err)
	}

	return Internal(err.Error(), WithCause(err))
}

func isCodecError(err error) bool {
	var (
		syntaxErr      *json.SyntaxError
		typeErr        *json.UnmarshalTypeError
		marshalerErr   *json.MarshalerError
		unsupportedTyp *json.UnsupportedTypeError
		unsupportedVal *json.UnsupportedValueError
		invalidErr     *json.InvalidUnmarshalError
	)
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.As(err, &marshalerErr) ||
		errors.As(err, &unsupportedTyp) ||
		errors.As(err, &unsupportedVal) ||
		errors.As(err, &invalidErr)
}

// Wrap adds context to an error while preserving its classification. A
// chain that already holds a failure is wrapped whole, keeping its context
// and sentinels; a foreign error is classified first. If err is nil, Wrap
// returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return fmt.Errorf("%s: %w", message, err)
	}
	return fmt.Errorf("%s: %w", message, Classify(err))
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// As extracts the failure from an error chain. A nil *Error in the chain
// does not count as a failure.
func As(err error) (*Error, bool) {
	var failure *Error
	if errors.As(err, &failure) && failure != nil {
		return failure, true
	}
	return nil, false
}

// KindOf returns the kind of err after classification.
// Returns empty string if err is nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind()
}

// Code returns the wire code of err after classification. Every non-nil error
// yields one of the known codes. Returns empty string if err is nil.
func Code(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return Classify(err).Code()
}

// Category returns the category of err after classification.
// Returns empty string if err is nil.
func Category(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	return Classify(err).Category()
}

// IsKind checks if the failure in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	failure, ok := As(err)
	return ok && failure.Kind() == kind
}

// Is checks if the failure in the chain has the given wire code.
func Is(err error, code ErrorCode) bool {
	failure, ok := As(err)
	return ok && failure.Code() == code
}

// IsCategory checks if the failure in the chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	failure, ok := As(err)
	return ok && failure.Category() == category
}

// IsRetryable checks if err is retryable after classification.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable()
}

// RetryAfter returns the advisory retry delay of err after classification.
func RetryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	return Classify(err).RetryAfter()
}

// IsTransient checks if the failure is a transient fault.
func IsTransient(err error) bool {
	return IsCategory(err, CategoryTransient)
}

// IsCallerFault checks if the failure must be fixed by the caller.
func IsCallerFault(err error) bool {
	return IsCategory(err, CategoryCaller)
}

// IsProviderFault checks if the failure is a semantic provider or tool fault.
func IsProviderFault(err error) bool {
	return IsCategory(err, CategoryProvider)
}

// IsInternal checks if the failure is an SDK-internal fault.
func IsInternal(err error) bool {
	return IsCategory(err, CategoryInternal)
}

// GetMetadata extracts metadata from an error.
// Returns nil if err carries no failure.
func GetMetadata(err error) map[string]string {
	if failure, ok := As(err); ok {
		return failure.Metadata()
	}
	return nil
}

// Cause returns the root cause of the error chain.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		inner := unwrapper.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}

// Join combines multiple errors into a single error.
// If all errors are nil, returns nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Collect gathers multiple errors into a slice, filtering nils.
func Collect(errs ...error) []error {
	var result []error
	for _, err := range errs {
		if err != nil {
			result = append(result, err)
		}
	}
	return result
}

// FirstRetryable returns the first retryable error from a slice.
// Returns nil if no retryable error is found.
func FirstRetryable(errs []error) error {
	for _, err := range errs {
		if IsRetryable(err) {
			return err
		}
	}
	return nil
}

// AllRetryable checks if all errors in the slice are retryable.
// Returns true for empty slice.
func AllRetryable(errs []error) bool {
	for _, err := range errs {
		if !IsRetryable(err) {
			return false
		}
	}
	return true
}

// AnyRetryable checks if any error in the slice is retryable.
// Returns false for empty slice.
func AnyRetryable(errs []error) bool {
	for _, err := range errs {
		if IsRetryable(err) {
			return true
		}
	}
	return false
}

// RecoverPanic converts a recovered panic value into an Internal failure.
func RecoverPanic(recovered interface{}) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	var opts []Option
	switch v := recovered.(type) {
	case error:
		message = v.Error()
		opts = append(opts, WithCause(v))
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	opts = append(opts, WithMetadata("panic_value", fmt.Sprintf("%T", recovered)))
	return Internal("panic: "+message, opts...)
}
