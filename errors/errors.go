package errors

import (
	"fmt"
	"time"
)

// Advisory delays for retryable kinds that carry no provider guidance.
const (
	NetworkRetryAfter = 1 * time.Second
	TimeoutRetryAfter = 2 * time.Second
)

// Error is the single failure type of the SDK. Each value is one Kind with
// that kind's payload. Values are immutable once constructed and are safe to
// share between goroutines.
type Error struct {
	kind         Kind
	message      string // message, or reason for InvalidToolInput
	toolName     string
	provider     string
	providerCode string
	delay        time.Duration // RateLimit retry-after or Timeout elapsed
	hasDelay     bool
	cause        error
	metadata     map[string]string
}

// Error returns the human-readable text of the failure. The format is for
// logs and people; use Code for anything machine-readable.
func (e *Error) Error() string {
	e = e.orZero()
	switch e.kind {
	case KindAuth:
		return "authentication failed: " + e.message
	case KindRateLimit:
		if e.hasDelay {
			return fmt.Sprintf("rate limit exceeded, retry after %s", e.delay)
		}
		return "rate limit exceeded"
	case KindTool:
		return fmt.Sprintf("tool error in %q: %s", e.toolName, e.message)
	case KindValidation:
		return "validation error: " + e.message
	case KindNetwork:
		return "network error: " + e.causeText()
	case KindProvider:
		if e.providerCode != "" {
			return fmt.Sprintf("provider error (%s) [%s]: %s", e.provider, e.providerCode, e.message)
		}
		return fmt.Sprintf("provider error (%s): %s", e.provider, e.message)
	case KindTimeout:
		if e.delay > 0 {
			return fmt.Sprintf("request timeout after %s", e.delay)
		}
		return "request timeout"
	case KindSerialization:
		return "serialization error: " + e.causeText()
	case KindNoSuchTool:
		return "no such tool: " + e.toolName
	case KindInvalidToolInput:
		return fmt.Sprintf("invalid tool input for %q: %s", e.toolName, e.message)
	case KindSchemaValidation:
		return "schema validation failed: " + e.message
	case KindStream:
		return "stream error: " + e.message
	case KindConfig:
		return "configuration error: " + e.message
	default:
		return "internal error: " + e.message
	}
}

// orZero lets the accessors treat a nil *Error found in a chain as a zero
// Error, which reports Internal.
func (e *Error) orZero() *Error {
	if e == nil {
		return &Error{}
	}
	return e
}

func (e *Error) causeText() string {
	if e.cause == nil {
		return e.message
	}
	return e.cause.Error()
}

// Kind returns the variant of the failure. A zero Error reports KindInternal.
func (e *Error) Kind() Kind {
	e = e.orZero()
	if !e.kind.Valid() {
		return KindInternal
	}
	return e.kind
}

// Code returns the stable wire code.
func (e *Error) Code() ErrorCode {
	return e.Kind().Code()
}

// Category returns the failure category.
func (e *Error) Category() ErrorCategory {
	return e.Kind().Category()
}

// Retryable reports whether an identical retry may succeed.
func (e *Error) Retryable() bool {
	return e.Kind().Retryable()
}

// RetryAfter returns the advisory delay before retrying. The second result is
// false when the failure should not be retried, or when it is a rate limit
// without provider guidance and the caller should apply its own backoff.
func (e *Error) RetryAfter() (time.Duration, bool) {
	e = e.orZero()
	switch e.kind {
	case KindRateLimit:
		return e.delay, e.hasDelay
	case KindNetwork:
		return NetworkRetryAfter, true
	case KindTimeout:
		return TimeoutRetryAfter, true
	default:
		return 0, false
	}
}

// Message returns the plain payload message. For InvalidToolInput it is the
// reason; for Network and Serialization it is the cause text.
func (e *Error) Message() string {
	e = e.orZero()
	if e.kind == KindNetwork || e.kind == KindSerialization {
		return e.causeText()
	}
	return e.message
}

// ToolName returns the tool name for Tool, NoSuchTool and InvalidToolInput.
func (e *Error) ToolName() string {
	e = e.orZero()
	return e.toolName
}

// Provider returns the provider name for Provider failures.
func (e *Error) Provider() string {
	e = e.orZero()
	return e.provider
}

// ProviderCode returns the provider's own error code, or "" when it gave none.
func (e *Error) ProviderCode() string {
	e = e.orZero()
	return e.providerCode
}

// Elapsed returns how long a Timeout waited before giving up. Zero means the
// wait is unknown.
func (e *Error) Elapsed() time.Duration {
	e = e.orZero()
	if e.kind != KindTimeout {
		return 0
	}
	return e.delay
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	e = e.orZero()
	return e.cause
}

// Metadata returns a copy of the failure metadata.
func (e *Error) Metadata() map[string]string {
	e = e.orZero()
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// Option configures an Error at construction time.
type Option func(*Error)

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithMetadataMap adds multiple metadata key-value pairs.
func WithMetadataMap(m map[string]string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string, len(m))
		}
		for k, v := range m {
			e.metadata[k] = v
		}
	}
}

// WithCause attaches the lower-layer error that produced the failure so it
// stays reachable through errors.Unwrap. It does not change the text of
// message-bearing kinds.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

func build(e *Error, opts []Option) *Error {
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Auth creates a credential or authorization rejection.
func Auth(message string, opts ...Option) *Error {
	return build(&Error{kind: KindAuth, message: message}, opts)
}

// RateLimit creates a throttling failure with no provider-suggested delay.
func RateLimit(opts ...Option) *Error {
	return build(&Error{kind: KindRateLimit}, opts)
}

// RateLimitAfter creates a throttling failure carrying the provider's
// suggested delay. A negative delay is treated as no suggestion.
func RateLimitAfter(retryAfter time.Duration, opts ...Option) *Error {
	if retryAfter < 0 {
		return RateLimit(opts...)
	}
	return build(&Error{kind: KindRateLimit, delay: retryAfter, hasDelay: true}, opts)
}

// Tool creates a failure of a named tool's execution.
func Tool(toolName, message string, opts ...Option) *Error {
	return build(&Error{kind: KindTool, toolName: toolName, message: message}, opts)
}

// Validation creates a generic input validation failure.
func Validation(message string, opts ...Option) *Error {
	return build(&Error{kind: KindValidation, message: message}, opts)
}

// Validationf creates a validation failure with a formatted message.
func Validationf(format string, args ...interface{}) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// Network converts a transport fault. The fault's text is kept verbatim and
// the fault itself is returned by Unwrap.
func Network(cause error, opts ...Option) *Error {
	e := build(&Error{kind: KindNetwork}, opts)
	e.cause = cause
	return e
}

// Provider creates a provider-specific semantic failure.
func Provider(provider, message string, opts ...Option) *Error {
	return build(&Error{kind: KindProvider, provider: provider, message: message}, opts)
}

// ProviderWithCode creates a provider failure carrying the provider's own
// error code.
func ProviderWithCode(provider, code, message string, opts ...Option) *Error {
	return build(&Error{kind: KindProvider, provider: provider, providerCode: code, message: message}, opts)
}

// Timeout creates a failure for an operation that gave up after elapsed.
func Timeout(elapsed time.Duration, opts ...Option) *Error {
	return build(&Error{kind: KindTimeout, delay: elapsed}, opts)
}

// Serialization converts a codec fault. The fault's text is kept verbatim and
// the fault itself is returned by Unwrap.
func Serialization(cause error, opts ...Option) *Error {
	e := build(&Error{kind: KindSerialization}, opts)
	e.cause = cause
	return e
}

// Internal creates an SDK invariant violation.
func Internal(message string, opts ...Option) *Error {
	return build(&Error{kind: KindInternal, message: message}, opts)
}

// Internalf creates an internal failure with a formatted message.
func Internalf(format string, args ...interface{}) *Error {
	return Internal(fmt.Sprintf(format, args...))
}

// NoSuchTool creates a failure for a reference to an unregistered tool.
func NoSuchTool(toolName string, opts ...Option) *Error {
	return build(&Error{kind: KindNoSuchTool, toolName: toolName}, opts)
}

// InvalidToolInput creates a failure for a known tool whose input was rejected.
func InvalidToolInput(toolName, reason string, opts ...Option) *Error {
	return build(&Error{kind: KindInvalidToolInput, toolName: toolName, message: reason}, opts)
}

// SchemaValidation creates a JSON-Schema contract violation.
func SchemaValidation(message string, opts ...Option) *Error {
	return build(&Error{kind: KindSchemaValidation, message: message}, opts)
}

// Stream creates a failure raised while producing or consuming a stream.
func Stream(message string, opts ...Option) *Error {
	return build(&Error{kind: KindStream, message: message}, opts)
}

// Config creates a misconfiguration failure detected before any request.
func Config(message string, opts ...Option) *Error {
	return build(&Error{kind: KindConfig, message: message}, opts)
}

// Configf creates a configuration failure with a formatted message.
func Configf(format string, args ...interface{}) *Error {
	return Config(fmt.Sprintf(format, args...))
}
