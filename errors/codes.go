package errors

// ErrorCategory groups failure kinds by who has to act on them.
type ErrorCategory string

// Failure categories.
const (
	// CategoryCaller indicates the caller sent something the SDK or provider
	// rejects. The input must change before resubmitting.
	CategoryCaller ErrorCategory = "caller"

	// CategoryTransient indicates throttling, transport hiccups, or elapsed
	// deadlines where an identical retry may succeed.
	CategoryTransient ErrorCategory = "transient"

	// CategoryProvider indicates a semantic rejection by the provider or a tool.
	// Retrying without intervention (new credentials, fixed tool) will not help.
	CategoryProvider ErrorCategory = "provider"

	// CategoryInternal indicates an SDK bug or malformed data.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if failures in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode is the stable wire identifier of a failure. It is safe to persist
// and to transmit across processes; adding a value is a breaking wire change.
type ErrorCode string

// Wire codes.
const (
	ErrCodeAuth          ErrorCode = "AUTH_ERROR"
	ErrCodeRateLimit     ErrorCode = "RATE_LIMIT_ERROR"
	ErrCodeTool          ErrorCode = "TOOL_ERROR"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeNetwork       ErrorCode = "NETWORK_ERROR"
	ErrCodeProvider      ErrorCode = "PROVIDER_ERROR"
	ErrCodeTimeout       ErrorCode = "TIMEOUT_ERROR"
	ErrCodeSerialization ErrorCode = "SERIALIZATION_ERROR"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeStream        ErrorCode = "STREAM_ERROR"
	ErrCodeConfig        ErrorCode = "CONFIG_ERROR"
)

// AllCodes returns every wire code in declaration order.
func AllCodes() []ErrorCode {
	return []ErrorCode{
		ErrCodeAuth,
		ErrCodeRateLimit,
		ErrCodeTool,
		ErrCodeValidation,
		ErrCodeNetwork,
		ErrCodeProvider,
		ErrCodeTimeout,
		ErrCodeSerialization,
		ErrCodeInternal,
		ErrCodeStream,
		ErrCodeConfig,
	}
}

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// Valid reports whether c is one of the known wire codes.
func (c ErrorCode) Valid() bool {
	_, ok := codeDescriptions[c]
	return ok
}

// canonicalKind returns the kind a bare code decodes to when the peer did not
// send one. Many-to-one codes resolve to their generic kind.
func (c ErrorCode) canonicalKind() Kind {
	switch c {
	case ErrCodeAuth:
		return KindAuth
	case ErrCodeRateLimit:
		return KindRateLimit
	case ErrCodeTool:
		return KindTool
	case ErrCodeValidation:
		return KindValidation
	case ErrCodeNetwork:
		return KindNetwork
	case ErrCodeProvider:
		return KindProvider
	case ErrCodeTimeout:
		return KindTimeout
	case ErrCodeSerialization:
		return KindSerialization
	case ErrCodeStream:
		return KindStream
	case ErrCodeConfig:
		return KindConfig
	default:
		return KindInternal
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeAuth:          "authentication rejected by provider",
	ErrCodeRateLimit:     "provider rate limit exceeded",
	ErrCodeTool:          "tool invocation failed",
	ErrCodeValidation:    "input validation failed",
	ErrCodeNetwork:       "network connectivity error",
	ErrCodeProvider:      "provider returned an error",
	ErrCodeTimeout:       "operation timed out",
	ErrCodeSerialization: "encoding or decoding failed",
	ErrCodeInternal:      "internal error",
	ErrCodeStream:        "streamed response failed",
	ErrCodeConfig:        "invalid configuration",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}

// Kind identifies one variant of the closed failure set.
type Kind string

// Failure kinds.
const (
	KindAuth             Kind = "auth"
	KindRateLimit        Kind = "rate_limit"
	KindTool             Kind = "tool"
	KindValidation       Kind = "validation"
	KindNetwork          Kind = "network"
	KindProvider         Kind = "provider"
	KindTimeout          Kind = "timeout"
	KindSerialization    Kind = "serialization"
	KindInternal         Kind = "internal"
	KindNoSuchTool       Kind = "no_such_tool"
	KindInvalidToolInput Kind = "invalid_tool_input"
	KindSchemaValidation Kind = "schema_validation"
	KindStream           Kind = "stream"
	KindConfig           Kind = "config"
)

// AllKinds returns every failure kind in declaration order.
func AllKinds() []Kind {
	return []Kind{
		KindAuth,
		KindRateLimit,
		KindTool,
		KindValidation,
		KindNetwork,
		KindProvider,
		KindTimeout,
		KindSerialization,
		KindInternal,
		KindNoSuchTool,
		KindInvalidToolInput,
		KindSchemaValidation,
		KindStream,
		KindConfig,
	}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is one of the fourteen known kinds.
func (k Kind) Valid() bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Code maps the kind to its wire code. Unknown kinds report ErrCodeInternal.
func (k Kind) Code() ErrorCode {
	switch k {
	case KindAuth:
		return ErrCodeAuth
	case KindRateLimit:
		return ErrCodeRateLimit
	case KindTool, KindNoSuchTool, KindInvalidToolInput:
		return ErrCodeTool
	case KindValidation, KindSchemaValidation:
		return ErrCodeValidation
	case KindNetwork:
		return ErrCodeNetwork
	case KindProvider:
		return ErrCodeProvider
	case KindTimeout:
		return ErrCodeTimeout
	case KindSerialization:
		return ErrCodeSerialization
	case KindStream:
		return ErrCodeStream
	case KindConfig:
		return ErrCodeConfig
	default:
		return ErrCodeInternal
	}
}

// Category returns the category of the kind.
func (k Kind) Category() ErrorCategory {
	switch k {
	case KindValidation, KindSchemaValidation, KindNoSuchTool, KindInvalidToolInput, KindConfig:
		return CategoryCaller
	case KindRateLimit, KindNetwork, KindTimeout:
		return CategoryTransient
	case KindProvider, KindAuth, KindTool:
		return CategoryProvider
	default:
		return CategoryInternal
	}
}

// Retryable reports whether failures of this kind may succeed on an identical
// retry. It depends on the kind only, never on the payload.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimit, KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}
