package errors

import (
	"encoding/json"
	"errors"
	"time"
)

// Envelope is the structured form of a failure sent to clients, for example
// as the body of an HTTP error response or the data of an SSE error event.
// Code is the only field with a compatibility guarantee.
type Envelope struct {
	Code         ErrorCode         `json:"code"`
	Kind         Kind              `json:"kind,omitempty"`
	Message      string            `json:"message"`
	Detail       string            `json:"detail,omitempty"`
	Retryable    bool              `json:"retryable"`
	RetryAfterMs *int64            `json:"retry_after_ms,omitempty"`
	ToolName     string            `json:"tool_name,omitempty"`
	Provider     string            `json:"provider,omitempty"`
	ProviderCode string            `json:"provider_code,omitempty"`
	ElapsedMs    int64             `json:"elapsed_ms,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

var (
	_ json.Marshaler   = (*Error)(nil)
	_ json.Unmarshaler = (*Error)(nil)
)

// Envelope returns the structured form of the failure.
func (e *Error) Envelope() Envelope {
	e = e.orZero()
	env := Envelope{
		Code:         e.Code(),
		Kind:         e.Kind(),
		Message:      e.Error(),
		Detail:       e.Message(),
		Retryable:    e.Retryable(),
		ToolName:     e.toolName,
		Provider:     e.provider,
		ProviderCode: e.providerCode,
		ElapsedMs:    e.Elapsed().Milliseconds(),
	}
	if d, ok := e.RetryAfter(); ok {
		ms := d.Milliseconds()
		env.RetryAfterMs = &ms
	}
	if len(e.metadata) > 0 {
		env.Metadata = e.Metadata()
	}
	return env
}

// FromEnvelope rebuilds a failure from its structured form. Network and
// Serialization causes come back as plain errors carrying the original text.
// A missing or unknown kind falls back to the canonical kind of the code, and
// an unknown code decodes as Internal.
func FromEnvelope(env Envelope) *Error {
	kind := env.Kind
	if !kind.Valid() || (env.Code != "" && kind.Code() != env.Code) {
		kind = env.Code.canonicalKind()
	}

	var opts []Option
	if len(env.Metadata) > 0 {
		opts = append(opts, WithMetadataMap(env.Metadata))
	}

	detail := env.Detail
	if detail == "" {
		detail = env.Message
	}

	switch kind {
	case KindAuth:
		return Auth(detail, opts...)
	case KindRateLimit:
		if env.RetryAfterMs != nil {
			return RateLimitAfter(time.Duration(*env.RetryAfterMs)*time.Millisecond, opts...)
		}
		return RateLimit(opts...)
	case KindTool:
		return Tool(env.ToolName, detail, opts...)
	case KindValidation:
		return Validation(detail, opts...)
	case KindNetwork:
		return Network(errors.New(detail), opts...)
	case KindProvider:
		return ProviderWithCode(env.Provider, env.ProviderCode, detail, opts...)
	case KindTimeout:
		return Timeout(time.Duration(env.ElapsedMs)*time.Millisecond, opts...)
	case KindSerialization:
		return Serialization(errors.New(detail), opts...)
	case KindNoSuchTool:
		return NoSuchTool(env.ToolName, opts...)
	case KindInvalidToolInput:
		return InvalidToolInput(env.ToolName, detail, opts...)
	case KindSchemaValidation:
		return SchemaValidation(detail, opts...)
	case KindStream:
		return Stream(detail, opts...)
	case KindConfig:
		return Config(detail, opts...)
	default:
		return Internal(detail, opts...)
	}
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Envelope())
}

// UnmarshalJSON implements json.Unmarshaler. It is meant for decoding into a
// fresh value; a decoded failure is not modified afterwards.
func (e *Error) UnmarshalJSON(data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*e = *FromEnvelope(env)
	return nil
}
