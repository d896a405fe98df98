// Package errors provides the failure taxonomy of the SDK. Every failure an
// SDK layer can produce resolves to exactly one of fourteen kinds, each with
// its own payload, so callers can classify it, decide whether to retry, and
// reduce it to a stable wire code.
//
// # Kinds and Codes
//
// Kinds map many-to-one onto eleven wire codes:
//
//   - Auth: AUTH_ERROR
//   - RateLimit: RATE_LIMIT_ERROR
//   - Tool, NoSuchTool, InvalidToolInput: TOOL_ERROR
//   - Validation, SchemaValidation: VALIDATION_ERROR
//   - Network: NETWORK_ERROR
//   - Provider: PROVIDER_ERROR
//   - Timeout: TIMEOUT_ERROR
//   - Serialization: SERIALIZATION_ERROR
//   - Internal: INTERNAL_ERROR
//   - Stream: STREAM_ERROR
//   - Config: CONFIG_ERROR
//
// The code is the only cross-process contract. The text returned by Error is
// for logs and people and may change between versions.
//
// # Retry Advice
//
// RateLimit, Network and Timeout are retryable. RetryAfter returns the
// provider's delay for RateLimit when it gave one, 1s for Network and 2s for
// Timeout. The package never sleeps or schedules anything itself.
//
//	if d, ok := failure.RetryAfter(); ok {
//	    // wait d, then resend
//	} else if failure.Retryable() {
//	    // rate limited without guidance: apply your own backoff
//	}
//
// # Conversion
//
// Network and Serialization wrap foreign faults verbatim and are meant to be
// called where the transport or codec is invoked:
//
//	if err := json.Unmarshal(body, &resp); err != nil {
//	    return errors.Serialization(err)
//	}
//
// Classify converts any other error into the taxonomy so that no failure
// escapes uncategorized.
//
// # JSON Serialization
//
// Failures marshal to an Envelope carrying the code, the kind and the payload,
// and decode back into an equivalent failure:
//
//	data, err := json.Marshal(failure)
package errors
