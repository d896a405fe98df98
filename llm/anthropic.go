package llm

import (
	stderrors "errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	"github.com/vinayprograms/aisdk/errors"
)

// anthropicStatus maps Anthropic error types to the status they stand for.
// The type wins over the response status because errors raised mid-stream
// arrive on a 200.
var anthropicStatus = map[string]int{
	"invalid_request_error": http.StatusBadRequest,
	"authentication_error":  http.StatusUnauthorized,
	"billing_error":         http.StatusPaymentRequired,
	"permission_error":      http.StatusForbidden,
	"not_found_error":       http.StatusNotFound,
	"request_too_large":     http.StatusRequestEntityTooLarge,
	"rate_limit_error":      http.StatusTooManyRequests,
	"timeout_error":         http.StatusGatewayTimeout,
	"api_error":             http.StatusInternalServerError,
	"overloaded_error":      StatusOverloaded,
}

func fromAnthropic(provider string, err error) *errors.Error {
	var apiErr *anthropic.Error
	if !stderrors.As(err, &apiErr) {
		return nil
	}
	header := responseHeader(apiErr.Response)
	f := anthropicFault(providerName(provider, ProviderAnthropic), apiErr.StatusCode, apiErr.RawJSON(), header)
	if f.requestID == "" {
		f.requestID = apiErr.RequestID
	}
	f.cause = err
	return f.failure()
}

// anthropicFault reads an Anthropic error body of the form
// {"type":"error","error":{"type":"...","message":"..."}}.
func anthropicFault(provider string, status int, body string, header http.Header) fault {
	errType := gjson.Get(body, "error.type").String()
	if mapped, ok := anthropicStatus[errType]; ok {
		status = mapped
	}
	f := fault{
		provider:  provider,
		status:    status,
		code:      errType,
		message:   gjson.Get(body, "error.message").String(),
		requestID: requestID(header),
	}
	f.retryAfter, f.hasDelay = ParseRetryAfter(header)
	return f
}
