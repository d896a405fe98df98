package llm

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/tidwall/gjson"
	"google.golang.org/api/googleapi"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vinayprograms/aisdk/errors"
)

// googleStatus maps google.rpc status names, as carried in REST error
// bodies, to HTTP statuses.
var googleStatus = map[string]int{
	"INVALID_ARGUMENT":    http.StatusBadRequest,
	"FAILED_PRECONDITION": http.StatusBadRequest,
	"UNAUTHENTICATED":     http.StatusUnauthorized,
	"PERMISSION_DENIED":   http.StatusForbidden,
	"NOT_FOUND":           http.StatusNotFound,
	"RESOURCE_EXHAUSTED":  http.StatusTooManyRequests,
	"INTERNAL":            http.StatusInternalServerError,
	"UNAVAILABLE":         http.StatusServiceUnavailable,
	"DEADLINE_EXCEEDED":   http.StatusGatewayTimeout,
}

// grpcStatus maps gRPC codes returned by the Gemini client to HTTP statuses.
var grpcStatus = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.FailedPrecondition: http.StatusBadRequest,
	codes.OutOfRange:         http.StatusBadRequest,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.NotFound:           http.StatusNotFound,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.Unavailable:        http.StatusServiceUnavailable,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.Internal:           http.StatusInternalServerError,
	codes.Unknown:            http.StatusInternalServerError,
}

const retryInfoType = "type.googleapis.com/google.rpc.RetryInfo"

func fromGoogleAPI(provider string, err error) *errors.Error {
	var apiErr *googleapi.Error
	if !stderrors.As(err, &apiErr) {
		return nil
	}

	rpcStatus := gjson.Get(apiErr.Body, "error.status").String()
	code := rpcStatus
	if code == "" && len(apiErr.Errors) > 0 {
		code = apiErr.Errors[0].Reason
	}
	message := apiErr.Message
	if message == "" {
		message = gjson.Get(apiErr.Body, "error.message").String()
	}
	httpStatus := apiErr.Code
	if mapped, ok := googleStatus[rpcStatus]; ok {
		httpStatus = mapped
	}

	f := fault{
		provider:  providerName(provider, ProviderGoogle),
		status:    httpStatus,
		code:      code,
		message:   message,
		requestID: requestID(apiErr.Header),
		cause:     err,
	}
	f.retryAfter, f.hasDelay = ParseRetryAfter(apiErr.Header)
	if !f.hasDelay {
		f.retryAfter, f.hasDelay = bodyRetryDelay(apiErr.Body)
	}
	return f.failure()
}

// bodyRetryDelay reads a google.rpc.RetryInfo detail from a REST error body.
func bodyRetryDelay(body string) (time.Duration, bool) {
	var delay time.Duration
	found := false
	gjson.Get(body, "error.details").ForEach(func(_, detail gjson.Result) bool {
		fields := detail.Map()
		if fields["@type"].String() != retryInfoType {
			return true
		}
		d, err := time.ParseDuration(fields["retryDelay"].String())
		if err == nil && d >= 0 {
			delay, found = d, true
		}
		return false
	})
	return delay, found
}

func fromGRPC(provider string, err error) *errors.Error {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return nil
	}
	if st.Code() == codes.Canceled {
		return errors.Internal("operation canceled", errors.WithCause(err))
	}

	f := fault{
		provider: providerName(provider, ProviderGoogle),
		status:   http.StatusInternalServerError,
		code:     st.Code().String(),
		message:  st.Message(),
		cause:    err,
	}
	if mapped, ok := grpcStatus[st.Code()]; ok {
		f.status = mapped
	}
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.RetryInfo:
			if delay := d.GetRetryDelay(); delay != nil && delay.AsDuration() >= 0 {
				f.retryAfter, f.hasDelay = delay.AsDuration(), true
			}
		case *errdetails.ErrorInfo:
			if d.GetReason() != "" {
				f.code = d.GetReason()
			}
		case *errdetails.RequestInfo:
			f.requestID = d.GetRequestId()
		}
	}
	return f.failure()
}

// fromBlocked reports a Gemini safety block. The request itself succeeded,
// so this is a provider decision rather than a transport fault.
func fromBlocked(provider string, err error) *errors.Error {
	var blocked *genai.BlockedError
	if !stderrors.As(err, &blocked) {
		return nil
	}
	message := strings.TrimPrefix(blocked.Error(), "blocked: ")
	return errors.ProviderWithCode(providerName(provider, ProviderGoogle), "blocked", "content blocked: "+message,
		errors.WithCause(err))
}
