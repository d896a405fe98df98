package llm

import (
	stderrors "errors"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/vinayprograms/aisdk/errors"
)

// bedrockStatus maps Bedrock runtime exception names to HTTP statuses.
var bedrockStatus = map[string]int{
	"ValidationException":           http.StatusBadRequest,
	"UnrecognizedClientException":   http.StatusUnauthorized,
	"ExpiredTokenException":         http.StatusUnauthorized,
	"AccessDeniedException":         http.StatusForbidden,
	"ResourceNotFoundException":     http.StatusNotFound,
	"ModelTimeoutException":         http.StatusRequestTimeout,
	"ThrottlingException":           http.StatusTooManyRequests,
	"ModelNotReadyException":        http.StatusTooManyRequests,
	"ServiceQuotaExceededException": http.StatusBadRequest,
	"ModelErrorException":           http.StatusFailedDependency,
	"InternalServerException":       http.StatusInternalServerError,
	"ServiceUnavailableException":   http.StatusServiceUnavailable,
}

// streamExceptions are raised on an event stream after it was opened.
var streamExceptions = map[string]bool{
	"ModelStreamErrorException": true,
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type httpResponder interface {
	HTTPResponse() *smithyhttp.Response
}

func fromSmithy(provider string, err error) *errors.Error {
	var deserErr *smithy.DeserializationError
	if stderrors.As(err, &deserErr) {
		return errors.Serialization(err)
	}
	var serErr *smithy.SerializationError
	if stderrors.As(err, &serErr) {
		return errors.Serialization(err)
	}

	var apiErr smithy.APIError
	if !stderrors.As(err, &apiErr) {
		return nil
	}
	provider = providerName(provider, ProviderBedrock)
	code := apiErr.ErrorCode()
	if streamExceptions[code] {
		return errors.Stream(apiErr.ErrorMessage(), errors.WithCause(err),
			errors.WithMetadata("provider", provider), errors.WithMetadata("provider_code", code))
	}

	status := http.StatusInternalServerError
	if apiErr.ErrorFault() == smithy.FaultClient {
		status = http.StatusBadRequest
	}
	var coder httpStatusCoder
	if stderrors.As(err, &coder) {
		status = coder.HTTPStatusCode()
	}
	if mapped, ok := bedrockStatus[code]; ok {
		status = mapped
	}

	var header http.Header
	var responder httpResponder
	if stderrors.As(err, &responder) {
		if resp := responder.HTTPResponse(); resp != nil && resp.Response != nil {
			header = resp.Header
		}
	}
	return FromStatus(provider, status, code, apiErr.ErrorMessage(), header, err)
}
