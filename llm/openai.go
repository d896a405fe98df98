package llm

import (
	stderrors "errors"
	"net/http"

	"github.com/openai/openai-go"

	"github.com/vinayprograms/aisdk/errors"
)

// openAIStatus maps OpenAI error codes whose meaning the status alone does
// not pin down.
var openAIStatus = map[string]int{
	"invalid_api_key":      http.StatusUnauthorized,
	"invalid_organization": http.StatusUnauthorized,
	"rate_limit_exceeded":  http.StatusTooManyRequests,
	"insufficient_quota":   http.StatusTooManyRequests,
	"server_overloaded":    http.StatusServiceUnavailable,
}

func fromOpenAI(provider string, err error) *errors.Error {
	var apiErr *openai.Error
	if !stderrors.As(err, &apiErr) {
		return nil
	}
	status := apiErr.StatusCode
	if mapped, ok := openAIStatus[apiErr.Code]; ok {
		status = mapped
	}
	code := apiErr.Code
	if code == "" {
		code = apiErr.Type
	}
	return FromStatus(providerName(provider, ProviderOpenAI), status, code, apiErr.Message,
		responseHeader(apiErr.Response), err)
}
