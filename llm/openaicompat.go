package llm

import (
	stderrors "errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"

	"github.com/vinayprograms/aisdk/errors"
)

// fromOpenAICompat handles errors from OpenAI-compatible endpoints such as
// DeepSeek, OpenRouter, Ollama and LM Studio, reached through go-openai.
// Those servers report codes as strings or numbers and send no headers
// through the client, so no retry delay is available.
func fromOpenAICompat(provider string, err error) *errors.Error {
	provider = providerName(provider, ProviderOpenAICompat)

	var apiErr *goopenai.APIError
	if stderrors.As(err, &apiErr) {
		code := compatCode(apiErr.Code)
		if code == "" {
			code = apiErr.Type
		}
		status := apiErr.HTTPStatusCode
		if mapped, ok := openAIStatus[code]; ok {
			status = mapped
		}
		return FromStatus(provider, status, code, apiErr.Message, nil, err)
	}

	var reqErr *goopenai.RequestError
	if stderrors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		body := string(reqErr.Body)
		message := gjson.Get(body, "error.message").String()
		if message == "" && reqErr.Err != nil {
			message = reqErr.Err.Error()
		}
		code := compatCode(gjson.Get(body, "error.code").Value())
		return FromStatus(provider, reqErr.HTTPStatusCode, code, message, nil, err)
	}
	return nil
}

func compatCode(code any) string {
	switch c := code.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return fmt.Sprintf("%d", int64(c))
	default:
		return fmt.Sprint(c)
	}
}
