package transport

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/vinayprograms/aisdk/errors"
	"github.com/vinayprograms/aisdk/llm"
)

// maxErrorBody bounds how much of an error response ReadError reads.
const maxErrorBody = 64 * 1024

// HTTPStatus returns the HTTP status used to report a failure code.
func HTTPStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeAuth:
		return http.StatusUnauthorized
	case errors.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeTool:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeNetwork, errors.ErrCodeProvider:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON body written by WriteError.
type ErrorBody struct {
	Error errors.Envelope `json:"error"`
}

// WriteError writes err as a JSON error response. Retry advice is also sent
// as a Retry-After header in whole seconds, rounded up.
func WriteError(w http.ResponseWriter, err error) {
	failure := errors.Classify(err)
	if failure == nil {
		failure = errors.Internal("no error to report")
	}

	writeFailure(w, HTTPStatus(failure.Code()), failure)
}

func writeFailure(w http.ResponseWriter, status int, failure *errors.Error) {
	if d, ok := failure.RetryAfter(); ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorBody{Error: failure.Envelope()})
}

// ReadError turns a non-2xx response into a failure. Bodies written by
// WriteError decode to the failure they carry; anything else is classified
// from the status, headers, and body as a fault of provider. The body is
// read but not closed. Returns nil for 2xx responses.
func ReadError(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return errors.Network(err)
	}

	if gjson.GetBytes(body, "error.code").Exists() {
		var payload ErrorBody
		if json.Unmarshal(body, &payload) == nil && payload.Error.Code.Valid() {
			return errors.FromEnvelope(payload.Error)
		}
	}

	message := gjson.GetBytes(body, "error.message").String()
	if message == "" {
		message = gjson.GetBytes(body, "message").String()
	}
	if message == "" && !gjson.ValidBytes(body) {
		message = string(body)
	}
	code := gjson.GetBytes(body, "error.type").String()
	if code == "" {
		code = gjson.GetBytes(body, "error.code").String()
	}
	return llm.FromStatus(provider, resp.StatusCode, code, message, resp.Header, nil)
}
