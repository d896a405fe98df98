package transport

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/aisdk/errors"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.ErrCodeAuth, http.StatusUnauthorized},
		{errors.ErrCodeRateLimit, http.StatusTooManyRequests},
		{errors.ErrCodeValidation, http.StatusBadRequest},
		{errors.ErrCodeTool, http.StatusUnprocessableEntity},
		{errors.ErrCodeNetwork, http.StatusBadGateway},
		{errors.ErrCodeProvider, http.StatusBadGateway},
		{errors.ErrCodeTimeout, http.StatusGatewayTimeout},
		{errors.ErrCodeSerialization, http.StatusInternalServerError},
		{errors.ErrCodeInternal, http.StatusInternalServerError},
		{errors.ErrCodeStream, http.StatusInternalServerError},
		{errors.ErrCodeConfig, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.code); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestWriteError_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.RateLimitAfter(1500*time.Millisecond))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want rounded up to 2", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	failure, ok := errors.As(ReadError("anthropic", rec.Result()))
	if !ok || failure.Kind() != errors.KindRateLimit {
		t.Fatalf("ReadError() = %v, want rate limit", failure)
	}
	if d, ok := failure.RetryAfter(); !ok || d != 1500*time.Millisecond {
		t.Errorf("RetryAfter() = %v, %v; the envelope keeps millisecond precision", d, ok)
	}
}

func TestWriteError_NoRetryAdvice(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.Tool("bash", "exit status 1"))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "" {
		t.Error("non-retryable failures should not advertise Retry-After")
	}
	if !strings.Contains(rec.Body.String(), `"code":"TOOL_ERROR"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestWriteError_PlainAndNil(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("disk full"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("plain error: status = %d, want 500", rec.Code)
	}

	rec = httptest.NewRecorder()
	WriteError(rec, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("nil error: status = %d, want 500", rec.Code)
	}
}

func TestWriteError_RoundTripKeepsFields(t *testing.T) {
	original := errors.InvalidToolInput("grep", "pattern required",
		errors.WithMetadata("field", "pattern"))

	rec := httptest.NewRecorder()
	WriteError(rec, original)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}

	failure, ok := errors.As(ReadError("aisdk", rec.Result()))
	if !ok {
		t.Fatal("expected a failure")
	}
	if failure.Kind() != errors.KindInvalidToolInput || failure.ToolName() != "grep" {
		t.Errorf("failure = %v (kind %v)", failure, failure.Kind())
	}
	if failure.Metadata()["field"] != "pattern" {
		t.Errorf("metadata = %v", failure.Metadata())
	}
}

func response(status int, header http.Header, body string) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestReadError_ProviderBodies(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		header   http.Header
		body     string
		want     errors.Kind
		contains string
	}{
		{
			name:     "anthropic overloaded",
			status:   529,
			body:     `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			want:     errors.KindRateLimit,
			contains: "rate limit",
		},
		{
			name:     "openai bad key",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			want:     errors.KindAuth,
			contains: "Incorrect API key provided",
		},
		{
			name:     "openai quota",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"You exceeded your current quota","code":"insufficient_quota"}}`,
			want:     errors.KindProvider,
			contains: "current quota",
		},
		{
			name:     "top-level message",
			status:   http.StatusBadRequest,
			body:     `{"message":"model not found"}`,
			want:     errors.KindProvider,
			contains: "model not found",
		},
		{
			name:     "html from a proxy",
			status:   http.StatusBadGateway,
			body:     `<html>bad gateway</html>`,
			want:     errors.KindNetwork,
			contains: "bad gateway",
		},
		{
			name:   "gateway timeout",
			status: http.StatusGatewayTimeout,
			want:   errors.KindTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ReadError("test", response(tt.status, tt.header, tt.body))
			if !errors.IsKind(err, tt.want) {
				t.Fatalf("ReadError() = %v, want %v", err, tt.want)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Error() = %q, want it to contain %q", err.Error(), tt.contains)
			}
		})
	}
}

func TestReadError_RetryAfterHeader(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "3")

	failure, ok := errors.As(ReadError("openai", response(http.StatusTooManyRequests, header, `{}`)))
	if !ok || failure.Kind() != errors.KindRateLimit {
		t.Fatalf("ReadError() = %v, want rate limit", failure)
	}
	if d, ok := failure.RetryAfter(); !ok || d != 3*time.Second {
		t.Errorf("RetryAfter() = %v, %v", d, ok)
	}
}

func TestReadError_Success(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusAccepted, http.StatusNoContent} {
		if err := ReadError("test", response(status, nil, "")); err != nil {
			t.Errorf("ReadError(%d) = %v, want nil", status, err)
		}
	}
}

func TestReadError_BodyReadFails(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusInternalServerError,
		Header:     http.Header{},
		Body:       io.NopCloser(&erroringReader{}),
	}
	if err := ReadError("test", resp); !errors.IsKind(err, errors.KindNetwork) {
		t.Errorf("ReadError() = %v, want network", err)
	}
}
