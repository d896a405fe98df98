package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"testing"
	"time"
)

// ============================================================================
// 1. Classification of foreign errors
// ============================================================================

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "i/o timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	var decoded map[string]any
	syntaxErr := json.Unmarshal([]byte("{"), &decoded)
	typeErr := json.Unmarshal([]byte(`{"a":1}`), &struct{ A string }{})

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"canceled", context.Canceled, KindInternal},
		{"net timeout", &net.OpError{Op: "read", Net: "tcp", Err: timeoutNetErr{}}, KindTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.example.com"}, KindNetwork},
		{"url", &url.Error{Op: "Post", URL: "https://api.example.com", Err: fmt.Errorf("connection refused")}, KindNetwork},
		{"unexpected eof", io.ErrUnexpectedEOF, KindNetwork},
		{"json syntax", syntaxErr, KindSerialization},
		{"json type", typeErr, KindSerialization},
		{"unknown", fmt.Errorf("something odd"), KindInternal},
		{"failure", Auth("bad key"), KindAuth},
		{"wrapped failure", fmt.Errorf("outer: %w", NoSuchTool("x")), KindNoSuchTool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Kind() != tt.want {
				t.Errorf("Classify(%v).Kind() = %v, want %v", tt.err, got.Kind(), tt.want)
			}
			if !got.Code().Valid() {
				t.Errorf("Classify(%v).Code() = %q is not a known code", tt.err, got.Code())
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("Classify(nil) should return nil")
	}
}

func TestClassifyReturnsSameFailure(t *testing.T) {
	original := Tool("bash", "exit status 1")
	if Classify(fmt.Errorf("ctx: %w", original)) != original {
		t.Error("Classify should return the failure from the chain unchanged")
	}
}

func TestClassifyKeepsCause(t *testing.T) {
	cause := fmt.Errorf("weird")
	got := Classify(cause)
	if !errors.Is(got, cause) {
		t.Error("Internal from Classify should unwrap to the original error")
	}
	if got.Message() != "weird" {
		t.Errorf("Message() = %q, want %q", got.Message(), "weird")
	}
}

// ============================================================================
// 2. Wrapping
// ============================================================================

func TestWrap(t *testing.T) {
	err := Wrap(RateLimitAfter(3*time.Second), "sending chat request")
	if err.Error() != "sending chat request: rate limit exceeded, retry after 3s" {
		t.Errorf("Error() = %q", err.Error())
	}
	if Code(err) != ErrCodeRateLimit {
		t.Errorf("Code() = %v, want %v", Code(err), ErrCodeRateLimit)
	}
	if d, ok := RetryAfter(err); !ok || d != 3*time.Second {
		t.Errorf("RetryAfter() = %v, %v", d, ok)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapClassifiesForeign(t *testing.T) {
	err := Wrapf(context.DeadlineExceeded, "calling %s", "anthropic")
	if !IsKind(err, KindTimeout) {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindTimeout)
	}
}

func TestWrapKeepsChain(t *testing.T) {
	sentinel := errors.New("sentinel")
	inner := fmt.Errorf("reading body: %w", fmt.Errorf("%w: %w", sentinel, Auth("bad key")))

	err := Wrap(inner, "outer")
	if want := "outer: reading body: sentinel: authentication failed: bad key"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, sentinel) {
		t.Error("Wrap should keep sentinels of the wrapped chain")
	}
	if !IsKind(err, KindAuth) {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindAuth)
	}
}

func TestNilFailureInChain(t *testing.T) {
	err := fmt.Errorf("x: %w", (*Error)(nil))

	if got := Code(err); got != ErrCodeInternal {
		t.Errorf("Code() = %v, want %v", got, ErrCodeInternal)
	}
	if got := KindOf(err); got != KindInternal {
		t.Errorf("KindOf() = %v, want %v", got, KindInternal)
	}
	if IsRetryable(err) {
		t.Error("a nil failure should not be retryable")
	}
	if _, ok := As(err); ok {
		t.Error("As should not report a nil failure")
	}

	var nilFailure *Error
	if nilFailure.Code() != ErrCodeInternal || nilFailure.Retryable() {
		t.Errorf("nil *Error reports %v, retryable %v", nilFailure.Code(), nilFailure.Retryable())
	}
	if _, ok := nilFailure.RetryAfter(); ok {
		t.Error("nil *Error should have no retry delay")
	}
	_ = nilFailure.Error()
	_ = nilFailure.Envelope()
}

// ============================================================================
// 3. Inspection helpers
// ============================================================================

func TestIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", InvalidToolInput("x", "r"))
	if !Is(err, ErrCodeTool) {
		t.Error("Is should match the tool code through the chain")
	}
	if Is(err, ErrCodeValidation) {
		t.Error("Is should not match a different code")
	}
	if Is(fmt.Errorf("plain"), ErrCodeInternal) {
		t.Error("Is should not match errors that carry no failure")
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", SchemaValidation("m"))
	if !IsKind(err, KindSchemaValidation) {
		t.Error("IsKind should match the kind through the chain")
	}
	if IsKind(err, KindValidation) {
		t.Error("IsKind should distinguish kinds that share a code")
	}
}

func TestCategoryHelpers(t *testing.T) {
	if !IsTransient(Network(fmt.Errorf("x"))) {
		t.Error("Network should be transient")
	}
	if !IsCallerFault(Config("x")) {
		t.Error("Config should be a caller fault")
	}
	if !IsProviderFault(Auth("x")) {
		t.Error("Auth should be a provider fault")
	}
	if !IsInternal(Stream("x")) {
		t.Error("Stream should be internal")
	}
	if IsTransient(fmt.Errorf("plain")) {
		t.Error("plain errors carry no category")
	}
}

func TestCodeOfForeignError(t *testing.T) {
	if Code(fmt.Errorf("plain")) != ErrCodeInternal {
		t.Error("unknown errors should report INTERNAL_ERROR")
	}
	if Code(nil) != "" {
		t.Error("Code(nil) should be empty")
	}
	if Category(context.DeadlineExceeded) != CategoryTransient {
		t.Error("deadline should be transient")
	}
	if KindOf(nil) != "" {
		t.Error("KindOf(nil) should be empty")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(context.DeadlineExceeded) {
		t.Error("deadline should be retryable")
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
	if _, ok := RetryAfter(nil); ok {
		t.Error("nil should have no retry delay")
	}
}

func TestAs(t *testing.T) {
	original := Stream("cut")
	got, ok := As(fmt.Errorf("wrap: %w", original))
	if !ok || got != original {
		t.Error("As should extract the failure")
	}
	if _, ok := As(fmt.Errorf("plain")); ok {
		t.Error("As should fail for plain errors")
	}
}

func TestGetMetadata(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Internal("x", WithMetadata("k", "v")))
	if GetMetadata(err)["k"] != "v" {
		t.Error("GetMetadata should read through the chain")
	}
	if GetMetadata(fmt.Errorf("plain")) != nil {
		t.Error("GetMetadata should be nil for plain errors")
	}
}

// ============================================================================
// 4. Chains and collections
// ============================================================================

func TestCause(t *testing.T) {
	root := fmt.Errorf("root")
	err := Wrap(Network(root), "fetching")
	if Cause(err) != root {
		t.Errorf("Cause() = %v, want root", Cause(err))
	}
	if Cause(root) != root {
		t.Error("Cause of an unwrapped error should be itself")
	}
}

func TestJoinAndCollect(t *testing.T) {
	if Join(nil, nil) != nil {
		t.Error("Join of nils should be nil")
	}
	errs := Collect(nil, Auth("a"), nil, RateLimit())
	if len(errs) != 2 {
		t.Fatalf("Collect() returned %d errors, want 2", len(errs))
	}
	joined := Join(errs...)
	if !Is(joined, ErrCodeAuth) {
		t.Error("joined error should contain the auth failure")
	}
}

func TestRetryableCollections(t *testing.T) {
	mixed := []error{Auth("a"), Timeout(time.Second), RateLimit()}

	if got := FirstRetryable(mixed); !IsKind(got, KindTimeout) {
		t.Errorf("FirstRetryable() = %v, want the timeout", got)
	}
	if FirstRetryable([]error{Auth("a")}) != nil {
		t.Error("FirstRetryable should be nil when none is retryable")
	}
	if AllRetryable(mixed) {
		t.Error("AllRetryable should be false for mixed slice")
	}
	if !AllRetryable(nil) {
		t.Error("AllRetryable should be true for empty slice")
	}
	if !AnyRetryable(mixed) {
		t.Error("AnyRetryable should be true for mixed slice")
	}
	if AnyRetryable(nil) {
		t.Error("AnyRetryable should be false for empty slice")
	}
}

// ============================================================================
// 5. Panic recovery
// ============================================================================

func TestRecoverPanic(t *testing.T) {
	tests := []struct {
		name      string
		value     interface{}
		wantMsg   string
		wantValue string
	}{
		{"error", fmt.Errorf("boom"), "panic: boom", "*errors.errorString"},
		{"string", "bad state", "panic: bad state", "string"},
		{"int", 42, "panic: 42", "int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RecoverPanic(tt.value)
			if err.Kind() != KindInternal {
				t.Errorf("Kind() = %v, want %v", err.Kind(), KindInternal)
			}
			if err.Message() != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", err.Message(), tt.wantMsg)
			}
			if err.Metadata()["panic_value"] != tt.wantValue {
				t.Errorf("panic_value = %q, want %q", err.Metadata()["panic_value"], tt.wantValue)
			}
		})
	}
}

func TestRecoverPanicWithNil(t *testing.T) {
	if RecoverPanic(nil) != nil {
		t.Error("RecoverPanic(nil) should return nil")
	}
}

func TestRecoverPanicIntegration(t *testing.T) {
	run := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = RecoverPanic(r)
			}
		}()
		panic("unreachable branch")
	}

	err := run()
	if Code(err) != ErrCodeInternal {
		t.Errorf("Code() = %v, want %v", Code(err), ErrCodeInternal)
	}
}
