// Package llm converts faults raised by LLM provider SDKs into failures.
// Each supported SDK error type is recognised through the error chain and
// reduced to an HTTP status, a provider error code and any retry guidance the
// provider sent, which FromStatus then maps onto a single failure kind.
package llm

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vinayprograms/aisdk/errors"
)

// Provider names used when the caller does not supply one.
const (
	ProviderAnthropic    = "anthropic"
	ProviderOpenAI       = "openai"
	ProviderOpenAICompat = "openai-compat"
	ProviderGoogle       = "google"
	ProviderBedrock      = "bedrock"
)

// StatusOverloaded is the non-standard status Anthropic returns when the API
// is temporarily overloaded.
const StatusOverloaded = 529

// billingCodes are provider codes that arrive with a 429 but will not clear
// by waiting.
var billingCodes = map[string]bool{
	"insufficient_quota":         true,
	"billing_error":              true,
	"billing_hard_limit_reached": true,
	"insufficient_funds":         true,
}

// classifiers recognise one SDK's error type each and return nil for
// anything else.
var classifiers = []func(provider string, err error) *errors.Error{
	fromAnthropic,
	fromOpenAI,
	fromOpenAICompat,
	fromGoogleAPI,
	fromBlocked,
	fromSmithy,
	fromGRPC,
}

// Classify converts a fault raised while talking to provider into a failure.
// Failures already in the chain are returned unchanged, SDK errors are mapped
// by status and provider code, and everything else goes through
// errors.Classify with a last look at the message text. Classify(_, nil)
// returns nil.
func Classify(provider string, err error) *errors.Error {
	if err == nil {
		return nil
	}
	if failure, ok := errors.As(err); ok {
		return failure
	}
	for _, classify := range classifiers {
		if failure := classify(provider, err); failure != nil {
			return failure
		}
	}

	failure := errors.Classify(err)
	if failure.Kind() == errors.KindInternal {
		if guessed := fromMessage(providerName(provider, "unknown"), err); guessed != nil {
			return guessed
		}
	}
	return failure
}

// fault is a provider response reduced to what the mapping needs.
type fault struct {
	provider   string
	status     int
	code       string
	message    string
	requestID  string
	retryAfter time.Duration
	hasDelay   bool
	cause      error
}

// FromStatus maps an HTTP error response from provider onto a failure:
//
//	401, 403            Auth
//	429, 503, 529       RateLimit, with the Retry-After delay when present
//	408, 504            Timeout
//	502                 Network
//	anything else       Provider, carrying code
//
// A 429 whose code names a billing or quota condition is a Provider failure
// since waiting will not clear it.
func FromStatus(provider string, status int, code, message string, header http.Header, cause error) *errors.Error {
	f := fault{
		provider:  provider,
		status:    status,
		code:      code,
		message:   message,
		requestID: requestID(header),
		cause:     cause,
	}
	f.retryAfter, f.hasDelay = ParseRetryAfter(header)
	return f.failure()
}

func (f fault) failure() *errors.Error {
	message := f.message
	if message == "" {
		message = http.StatusText(f.status)
	}
	if message == "" {
		message = fmt.Sprintf("status %d", f.status)
	}

	opts := []errors.Option{errors.WithCause(f.cause)}
	if f.status > 0 {
		opts = append(opts, errors.WithMetadata("status", strconv.Itoa(f.status)))
	}
	if f.requestID != "" {
		opts = append(opts, errors.WithMetadata("request_id", f.requestID))
	}

	switch f.status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Auth(f.provider+": "+message, opts...)
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, StatusOverloaded:
		if f.status == http.StatusTooManyRequests && billingCodes[f.code] {
			return errors.ProviderWithCode(f.provider, f.code, message, opts...)
		}
		if f.hasDelay {
			return errors.RateLimitAfter(f.retryAfter, opts...)
		}
		return errors.RateLimit(opts...)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return errors.Timeout(0, opts...)
	case http.StatusBadGateway:
		return errors.Network(&statusError{provider: f.provider, status: f.status, message: message, cause: f.cause}, opts...)
	default:
		return errors.ProviderWithCode(f.provider, f.code, message, opts...)
	}
}

// statusError carries a gateway response as the cause of a Network failure.
type statusError struct {
	provider string
	status   int
	message  string
	cause    error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.provider, e.status, e.message)
}

func (e *statusError) Unwrap() error {
	return e.cause
}

// now is replaced in tests.
var now = time.Now

// ParseRetryAfter reads the provider's suggested delay from response
// headers. retry-after-ms takes precedence over Retry-After, which may be
// delta-seconds or an HTTP date. Missing, malformed, negative or past values
// report no delay.
func ParseRetryAfter(header http.Header) (time.Duration, bool) {
	if v := strings.TrimSpace(header.Get("retry-after-ms")); v != "" {
		if d, ok := parseDelay(v, time.Millisecond); ok {
			return d, true
		}
	}

	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return parseDelay(v, time.Second)
	}
	if at, err := http.ParseTime(v); err == nil {
		d := at.Sub(now())
		if d < 0 {
			return 0, false
		}
		return d, true
	}
	return 0, false
}

// parseDelay reads a count of unit. Non-finite, negative and
// out-of-range counts report no delay.
func parseDelay(v string, unit time.Duration) (time.Duration, bool) {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0, false
	}
	if n >= float64(math.MaxInt64)/float64(unit) {
		return 0, false
	}
	return time.Duration(n * float64(unit)), true
}

func requestID(header http.Header) string {
	for _, key := range []string{"request-id", "x-request-id", "x-amzn-requestid"} {
		if v := header.Get(key); v != "" {
			return v
		}
	}
	return ""
}

func responseHeader(resp *http.Response) http.Header {
	if resp == nil {
		return nil
	}
	return resp.Header
}

func providerName(provider, fallback string) string {
	if provider != "" {
		return provider
	}
	return fallback
}

// fromMessage guesses from error text for faults that reach us without a
// typed SDK error, such as proxies that flatten responses into strings.
func fromMessage(provider string, err error) *errors.Error {
	text := strings.ToLower(err.Error())
	switch {
	case isBillingMessage(text):
		return errors.ProviderWithCode(provider, "billing", err.Error(), errors.WithCause(err))
	case containsAny(text, "rate limit", "too many requests", "429", "overloaded", "capacity",
		"503", "service unavailable", "temporarily unavailable"):
		return errors.RateLimit(errors.WithCause(err))
	case containsAny(text, "504", "gateway timeout"):
		return errors.Timeout(0, errors.WithCause(err))
	case containsAny(text, "502", "bad gateway"):
		return errors.Network(err)
	case containsAny(text, "500", "internal server error"):
		return errors.Provider(provider, err.Error(), errors.WithCause(err))
	}
	return nil
}

func isBillingMessage(text string) bool {
	return containsAny(text, "billing", "payment", "credits", "quota exceeded",
		"insufficient", "402", "subscription")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
