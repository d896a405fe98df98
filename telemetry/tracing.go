// OpenTelemetry tracing support for provider calls and tool execution.
package telemetry

import (
	"context"
	"encoding/json"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vinayprograms/aisdk/errors"
)

// Span attribute keys for failures.
const (
	AttrErrorCode       = attribute.Key("error.code")
	AttrErrorKind       = attribute.Key("error.kind")
	AttrErrorCategory   = attribute.Key("error.category")
	AttrErrorRetryable  = attribute.Key("error.retryable")
	AttrErrorRetryAfter = attribute.Key("error.retry_after_ms")
	AttrErrorProvider   = attribute.Key("error.provider")
	AttrErrorProvCode   = attribute.Key("error.provider_code")
	AttrErrorTool       = attribute.Key("error.tool")
)

// Tracer wraps OpenTelemetry tracing with SDK-specific helpers.
type Tracer struct {
	tracer trace.Tracer
	debug  bool // When true, include content in span attributes
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a tracer from the global OpenTelemetry provider.
func NewTracer(name string, debug bool) *Tracer {
	return &Tracer{
		tracer: otel.Tracer(name),
		debug:  debug,
	}
}

// NewTracerFrom creates a tracer from a specific provider.
func NewTracerFrom(tp trace.TracerProvider, name string, debug bool) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(name),
		debug:  debug,
	}
}

// SetDebug enables or disables debug mode (content in spans).
func (t *Tracer) SetDebug(debug bool) {
	t.debug = debug
}

// Debug returns whether debug mode is enabled.
func (t *Tracer) Debug() bool {
	return t.debug
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// --- Failures ---

// FailureAttributes returns the span attributes describing err. A nil error
// has none.
func FailureAttributes(err error) []attribute.KeyValue {
	failure := errors.Classify(err)
	if failure == nil {
		return nil
	}

	attrs := []attribute.KeyValue{
		AttrErrorCode.String(failure.Code().String()),
		AttrErrorKind.String(failure.Kind().String()),
		AttrErrorCategory.String(failure.Category().String()),
		AttrErrorRetryable.Bool(failure.Retryable()),
	}
	if d, ok := failure.RetryAfter(); ok {
		attrs = append(attrs, AttrErrorRetryAfter.Int64(d.Milliseconds()))
	}
	if p := failure.Provider(); p != "" {
		attrs = append(attrs, AttrErrorProvider.String(p))
	}
	if c := failure.ProviderCode(); c != "" {
		attrs = append(attrs, AttrErrorProvCode.String(c))
	}
	if name := failure.ToolName(); name != "" {
		attrs = append(attrs, AttrErrorTool.String(name))
	}
	return attrs
}

// RecordFailure marks span as failed with err's classification. A nil
// error marks it Ok.
func RecordFailure(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	failure := errors.Classify(err)
	span.RecordError(failure, trace.WithAttributes(AttrErrorCode.String(failure.Code().String())))
	span.SetAttributes(FailureAttributes(failure)...)
	span.SetStatus(codes.Error, failure.Error())
}

// --- LLM Spans ---

// LLMSpanOptions contains options for provider call spans.
type LLMSpanOptions struct {
	Model     string
	Provider  string
	TokensIn  int
	TokensOut int
	Prompt    string // Only included if debug=true
	Response  string // Only included if debug=true
}

// StartLLMSpan starts a span for a provider call.
func (t *Tracer) StartLLMSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
}

// EndLLMSpan ends a provider call span. Pass the failure returned by
// llm.Classify so the span carries its code and retry advice.
func (t *Tracer) EndLLMSpan(span trace.Span, opts LLMSpanOptions, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("llm.model", opts.Model),
		attribute.String("llm.provider", opts.Provider),
		attribute.Int("llm.tokens.input", opts.TokensIn),
		attribute.Int("llm.tokens.output", opts.TokensOut),
	}

	if t.debug {
		if opts.Prompt != "" {
			attrs = append(attrs, attribute.String("llm.prompt", truncate(opts.Prompt, 4000)))
		}
		if opts.Response != "" {
			attrs = append(attrs, attribute.String("llm.response", truncate(opts.Response, 4000)))
		}
	}

	span.SetAttributes(attrs...)
	RecordFailure(span, err)
	span.End()
}

// --- Tool Spans ---

// ToolSpanOptions contains options for tool execution spans.
type ToolSpanOptions struct {
	Tool   string
	Args   map[string]interface{} // Always included (agent-controlled)
	Result interface{}            // Only included if debug=true
}

// StartToolSpan starts a span for a tool execution.
func (t *Tracer) StartToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "tool."+toolName, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("tool.name", toolName))
	return ctx, span
}

// EndToolSpan ends a tool span with attributes.
func (t *Tracer) EndToolSpan(span trace.Span, opts ToolSpanOptions, err error) {
	// Args are always recorded (agent-controlled, not user data)
	for k, v := range opts.Args {
		span.SetAttributes(attribute.String("tool.arg."+k, truncateAny(v, 500)))
	}

	// Result only in debug mode (may contain user data)
	if t.debug && opts.Result != nil {
		span.SetAttributes(attribute.String("tool.result", truncateAny(opts.Result, 4000)))
	}

	RecordFailure(span, err)
	span.End()
}

// --- Helpers ---

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func truncateAny(v interface{}, maxLen int) string {
	if s, ok := v.(string); ok {
		return truncate(s, maxLen)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "<unencodable>"
	}
	return truncate(string(data), maxLen)
}
