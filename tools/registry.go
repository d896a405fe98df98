// Package tools provides the tool registry. Execute is the single place
// where tool calls are checked against their schemas and where whatever a
// tool returns or raises is turned into a failure.
package tools

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"github.com/vinayprograms/aisdk/errors"
	"github.com/vinayprograms/aisdk/logging"
	"github.com/vinayprograms/aisdk/schema"
	"github.com/vinayprograms/aisdk/telemetry"
)

// Tool represents an executable tool.
type Tool interface {
	// Name returns the tool name.
	Name() string
	// Description returns a description for the LLM.
	Description() string
	// Parameters returns the JSON schema for parameters.
	Parameters() map[string]interface{}
	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ToolDefinition is the LLM-facing tool definition.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// compiled caches a tool's parameter validator, or the reason it has none.
type compiled struct {
	validator *schema.Validator
	err       error
}

// Registry holds all registered tools. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	validators map[string]compiled
	strict     bool
	generation uint64 // bumped whenever cached validators go stale
	logger     *logging.Logger
	tracer     *telemetry.Tracer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]Tool),
		validators: make(map[string]compiled),
	}
}

// SetLogger sets the logger used for tool calls and results.
func (r *Registry) SetLogger(l *logging.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = l
}

// SetTracer sets the tracer used for tool spans. Without one the global
// tracer is used.
func (r *Registry) SetTracer(t *telemetry.Tracer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracer = t
}

// SetStrictSchema makes object schemas reject properties they do not
// declare, unless the schema says otherwise.
func (r *Registry) SetStrictSchema(strict bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strict = strict
	r.validators = make(map[string]compiled)
	r.generation++
}

// Register adds a tool to the registry, replacing any tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	delete(r.validators, t.Name())
	r.generation++
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has returns true if the registry has a tool with the given name.
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns LLM-facing definitions sorted by name.
func (r *Registry) Definitions() []ToolDefinition {
	names := r.Names()
	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		t := r.Get(name)
		if t == nil {
			continue
		}
		defs = append(defs, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Execute runs the named tool. Whatever goes wrong comes back as a failure:
//
//   - unknown tool: NoSuchTool
//   - arguments rejected by the tool's schema: InvalidToolInput
//   - a schema that does not compile: Config
//   - a Validation failure from the tool (see Args): InvalidToolInput
//   - any other failure from the tool: returned unchanged
//   - the context deadline passing: Timeout with the time spent
//   - a panic: Internal
//   - any other error: Tool
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (result interface{}, err error) {
	tracer := r.currentTracer()
	ctx, span := tracer.StartToolSpan(ctx, name)
	defer func() {
		tracer.EndToolSpan(span, telemetry.ToolSpanOptions{Tool: name, Args: args, Result: result}, err)
	}()

	t := r.Get(name)
	if t == nil {
		return nil, errors.NoSuchTool(name)
	}
	if err := r.checkArgs(t, args); err != nil {
		return nil, err
	}

	logger := r.currentLogger()
	if logger != nil {
		logger.ToolCall(name, args)
	}
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = errors.RecoverPanic(rec)
			if failure, ok := errors.As(err); ok {
				err = errors.Internal(failure.Message(), errors.WithCause(failure.Unwrap()),
					errors.WithMetadataMap(failure.Metadata()), errors.WithMetadata("tool", name))
			}
		}
		if logger != nil {
			logger.ToolResult(name, time.Since(start), err)
		}
	}()

	result, err = t.Execute(ctx, args)
	if err != nil {
		return nil, toolFailure(ctx, name, time.Since(start), err)
	}
	return result, nil
}

func (r *Registry) currentTracer() *telemetry.Tracer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.tracer == nil {
		return telemetry.GetTracer()
	}
	return r.tracer
}

func (r *Registry) currentLogger() *logging.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

func (r *Registry) checkArgs(t Tool, args map[string]interface{}) error {
	v, err := r.validator(t)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := v.Validate(args); err != nil {
		if failure, ok := errors.As(err); ok && failure.Kind() == errors.KindSchemaValidation {
			return errors.InvalidToolInput(t.Name(), failure.Message(),
				errors.WithCause(failure), errors.WithMetadataMap(failure.Metadata()))
		}
		return err
	}
	return nil
}

// validator compiles the tool's parameter schema on first use. Compilation
// runs outside the lock; a result compiled under settings that changed
// meanwhile is discarded and compiled again.
func (r *Registry) validator(t Tool) (*schema.Validator, error) {
	name := t.Name()
	for {
		r.mu.RLock()
		c, ok := r.validators[name]
		strict := r.strict
		generation := r.generation
		r.mu.RUnlock()
		if ok {
			return c.validator, c.err
		}

		c = compile(name, t.Parameters(), strict)

		r.mu.Lock()
		if r.generation == generation {
			r.validators[name] = c
			r.mu.Unlock()
			return c.validator, c.err
		}
		r.mu.Unlock()
	}
}

func compile(name string, params map[string]interface{}, strict bool) compiled {
	var c compiled
	if len(params) == 0 {
		return c
	}
	if strict {
		params = strictCopy(params)
	}
	v, err := schema.Compile(params)
	if err != nil {
		c.err = errors.Configf("tool %q has an invalid parameter schema: %s", name, errors.Classify(err).Message())
	} else {
		c.validator = v
	}
	return c
}

// strictCopy returns params with additionalProperties disabled at the top
// level when the schema describes an object and leaves it unset.
func strictCopy(params map[string]interface{}) map[string]interface{} {
	if params["type"] != "object" {
		return params
	}
	if _, set := params["additionalProperties"]; set {
		return params
	}
	out := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["additionalProperties"] = false
	return out
}

// toolFailure maps an error returned by a tool.
func toolFailure(ctx context.Context, name string, elapsed time.Duration, err error) error {
	if failure, ok := errors.As(err); ok {
		if failure.Kind() == errors.KindValidation {
			return errors.InvalidToolInput(name, failure.Message(), errors.WithCause(err))
		}
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Timeout(elapsed, errors.WithCause(err), errors.WithMetadata("tool", name))
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.Classify(err)
	}
	return errors.Tool(name, err.Error(), errors.WithCause(err))
}
