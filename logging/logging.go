// Package logging provides real-time log output for SDK operations.
// Failures are reduced to their wire code and retry advice so that log lines
// can be correlated with what clients received.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/aisdk/errors"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger writes leveled key=value lines to a writer.
type Logger struct {
	mu        *sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	traceID   string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		mu:       &sync.Mutex{},
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// ParseLevel converts a level name to a Level. Unknown names are a Config failure.
func ParseLevel(name string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := levelPriority[level]; !ok {
		return "", errors.Configf("unknown log level %q", name)
	}
	return level, nil
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		mu:        l.mu,
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		traceID:   l.traceID,
	}
}

// WithTraceID returns a new logger with the given trace ID.
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{
		mu:        l.mu,
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		traceID:   traceID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs in key order.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	merged := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		for k, v := range fields[0] {
			merged[k] = v
		}
	}
	if l.traceID != "" {
		merged["trace_id"] = l.traceID
	}
	fieldStr := formatFields(merged)

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// FailureFields reduces err to the fields every failure log line carries.
func FailureFields(err error) map[string]interface{} {
	failure := errors.Classify(err)
	if failure == nil {
		return map[string]interface{}{}
	}
	fields := map[string]interface{}{
		"code":      failure.Code(),
		"kind":      failure.Kind(),
		"retryable": failure.Retryable(),
		"error":     fmt.Sprintf("%q", err.Error()),
	}
	if d, ok := failure.RetryAfter(); ok {
		fields["retry_after"] = d.String()
	}
	if failure.ToolName() != "" {
		fields["tool"] = failure.ToolName()
	}
	if failure.Provider() != "" {
		fields["provider"] = failure.Provider()
	}
	return fields
}

// Failure logs err with its wire code and retry advice. Caller and transient
// faults log at WARN; provider and internal faults at ERROR.
func (l *Logger) Failure(msg string, err error) {
	if err == nil {
		return
	}
	fields := FailureFields(err)
	switch errors.Category(err) {
	case errors.CategoryCaller, errors.CategoryTransient:
		l.Warn(msg, fields)
	default:
		l.Error(msg, fields)
	}
}

// ToolCall logs a tool invocation.
func (l *Logger) ToolCall(tool string, args map[string]interface{}) {
	l.Debug("tool_call", map[string]interface{}{
		"tool": tool,
		"args": len(args),
	})
}

// ToolResult logs a tool result. Failures carry their wire code.
func (l *Logger) ToolResult(tool string, duration time.Duration, err error) {
	if err != nil {
		fields := FailureFields(err)
		fields["tool"] = tool
		fields["duration"] = duration.String()
		l.Error("tool_error", fields)
		return
	}
	l.Debug("tool_result", map[string]interface{}{
		"tool":     tool,
		"duration": duration.String(),
	})
}

// ConfigLoaded logs which configuration file was applied.
func (l *Logger) ConfigLoaded(path, provider, model string) {
	l.Info("config_loaded", map[string]interface{}{
		"path":     path,
		"provider": provider,
		"model":    model,
	})
}
