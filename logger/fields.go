package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging.
// Use these constants instead of raw strings so logs stay queryable.
const (
	// Identity and context
	FieldResource    = "resource"     // resource name (queue key)
	FieldCommand     = "command"      // command description
	FieldMonitor     = "monitor"      // monitor name
	FieldExecutionID = "execution_id" // history record id
	FieldComponent   = "component"

	// Scheduling
	FieldDueAt    = "due_at"
	FieldNextIn   = "next_in"
	FieldTick     = "tick"
	FieldInterval = "interval"

	// Completion
	FieldHowDied    = "how_died"
	FieldExitCode   = "exit_code"
	FieldCoreDumped = "core_dumped"
	FieldTimedOut   = "timed_out"
	FieldFailures   = "consecutive_failures"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts
	FieldCount   = "count"
	FieldQueued  = "queued"
	FieldRunning = "running"

	// Files and network
	FieldFile = "file"
	FieldURL  = "url"

	// Segment glyph (꩜, ✿, ❀, ...)
	FieldSymbol = "symbol"
)

type contextKey string

const (
	resourceKey  contextKey = "logger_resource"
	componentKey contextKey = "logger_component"
)

// WithResource adds a resource name to the context for logging
func WithResource(ctx context.Context, resource string) context.Context {
	return context.WithValue(ctx, resourceKey, resource)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if resource, ok := ctx.Value(resourceKey).(string); ok && resource != "" {
		fields = append(fields, FieldResource, resource)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// LoggerFromContext returns the global logger with fields extracted from context.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return Logger
	}
	return Logger.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	r := reactor.New(cfg, logger.ComponentLogger("reactor"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
