package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment so a project session, a channel
// connection or an assistant task only has to set them once.
type LogFields struct {
	ProjectID  *string // Project the session or task belongs to
	ChannelKey *string // Realtime channel key
	MessageID  *string // Redis stream message ID or timeline entry ID
	SenderID   *string // Participant that sent the message being handled
	Directive  *string // Recognized directive, e.g. "react_app"
	Component  string  // Component name (OTel semantic convention style, e.g., "codex.treesync")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.ProjectID != nil {
		result.ProjectID = new.ProjectID
	}
	if new.ChannelKey != nil {
		result.ChannelKey = new.ChannelKey
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.SenderID != nil {
		result.SenderID = new.SenderID
	}
	if new.Directive != nil {
		result.Directive = new.Directive
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{ProjectID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens s to at most maxLen bytes, appending "..." if truncated.
// Useful for logging message bodies and LLM output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
