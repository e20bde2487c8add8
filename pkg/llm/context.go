package llm

import (
	"context"
	"maps"

	"github.com/google/uuid"
)

type contextKey string

const (
	llmContextKey contextKey = "llm_context"
	requestIDKey  contextKey = "llm_request_id"
)

// WithContext returns a context carrying caller metadata that usage recording
// attaches to each record. The values are merged with any existing metadata.
func WithContext(ctx context.Context, values map[string]any) context.Context {
	existing := GetContext(ctx)
	if existing == nil {
		existing = make(map[string]any, len(values))
	}
	maps.Copy(existing, values)
	return context.WithValue(ctx, llmContextKey, existing)
}

// GetContext returns a copy of the caller metadata, or nil if none is set.
func GetContext(ctx context.Context) map[string]any {
	if c, ok := ctx.Value(llmContextKey).(map[string]any); ok {
		return maps.Clone(c)
	}
	return nil
}

// WithRequestID attaches a request id that is sent as the X-Request-Id header.
func WithRequestID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id, if one is attached.
func RequestIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(requestIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// ensureRequestID returns ctx with a request id, generating one when absent.
func ensureRequestID(ctx context.Context) (context.Context, uuid.UUID) {
	if id, ok := RequestIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.New()
	return WithRequestID(ctx, id), id
}
