package logger

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries an inbound correlation id on HTTP requests.
const RequestIDHeader = "X-Request-ID"

// correlationIDKey marks the context storage slot for the correlation identifier.
type correlationIDKey struct{}

// CorrelationIDFromContext returns the correlation identifier stored in ctx, or an empty string when absent.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}

	return ""
}

// WithCorrelationID stores id in ctx, generating one when id is empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// Middleware injects a correlation identifier into the request context
// before delegating to the next handler, reusing the inbound request id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithCorrelationID(r.Context(), r.Header.Get(RequestIDHeader))
		w.Header().Set(RequestIDHeader, CorrelationIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
