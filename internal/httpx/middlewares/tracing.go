// Package middlewares contains chi middleware specific to this service.
package middlewares

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

// ContextKeyRequestID is the context key under which the chi request id is
// re-exported for handlers and the saga layer.
const ContextKeyRequestID contextKey = "request_id"

// AttachTracingMetadata copies the chi request id into a typed context key
// and records it on the active span, so a saga log line can be joined with
// both the HTTP access log and the distributed trace.
func AttachTracingMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())

		if span := trace.SpanFromContext(r.Context()); span.SpanContext().IsValid() {
			span.SetAttributes(attribute.String("http.request_id", requestID))
		}

		ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the request id attached by
// AttachTracingMetadata, or the empty string.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}
