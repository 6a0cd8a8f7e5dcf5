package httpx

import (
	"context"
	"net/http"

	"nextpage/internal/logging"
)

// RequestIDFrom retrieves the request ID from the request context.
func RequestIDFrom(r *http.Request) string {
	return logging.RequestIDFromContext(r.Context())
}

// ContextWithRequestID returns a new context carrying the request ID. Loggers
// obtained through logging.Ctx pick it up.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return logging.ContextWithRequestID(ctx, requestID)
}
