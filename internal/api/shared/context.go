package shared

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfd/internal/service/auth"
	"go.opentelemetry.io/otel/trace"
)

// ContextKey is the type of request-scoped values set by the middleware.
type ContextKey string

const (
	// PrincipalContextKey holds the authenticated auth.Principal.
	PrincipalContextKey ContextKey = "principal"

	// TraceIDKey holds the request trace ID.
	TraceIDKey ContextKey = "traceID"
)

// SetTraceID stores a trace ID in the context. When the request already
// carries an OpenTelemetry span its trace ID is reused so logs and spans
// correlate; otherwise a random 32 character ID is generated.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceIDFor(ctx))
}

// GetTraceID returns the trace ID stored in ctx, or "".
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

func traceIDFor(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// WithPrincipal stores the authenticated caller in ctx.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// PrincipalFrom returns the authenticated caller stored in ctx.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(auth.Principal)
	if !ok || p.Name == "" {
		return auth.Principal{}, false
	}
	return p, true
}
