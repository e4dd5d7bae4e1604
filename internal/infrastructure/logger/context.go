package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	scopeKey     contextKey = "scope"
)

// scope is the request identity attached to log lines
type scope struct {
	tenantID int64
	branchID int64
	userID   int64
}

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger if not found
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return zap.NewNop()
	}
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request id in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithScope stores the tenant, branch and user of the request in ctx.
// Zero values are omitted from log lines.
func WithScope(ctx context.Context, tenantID, branchID, userID int64) context.Context {
	return context.WithValue(ctx, scopeKey, scope{tenantID: tenantID, branchID: branchID, userID: userID})
}

// GetTenantID retrieves the tenant id stored by WithScope
func GetTenantID(ctx context.Context) int64 {
	return getScope(ctx).tenantID
}

// GetBranchID retrieves the branch id stored by WithScope
func GetBranchID(ctx context.Context) int64 {
	return getScope(ctx).branchID
}

// GetUserID retrieves the user id stored by WithScope
func GetUserID(ctx context.Context) int64 {
	return getScope(ctx).userID
}

func getScope(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey).(scope)
	return s
}

// Fields returns the correlation fields carried by ctx: trace_id, span_id,
// request_id, tenant_id, branch_id and user_id when present.
func Fields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	s := getScope(ctx)
	if s.tenantID != 0 {
		fields = append(fields, zap.Int64("tenant_id", s.tenantID))
	}
	if s.branchID != 0 {
		fields = append(fields, zap.Int64("branch_id", s.branchID))
	}
	if s.userID != 0 {
		fields = append(fields, zap.Int64("user_id", s.userID))
	}
	return fields
}

// ContextLogger adds the correlation fields of a context to every entry.
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L returns a ContextLogger for the logger stored in ctx.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx)}
}

// WithLogger returns a ContextLogger using the provided logger instead of
// the one stored in ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: logger}
}

func (cl *ContextLogger) enriched() *zap.Logger {
	l := cl.logger
	if l == nil {
		l = zap.NewNop()
	}
	if fields := Fields(cl.ctx); len(fields) > 0 {
		l = l.With(fields...)
	}
	return l
}

// With creates a child ContextLogger with additional fields.
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	return &ContextLogger{ctx: cl.ctx, logger: cl.base().With(fields...)}
}

func (cl *ContextLogger) base() *zap.Logger {
	if cl.logger == nil {
		return zap.NewNop()
	}
	return cl.logger
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) { cl.enriched().Debug(msg, fields...) }
func (cl *ContextLogger) Info(msg string, fields ...zap.Field)  { cl.enriched().Info(msg, fields...) }
func (cl *ContextLogger) Warn(msg string, fields ...zap.Field)  { cl.enriched().Warn(msg, fields...) }
func (cl *ContextLogger) Error(msg string, fields ...zap.Field) { cl.enriched().Error(msg, fields...) }

// Zap returns the underlying logger with the context fields applied.
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.enriched()
}
