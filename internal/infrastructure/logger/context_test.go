package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	core, _ := observer.New(zapcore.InfoLevel)
	l := zap.New(core)
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
}

func TestScopeAccessors(t *testing.T) {
	ctx := WithScope(context.Background(), 7, 2, 11)
	assert.Equal(t, int64(7), GetTenantID(ctx))
	assert.Equal(t, int64(2), GetBranchID(ctx))
	assert.Equal(t, int64(11), GetUserID(ctx))

	assert.Zero(t, GetTenantID(context.Background()))
}

func TestContextLogger_AddsCorrelationFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithScope(ctx, 7, 0, 11)

	L(ctx).Info("hello", zap.String("k", "v"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, int64(7), fields["tenant_id"])
	assert.Equal(t, int64(11), fields["user_id"])
	assert.Equal(t, "v", fields["k"])
	_, hasBranch := fields["branch_id"]
	assert.False(t, hasBranch, "zero branch is omitted")
}

func TestContextLogger_TraceFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	WithLogger(ctx, zap.New(core)).Warn("traced")

	require.Len(t, recorded.All(), 1)
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, traceID.String(), fields["trace_id"])
	assert.Equal(t, spanID.String(), fields["span_id"])
}

func TestContextLogger_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		WithLogger(context.Background(), nil).Error("dropped")
	})
}
