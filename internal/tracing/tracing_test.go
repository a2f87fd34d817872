package tracing

import (
	"context"
	"errors"
	"testing"

	"ats-optimizer/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestInitProviderDisabled(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.NotNil(t, otel.GetTextMapPropagator())
}

func TestInitProviderRequiresEndpoint(t *testing.T) {
	_, err := InitProvider(context.Background(), config.TracingConfig{Enabled: true})
	assert.Error(t, err)
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, NewSampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, NewSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, NewSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestNewResource(t *testing.T) {
	res := NewResource("")
	v, ok := res.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "ats-optimizer", v.AsString())
}

func TestRecordErrorWithInfo(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	RecordErrorWithInfo(span, errors.New("boom"), ErrorTypeExtraction, attribute.String("file", "cv.pdf"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "extraction", attrs["error.type"])
	assert.Equal(t, "boom", attrs["error.message"])
	assert.Equal(t, "cv.pdf", attrs["file"])
}

func TestRecordErrorNilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordError(nil, errors.New("x"), ErrorTypeDB)
	})
}

func TestTruncateAndMask(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abc...xyz", TruncateString("abcdefghijklmnopqrstuvwxyz", 9))
	assert.Equal(t, "张*", MaskPII("张三"))
	assert.Equal(t, "13*******78", MaskPII("13812345678"))
	assert.Equal(t, MaskPII("a@b.com"), SafeAttributeValue("user.email", "a@b.com", 100))
	assert.Len(t, []rune(SafeJobDescription(string(make([]rune, 1000)))), MaxJobDescriptionLength-1)
}

func spanAttrs(t *testing.T, record func(span trace.Span)) (codes.Code, map[attribute.Key]string) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	record(span)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	return spans[0].Status().Code, attrs
}

func TestRecordHTTPError(t *testing.T) {
	code, attrs := spanAttrs(t, func(span trace.Span) {
		RecordHTTPError(span, errors.New("tika 503"), 503)
	})
	assert.Equal(t, codes.Error, code)
	assert.Equal(t, "server_error", attrs["error.category"])
	assert.Equal(t, "503", attrs["http.status_code"])

	_, attrs = spanAttrs(t, func(span trace.Span) {
		RecordHTTPError(span, errors.New("unsupported"), 415)
	})
	assert.Equal(t, "client_error", attrs["error.category"])
}

func TestRecordRabbitMQConfirmFailures(t *testing.T) {
	code, attrs := spanAttrs(t, func(span trace.Span) {
		RecordRabbitMQNack(span, "msg-1", "")
	})
	assert.Equal(t, codes.Error, code)
	assert.Equal(t, "nack", attrs["messaging.error_type"])
	assert.Equal(t, "msg-1", attrs["messaging.message_id"])

	_, attrs = spanAttrs(t, func(span trace.Span) {
		RecordRabbitMQTimeout(span, "msg-2", "5s")
	})
	assert.Equal(t, "timeout", attrs["messaging.error_type"])
	assert.Equal(t, "confirm timeout after 5s", attrs["error.message"])
}
