package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestPrometheusMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg, "test")
	require.NoError(t, err)

	m.RecordRequest("tools/call", StatusOK, 50*time.Millisecond)
	m.RecordRequest("tools/call", StatusCancelled, time.Millisecond)
	m.RecordInboundRequest("tools/list", StatusOK, time.Millisecond)
	m.RecordNotification("notifications/progress", true)
	m.RecordNotification("notifications/progress", false)
	m.RecordCancellation("tools/call")
	m.SessionOpened()
	m.RequestsInFlight(2)
	m.RequestsInFlight(-1)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requestTotal.WithLabelValues("tools/call", StatusOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requestTotal.WithLabelValues("tools/call", StatusCancelled)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inboundRequestTotal.WithLabelValues("tools/list", StatusOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notificationTotal.WithLabelValues("notifications/progress", "outbound")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notificationTotal.WithLabelValues("notifications/progress", "inbound")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cancellationTotal.WithLabelValues("tools/call")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.activeSessions))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requestsInFlight))
}

func TestPrometheusMetricsDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMetrics(reg, "dup")
	require.NoError(t, err)
	_, err = NewPrometheusMetrics(reg, "dup")
	assert.Error(t, err)
}

func TestTracerSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewTracer(tp)

	_, end := tracer.StartCall(context.Background(), "tools/call", "1")
	end(nil)

	_, end = tracer.StartDispatch(context.Background(), "tools/list", "2")
	end(errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "rpc.call tools/call", spans[0].Name())
	assert.Equal(t, otelcodes.Ok, spans[0].Status().Code)
	assert.Equal(t, "rpc.dispatch tools/list", spans[1].Name())
	assert.Equal(t, otelcodes.Error, spans[1].Status().Code)
}

func TestNilTracerFallsBackToGlobal(t *testing.T) {
	var tracer *Tracer
	_, end := tracer.StartCall(context.Background(), "ping", "3")
	end(nil)
}
