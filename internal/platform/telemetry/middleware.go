package telemetry

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/stockquote-service/internal/platform/logging"
)

const (
	instrumentationName = "github.com/jsamuelsen/stockquote-service/internal/platform/telemetry"

	// HeaderTraceID echoes the server span's trace ID to the caller.
	HeaderTraceID = "X-Trace-ID"

	unmatchedRoute = "unmatched"
)

// httpMetrics are the server instruments. A nil field is skipped, so a
// meter that fails to build one instrument still records the others.
type httpMetrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) *httpMetrics {
	m := &httpMetrics{}

	var err error

	if m.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"),
	); err != nil {
		otel.Handle(err)
	}

	if m.requests, err = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP server requests by route and status"),
	); err != nil {
		otel.Handle(err)
	}

	if m.inFlight, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("HTTP server requests in flight"),
	); err != nil {
		otel.Handle(err)
	}

	return m
}

func (m *httpMetrics) begin(ctx context.Context, attrs attribute.Set) func(status int) {
	start := time.Now()

	if m.inFlight != nil {
		m.inFlight.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}

	return func(status int) {
		if m.inFlight != nil {
			m.inFlight.Add(ctx, -1, metric.WithAttributeSet(attrs))
		}

		done := metric.WithAttributes(append(attrs.ToSlice(), attribute.Int("http.status_code", status))...)

		if m.duration != nil {
			m.duration.Record(ctx, time.Since(start).Seconds(), done)
		}

		if m.requests != nil {
			m.requests.Add(ctx, 1, done)
		}
	}
}

// Middleware returns the handlers that trace and measure a request, in the
// order they must run. otelgin opens the server span. The second handler
// exposes its trace ID (as X-Trace-ID and on the request logger), tags the
// span with the requested symbol and records metrics by route template so
// symbols never become label values.
func Middleware(serviceName string) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		otelgin.Middleware(serviceName),
		instrument(newHTTPMetrics(otel.Meter(instrumentationName))),
	}
}

func instrument(m *httpMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span := trace.SpanFromContext(ctx)

		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID := sc.TraceID().String()
			c.Header(HeaderTraceID, traceID)
			c.Request = c.Request.WithContext(logging.WithTraceID(ctx, traceID))
		}

		if symbol := c.Param("symbol"); symbol != "" {
			span.SetAttributes(attribute.String("stock.symbol", symbol))
		}

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		end := m.begin(ctx, attribute.NewSet(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		))

		c.Next()

		end(c.Writer.Status())
	}
}
