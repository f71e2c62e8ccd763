package clients

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcomes recorded on the client metrics.
const (
	outcomeRateLimited = "rate_limited"
	outcomeCircuitOpen = "circuit_open"
	outcomeError       = "error"
)

type clientMetrics struct {
	service  string
	duration metric.Float64Histogram
	requests metric.Int64Counter
}

func newClientMetrics(meter metric.Meter, service string) (*clientMetrics, error) {
	duration, err := meter.Float64Histogram("http.client.request.duration",
		metric.WithDescription("Duration of HTTP client requests, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requests, err := meter.Int64Counter("http.client.request.total",
		metric.WithDescription("HTTP client requests by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &clientMetrics{service: service, duration: duration, requests: requests}, nil
}

// record notes one logical request. status 0 means no response was kept;
// outcome is then one of the outcome constants, else the status class.
func (m *clientMetrics) record(ctx context.Context, method string, status int, elapsed time.Duration, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("peer.service", m.service),
	}

	if status > 0 {
		outcome = strconv.Itoa(status/100) + "xx"
		attrs = append(attrs, attribute.Int("http.status_code", status))
	}

	opt := metric.WithAttributes(append(attrs, attribute.String("result", outcome))...)

	m.duration.Record(ctx, elapsed.Seconds(), opt)
	m.requests.Add(ctx, 1, opt)
}
