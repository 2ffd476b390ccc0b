// internal/common/observability/metrics.go
package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	txCounter     otelmetric.Int64Counter
	txDuration    otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	txCounter, _ := meter.Int64Counter(
		"transactions.processed",
		otelmetric.WithDescription("Number of payment transactions processed"),
	)

	txDuration, _ := meter.Float64Histogram(
		"transactions.duration",
		otelmetric.WithDescription("Payment transaction duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		txCounter:     txCounter,
		txDuration:    txDuration,
	}
}

func (o *Observability) RecordTransaction(ctx context.Context, flow, status string) {
	if o.txCounter != nil {
		o.txCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("flow", flow),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordTransactionDuration(ctx context.Context, flow string, duration time.Duration, status string) {
	if o.txDuration != nil {
		o.txDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("flow", flow),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
