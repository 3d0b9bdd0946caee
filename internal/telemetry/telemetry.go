// Package telemetry exports counters for the credential flows in the
// Prometheus text format and traces them through OpenTelemetry.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the telemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool

	// OTLPEndpoint receives traces over gRPC. Empty keeps traces in process.
	OTLPEndpoint string

	// SamplingRate is the fraction of traces kept, 0.0 to 1.0.
	SamplingRate float64

	// SpanProcessors are attached to the tracer provider in addition to
	// the OTLP exporter.
	SpanProcessors []sdktrace.SpanProcessor
}

// Provider owns the meter provider and the instruments recorded by the flows.
// A nil *Provider is valid and records nothing.
type Provider struct {
	config         Config
	registry       *promclient.Registry
	meterProvider  *sdkmetric.MeterProvider
	meter          metric.Meter
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	loginCounter        metric.Int64Counter
	registrationCounter metric.Int64Counter
	logoutCounter       metric.Int64Counter
	recoveryCounter     metric.Int64Counter
	authDuration        metric.Float64Histogram
}

func NewProvider(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("environment", cfg.Environment),
	)

	if err := p.setupTracing(res); err != nil {
		return nil, err
	}

	p.registry = promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(p.registry))
	if err != nil {
		return nil, err
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	p.meter = p.meterProvider.Meter(cfg.ServiceName)

	if err := p.initMetrics(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) setupTracing(res *resource.Resource) error {
	var sampler sdktrace.Sampler
	switch rate := p.config.SamplingRate; {
	case rate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case rate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(rate)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithResource(res),
	}
	if p.config.OTLPEndpoint != "" {
		exporter, err := otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	for _, sp := range p.config.SpanProcessors {
		opts = append(opts, sdktrace.WithSpanProcessor(sp))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer(p.config.ServiceName)
	return nil
}

func (p *Provider) initMetrics() error {
	var err error

	p.loginCounter, err = p.meter.Int64Counter(
		"warden.login",
		metric.WithDescription("Login attempts"),
	)
	if err != nil {
		return err
	}

	p.registrationCounter, err = p.meter.Int64Counter(
		"warden.registration",
		metric.WithDescription("Registration attempts"),
	)
	if err != nil {
		return err
	}

	p.logoutCounter, err = p.meter.Int64Counter(
		"warden.logout",
		metric.WithDescription("Logouts"),
	)
	if err != nil {
		return err
	}

	p.recoveryCounter, err = p.meter.Int64Counter(
		"warden.recovery",
		metric.WithDescription("Password recovery events by stage"),
	)
	if err != nil {
		return err
	}

	p.authDuration, err = p.meter.Float64Histogram(
		"warden.auth.duration",
		metric.WithDescription("Time spent verifying a password login"),
		metric.WithUnit("s"),
	)
	return err
}

// Handler serves the collected metrics. It answers 404 when telemetry is disabled.
func (p *Provider) Handler() http.Handler {
	if p == nil || p.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes pending spans and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tracerProvider != nil {
		errs = append(errs, p.tracerProvider.Shutdown(ctx))
	}
	if p.meterProvider != nil {
		errs = append(errs, p.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func status(success bool) attribute.KeyValue {
	if success {
		return attribute.String("status", "success")
	}
	return attribute.String("status", "failure")
}

func (p *Provider) RecordLogin(ctx context.Context, success bool) {
	if p == nil || p.loginCounter == nil {
		return
	}
	p.loginCounter.Add(ctx, 1, metric.WithAttributes(status(success)))
}

func (p *Provider) RecordRegistration(ctx context.Context, success bool) {
	if p == nil || p.registrationCounter == nil {
		return
	}
	p.registrationCounter.Add(ctx, 1, metric.WithAttributes(status(success)))
}

func (p *Provider) RecordLogout(ctx context.Context) {
	if p == nil || p.logoutCounter == nil {
		return
	}
	p.logoutCounter.Add(ctx, 1)
}

// RecordRecovery records a recovery event; stage is "initiate" or "reset".
func (p *Provider) RecordRecovery(ctx context.Context, stage string, success bool) {
	if p == nil || p.recoveryCounter == nil {
		return
	}
	p.recoveryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		status(success),
	))
}

func (p *Provider) RecordAuthDuration(ctx context.Context, d time.Duration, success bool) {
	if p == nil || p.authDuration == nil {
		return
	}
	p.authDuration.Record(ctx, d.Seconds(), metric.WithAttributes(status(success)))
}
