package observe

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "fingerspell".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string

	// Metrics enables the Prometheus exporter and the /metrics handler.
	Metrics bool

	// OTLPEndpoint, when set, exports spans over OTLP gRPC.
	OTLPEndpoint string
	OTLPInsecure bool

	// TraceExporter overrides the OTLP exporter. Used by tests.
	TraceExporter sdktrace.SpanExporter
}

// InitProvider registers global meter and tracer providers. It returns a
// shutdown function that flushes exporters, and the Prometheus scrape handler
// (nil when metrics are disabled).
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, metricsHandler http.Handler, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "fingerspell"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	var shutdownFuncs []func(context.Context) error

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.Metrics {
		promExp, err := promexporter.New()
		if err != nil {
			return nil, nil, err
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(promExp))
		metricsHandler = promhttp.Handler()
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)
	otel.SetMeterProvider(mp)
	shutdownFuncs = append(shutdownFuncs, mp.Shutdown)

	exporter := cfg.TraceExporter
	if exporter == nil {
		if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
			opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
			if cfg.OTLPInsecure {
				opts = append(opts, otlptracegrpc.WithInsecure())
			}
			otlpExp, err := otlptracegrpc.New(ctx, opts...)
			if err != nil {
				return nil, nil, errors.Join(err, mp.Shutdown(ctx))
			}
			exporter = otlpExp
		}
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	shutdownFuncs = append(shutdownFuncs, tp.Shutdown)

	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if e := fn(ctx); e != nil {
				errs = append(errs, e)
			}
		}
		return errors.Join(errs...)
	}

	return shutdown, metricsHandler, nil
}
