// Package telemetry wires the OpenTelemetry SDK and the process logger.
//
// With OTEL_EXPORTER_OTLP_ENDPOINT set, traces, metrics and logs are exported
// over OTLP/gRPC and slog is bridged into the log pipeline. Otherwise spans
// and metrics stay in-process and slog writes text to stderr.
package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const EndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

type Config struct {
	ServiceName    string
	ServiceVersion string
	Level          slog.Level
	Output         io.Writer // text log destination, stderr when nil
	MetricInterval time.Duration
}

type Providers struct {
	Logger         *slog.Logger
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider // nil without an OTLP endpoint

	shutdownFuncs []func(context.Context) error
}

// Setup installs global providers and slog's default logger. Call Shutdown
// on the result to flush exporters.
func Setup(ctx context.Context, cfg Config) (providers *Providers, err error) {
	providers = &Providers{}
	defer func() {
		if err != nil {
			err = errors.Join(err, providers.Shutdown(context.Background()))
			providers = nil
		}
	}()

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return providers, err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	export := os.Getenv(EndpointEnv) != ""

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if export {
		traceExporter, err := otlptracegrpc.New(ctx)
		if err != nil {
			return providers, err
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(traceExporter))

		metricExporter, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return providers, err
		}
		interval := cfg.MetricInterval
		if interval <= 0 {
			interval = 15 * time.Second
		}
		metricOpts = append(metricOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval)),
		))
	}

	providers.TracerProvider = sdktrace.NewTracerProvider(traceOpts...)
	providers.shutdownFuncs = append(providers.shutdownFuncs, providers.TracerProvider.Shutdown)
	otel.SetTracerProvider(providers.TracerProvider)

	providers.MeterProvider = sdkmetric.NewMeterProvider(metricOpts...)
	providers.shutdownFuncs = append(providers.shutdownFuncs, providers.MeterProvider.Shutdown)
	otel.SetMeterProvider(providers.MeterProvider)

	if export {
		logExporter, err := otlploggrpc.New(ctx)
		if err != nil {
			return providers, err
		}
		providers.LoggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		)
		providers.shutdownFuncs = append(providers.shutdownFuncs, providers.LoggerProvider.Shutdown)
		global.SetLoggerProvider(providers.LoggerProvider)

		providers.Logger = slog.New(&levelHandler{
			level: cfg.Level,
			Handler: otelslog.NewHandler(cfg.ServiceName,
				otelslog.WithLoggerProvider(providers.LoggerProvider),
				otelslog.WithVersion(cfg.ServiceVersion),
			),
		})
	} else {
		providers.Logger = NewTextLogger(cfg.Output, cfg.Level)
	}

	slog.SetDefault(providers.Logger)
	return providers, nil
}

func NewTextLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// levelHandler drops records below level before they reach the wrapped
// handler. The OTLP log pipeline exports every record it is given.
type levelHandler struct {
	level slog.Leveler
	slog.Handler
}

func (h *levelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() && h.Handler.Enabled(ctx, level)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, Handler: h.Handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, Handler: h.Handler.WithGroup(name)}
}

// Shutdown flushes and stops every provider, in reverse order of creation.
func (providers *Providers) Shutdown(ctx context.Context) error {
	var err error
	for i := len(providers.shutdownFuncs) - 1; i >= 0; i-- {
		err = errors.Join(err, providers.shutdownFuncs[i](ctx))
	}
	providers.shutdownFuncs = nil
	return err
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(s))
	return level, err
}
