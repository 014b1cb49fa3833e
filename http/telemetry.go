package http

import (
	"errors"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/freekieb7/ember/http"

type instruments struct {
	tracer trace.Tracer

	admitted metric.Int64UpDownCounter
	pending  metric.Int64UpDownCounter
	busy     metric.Int64UpDownCounter
	rejected metric.Int64Counter
	requests metric.Int64Counter
	dropped  metric.Int64Counter
	duration metric.Float64Histogram
	grows    metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider, tp trace.TracerProvider) (*instruments, error) {
	meter := mp.Meter(instrumentationName)
	inst := &instruments{
		tracer: tp.Tracer(instrumentationName),
	}

	var err, errs error
	inst.admitted, err = meter.Int64UpDownCounter("ember.connections.admitted",
		metric.WithDescription("Connections holding a multiplexer registration"),
		metric.WithUnit("{connection}"))
	errs = errors.Join(errs, err)

	inst.pending, err = meter.Int64UpDownCounter("ember.connections.pending",
		metric.WithDescription("Accepted connections waiting for admission"),
		metric.WithUnit("{connection}"))
	errs = errors.Join(errs, err)

	inst.busy, err = meter.Int64UpDownCounter("ember.workers.busy",
		metric.WithDescription("Worker slots bound to a connection"),
		metric.WithUnit("{worker}"))
	errs = errors.Join(errs, err)

	inst.rejected, err = meter.Int64Counter("ember.connections.rejected",
		metric.WithDescription("Accepted connections closed because the pending queue was full"),
		metric.WithUnit("{connection}"))
	errs = errors.Join(errs, err)

	inst.requests, err = meter.Int64Counter("ember.requests",
		metric.WithDescription("Requests handed to the handler, by verdict"),
		metric.WithUnit("{request}"))
	errs = errors.Join(errs, err)

	inst.dropped, err = meter.Int64Counter("ember.receive.failures",
		metric.WithDescription("Receive cycles that ended without a request"),
		metric.WithUnit("{receive}"))
	errs = errors.Join(errs, err)

	inst.duration, err = meter.Float64Histogram("ember.request.duration",
		metric.WithDescription("Time spent in the handler"),
		metric.WithUnit("s"))
	errs = errors.Join(errs, err)

	inst.grows, err = meter.Int64Counter("ember.framer.buffer.grows",
		metric.WithDescription("Receive buffer doublings"),
		metric.WithUnit("{grow}"))
	errs = errors.Join(errs, err)

	return inst, errs
}
