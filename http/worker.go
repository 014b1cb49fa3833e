package http

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// slot is a reusable concurrency token. Each slot has one long-lived worker
// goroutine receiving connections through tasks.
type slot struct {
	id    int
	tasks chan *Conn
	conn  *Conn // dispatcher-owned
}

type completion struct {
	slot    *slot
	verdict verdict
}

type WorkerPool struct {
	slots []*slot
	idle  ring[*slot]
	busy  int
	wg    sync.WaitGroup
}

func NewWorkerPool(size int) *WorkerPool {
	wp := &WorkerPool{
		slots: make([]*slot, size),
		idle:  newRing[*slot](size, size),
	}
	for i := range wp.slots {
		wp.slots[i] = &slot{id: i, tasks: make(chan *Conn, 1)}
		wp.idle.Enqueue(wp.slots[i])
	}
	return wp
}

func (wp *WorkerPool) Size() int {
	return len(wp.slots)
}

func (wp *WorkerPool) Busy() int {
	return wp.busy
}

func (wp *WorkerPool) start(work func(s *slot)) {
	for _, s := range wp.slots {
		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			work(s)
		}()
	}
}

// acquire takes an idle slot, if there is one.
func (wp *WorkerPool) acquire() (*slot, bool) {
	s, err := wp.idle.Dequeue()
	if err != nil {
		return nil, false
	}
	wp.busy++
	return s, true
}

// release must only be called once the slot's completion was consumed.
func (wp *WorkerPool) release(s *slot) {
	s.conn = nil
	wp.idle.Enqueue(s)
	wp.busy--
}

// stop closes every task channel and waits for the worker goroutines.
func (wp *WorkerPool) stop() {
	for _, s := range wp.slots {
		close(s.tasks)
	}
	wp.wg.Wait()
}

// work is the body of a worker goroutine. It serves one request per task and
// reports the verdict back to the dispatcher.
func (d *dispatcher) work(s *slot) {
	for c := range s.tasks {
		v := d.serve(c)
		d.done <- completion{slot: s, verdict: v}
		d.poller.Wake()
	}
}

func (d *dispatcher) serve(c *Conn) verdict {
	if err := c.receive(); err != nil {
		d.metrics.dropped.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("reason", receiveFailure(err))))
		if errors.Is(err, io.EOF) {
			d.logger.Debug("peer closed connection", "conn", c.id)
		} else {
			d.logger.Warn("dropping connection", "conn", c.id, "error", err)
		}
		return verdictClose
	}

	if c.framer.grows > 0 {
		d.metrics.grows.Add(context.Background(), int64(c.framer.grows))
		c.framer.grows = 0
	}

	req := &c.ctx.Request
	requestID := uuid.NewString()
	ctx, span := d.metrics.tracer.Start(context.Background(), req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URI),
			attribute.String("network.protocol.version", req.Proto),
			attribute.String("ember.request_id", requestID),
		),
	)
	defer span.End()

	c.ctx.begin(ctx, requestID)
	c.ctx.Response.SetHeader(headerRequestID, requestID)

	start := time.Now()
	disposition := d.invoke(&c.ctx)
	elapsed := time.Since(start)

	v := verdictKeepAlive
	if disposition != KeepAlive {
		v = verdictClose
	}
	switch {
	case !c.ctx.Sent():
		d.logger.Warn("handler returned without sending a response", "conn", c.id, "uri", req.URI)
		v = verdictClose
	case c.ctx.sendErr != nil:
		d.logger.Debug("send failed", "conn", c.id, "error", c.ctx.sendErr)
		span.RecordError(c.ctx.sendErr)
		v = verdictClose
	}

	status := c.ctx.Response.Status
	if status == 0 {
		status = StatusOK
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status >= 500 {
		span.SetStatus(codes.Error, StatusText(status))
	}

	d.srv.stats.served.Add(1)
	d.metrics.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("ember.verdict", v.String()),
	))
	d.metrics.duration.Record(ctx, elapsed.Seconds())

	d.logger.Debug("request served",
		"conn", c.id,
		"request_id", requestID,
		"method", req.Method,
		"uri", req.URI,
		"status", status,
		"verdict", v.String(),
		"duration", elapsed,
	)
	return v
}

// invoke runs the handler. A panic closes the connection.
func (d *dispatcher) invoke(ctx *RequestCtx) (disposition Disposition) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked", "conn", ctx.ConnID(), "request_id", ctx.RequestID(), "panic", r)
			trace.SpanFromContext(ctx.Context()).SetStatus(codes.Error, "panic")
			disposition = Close
		}
	}()

	return d.handler(ctx)
}

func receiveFailure(err error) string {
	switch {
	case errors.Is(err, io.EOF):
		return "eof"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "truncated"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRequestTooLarge):
		return "too_large"
	case errors.Is(err, ErrPipelined):
		return "pipelined"
	case errors.Is(err, ErrMalformedRequestLine), errors.Is(err, ErrMalformedHeader),
		errors.Is(err, ErrMissingTerminator), errors.Is(err, ErrInvalidContentLength):
		return "malformed"
	default:
		return "io"
	}
}
