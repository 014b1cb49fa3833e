package http

import (
	"context"
)

// RequestCtx is the handler's view of a connection: the parsed request, the
// response being built, and the means to transmit it.
type RequestCtx struct {
	Request  Request
	Response Response

	conn      *Conn
	ctx       context.Context
	requestID string
	sent      bool
	sendErr   error
}

func (ctx *RequestCtx) Context() context.Context {
	if ctx.ctx == nil {
		return context.Background()
	}
	return ctx.ctx
}

func (ctx *RequestCtx) ConnID() uint64 {
	return ctx.conn.ID()
}

func (ctx *RequestCtx) RequestID() string {
	return ctx.requestID
}

func (ctx *RequestCtx) Sent() bool {
	return ctx.sent
}

// Send serializes Response and writes all of it to the connection. It can be
// called once per request.
func (ctx *RequestCtx) Send() error {
	if ctx.sent {
		return ErrAlreadySent
	}
	ctx.sent = true

	c := ctx.conn
	c.wbuf = ctx.Response.AppendTo(c.wbuf[:0])
	ctx.sendErr = c.send(c.wbuf)
	return ctx.sendErr
}

func (ctx *RequestCtx) begin(parent context.Context, requestID string) {
	ctx.ctx = parent
	ctx.requestID = requestID
	ctx.sent = false
	ctx.sendErr = nil
	ctx.Response.Reset()
}

func (ctx *RequestCtx) reset() {
	ctx.Request.Reset()
	ctx.Response.Reset()
	ctx.ctx = nil
	ctx.requestID = ""
	ctx.sent = false
	ctx.sendErr = nil
}
