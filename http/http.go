package http

import "time"

const (
	DefaultReadBufferSize = 4 * 1024        // 4kB, doubled on demand
	MaxRequestSize        = 2 * 1024 * 1024 // 2MB
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
	DefaultMaxConnections = 10000
	DefaultMaxWorkers     = 512
	DefaultBacklog        = 10000
	DefaultContentType    = "text/html; charset=UTF-8"
)

// Disposition is what a Handler wants done with the connection once the
// response is on the wire.
type Disposition int

const (
	KeepAlive Disposition = 0
	Close     Disposition = 1
)

// Handler serves one parsed request. It must populate ctx.Response and call
// ctx.Send before returning. Any non-zero Disposition closes the connection.
type Handler func(ctx *RequestCtx) Disposition

// verdict is the single byte a worker reports back to the dispatcher.
type verdict byte

const (
	verdictKeepAlive verdict = 0
	verdictClose     verdict = 1
)

func (v verdict) String() string {
	if v == verdictKeepAlive {
		return "keep-alive"
	}
	return "close"
}

var (
	protocolHttp11      = []byte("HTTP/1.1 ")
	crlf                = []byte("\r\n")
	headerTerminator    = []byte("\r\n\r\n")
	headerSeparator     = ": "
	contentLengthField  = []byte("\r\nContent-Length:")
	headerContentLength = "Content-Length"
	headerContentType   = "Content-Type"
	headerConnection    = "Connection"
	headerRequestID     = "X-Request-Id"
)
