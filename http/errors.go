package http

import "errors"

// Protocol errors. Every one of them closes the connection without a response.
var (
	ErrMalformedRequestLine = errors.New("http: malformed request line")
	ErrMalformedHeader      = errors.New("http: malformed header line")
	ErrMissingTerminator    = errors.New("http: missing header terminator")
	ErrInvalidContentLength = errors.New("http: invalid Content-Length")
	ErrRequestTooLarge      = errors.New("http: request exceeds maximum size")
	ErrPipelined            = errors.New("http: bytes past the end of the message")
)

// Transport errors.
var (
	ErrTimeout        = errors.New("http: i/o timeout")
	ErrAlreadySent    = errors.New("http: response already sent")
	ErrServerClosed   = errors.New("http: server closed")
	ErrServerRunning  = errors.New("http: server already running")
	ErrNotListening   = errors.New("http: server is not listening")
	ErrInvalidConfig  = errors.New("http: invalid server config")
	ErrAcceptorFailed = errors.New("http: acceptor failed")
)
