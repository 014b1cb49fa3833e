package http

import (
	"testing"

	"github.com/freekieb7/ember/test"
)

func TestRequestParse(t *testing.T) {
	var req Request

	raw := []byte("GET /test HTTP/1.1\r\nAccept: text/css\r\nConnection: keep-alive\r\nContent-Length: 0\r\n\r\n")
	test.NoError(t, req.Parse(raw))

	test.Equal(t, "GET", req.Method)
	test.Equal(t, "/test", req.URI)
	test.Equal(t, "HTTP/1.1", req.Proto)
	test.Equal(t, 3, len(req.Headers))

	h, found := req.Header("Connection")
	test.True(t, found, "connection header not found")
	test.Equal(t, "keep-alive", h)

	_, found = req.Header("connection")
	test.True(t, !found, "header lookup must be case-sensitive")
	test.True(t, req.Body == nil, "expected no body")
}

func TestRequestParseBody(t *testing.T) {
	var req Request

	raw := []byte("POST /home HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello\r\nworld")
	test.NoError(t, req.Parse(raw))
	test.Equal(t, "hello\r\nworld", string(req.Body))
}

func TestRequestParseDuplicateHeader(t *testing.T) {
	var req Request

	test.NoError(t, req.Parse([]byte("GET / HTTP/1.1\r\nX-A: 1\r\nX-A: 2\r\n\r\n")))
	v, _ := req.Header("X-A")
	test.Equal(t, "2", v)
}

func TestRequestParseValueWithSeparator(t *testing.T) {
	var req Request

	test.NoError(t, req.Parse([]byte("GET / HTTP/1.1\r\nHost: localhost: 8080\r\n\r\n")))
	v, _ := req.Header("Host")
	test.Equal(t, "localhost: 8080", v)
}

func TestRequestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
	}{
		{"no terminator", "GET / HTTP/1.1\r\nHost: x\r\n", ErrMissingTerminator},
		{"two tokens", "GET /\r\n\r\n", ErrMalformedRequestLine},
		{"four tokens", "GET / HTTP/1.1 extra\r\n\r\n", ErrMalformedRequestLine},
		{"empty token", "GET  HTTP/1.1\r\n\r\n", ErrMalformedRequestLine},
		{"header without separator", "GET / HTTP/1.1\r\nHost\r\n\r\n", ErrMalformedHeader},
		{"header without space", "GET / HTTP/1.1\r\nHost:x\r\n\r\n", ErrMalformedHeader},
		{"empty header name", "GET / HTTP/1.1\r\n: x\r\n\r\n", ErrMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			test.ErrorIs(t, req.Parse([]byte(tt.raw)), tt.err)
		})
	}
}

func TestRequestReuse(t *testing.T) {
	var req Request

	test.NoError(t, req.Parse([]byte("POST /a HTTP/1.1\r\nX-A: 1\r\nContent-Length: 1\r\n\r\nx")))
	test.NoError(t, req.Parse([]byte("GET /b HTTP/1.1\r\n\r\n")))

	_, found := req.Header("X-A")
	test.True(t, !found, "headers leaked between requests")
	test.True(t, req.Body == nil, "body leaked between requests")
	test.Equal(t, "/b", req.URI)
}

func BenchmarkRequestParse(b *testing.B) {
	raw := []byte("GET /test HTTP/1.1\r\nAccept: text/css\r\nConnection: keep-alive\r\nContent-Length: 0\r\n\r\n")
	var req Request

	for b.Loop() {
		if err := req.Parse(raw); err != nil {
			b.Error(err)
		}
	}
}
