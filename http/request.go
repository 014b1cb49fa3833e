package http

import (
	"bytes"
	"strings"
)

// Headers maps exact, case-sensitive field names to values.
type Headers map[string]string

func (h Headers) Get(key string) (string, bool) {
	v, ok := h[key]
	return v, ok
}

func (h Headers) Set(key, value string) {
	h[key] = value
}

func (h Headers) Del(key string) {
	delete(h, key)
}

type Request struct {
	Method  string
	URI     string
	Proto   string
	Headers Headers

	// Body aliases the connection buffer and is only valid until the
	// handler returns.
	Body []byte
}

func (req *Request) Header(key string) (string, bool) {
	return req.Headers.Get(key)
}

// Parse reads one complete message: request line, header lines up to the
// blank line, and everything after it as the body.
func (req *Request) Parse(raw []byte) error {
	req.Reset()

	end := bytes.Index(raw, headerTerminator)
	if end < 0 {
		return ErrMissingTerminator
	}
	head, body := raw[:end], raw[end+len(headerTerminator):]

	requestLine, rest, _ := bytes.Cut(head, crlf)

	parts := strings.Split(string(requestLine), " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ErrMalformedRequestLine
	}
	req.Method, req.URI, req.Proto = parts[0], parts[1], parts[2]

	for len(rest) > 0 {
		var line []byte
		line, rest, _ = bytes.Cut(rest, crlf)

		key, value, found := strings.Cut(string(line), headerSeparator)
		if !found || key == "" {
			return ErrMalformedHeader
		}
		req.Headers[key] = value
	}

	if len(body) > 0 {
		req.Body = body
	}
	return nil
}

func (req *Request) Reset() {
	req.Method = ""
	req.URI = ""
	req.Proto = ""
	req.Body = nil
	if req.Headers == nil {
		req.Headers = make(Headers)
	} else {
		clear(req.Headers)
	}
}
