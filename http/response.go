package http

import (
	"slices"
	"strconv"
)

type Response struct {
	Status  int
	Reason  string
	Headers Headers
	Body    []byte
}

func (res *Response) SetHeader(key, value string) *Response {
	if res.Headers == nil {
		res.Headers = make(Headers)
	}
	res.Headers[key] = value
	return res
}

// WithStatus sets the status code and, when given, a custom reason phrase.
func (res *Response) WithStatus(status int, reason ...string) *Response {
	res.Status = status
	res.Reason = ""
	if len(reason) > 0 {
		res.Reason = reason[0]
	}
	return res
}

func (res *Response) WithText(payload string) *Response {
	res.SetHeader(headerContentType, "text/plain; charset=UTF-8")
	res.Body = []byte(payload)
	return res
}

func (res *Response) WithHTML(payload string) *Response {
	res.SetHeader(headerContentType, DefaultContentType)
	res.Body = []byte(payload)
	return res
}

func (res *Response) WithBytes(contentType string, payload []byte) *Response {
	res.SetHeader(headerContentType, contentType)
	res.Body = payload
	return res
}

// AppendTo serializes the response onto dst. Content-Length always reflects
// len(Body), whatever the handler put in Headers.
func (res *Response) AppendTo(dst []byte) []byte {
	status := res.Status
	if status == 0 {
		status = StatusOK
	}
	reason := res.Reason
	if reason == "" {
		reason = StatusText(status)
	}

	dst = append(dst, protocolHttp11...)
	dst = strconv.AppendInt(dst, int64(status), 10)
	dst = append(dst, ' ')
	dst = append(dst, reason...)
	dst = append(dst, crlf...)

	if _, ok := res.Headers[headerConnection]; !ok {
		dst = appendHeader(dst, headerConnection, "Keep-Alive")
	}
	if _, ok := res.Headers[headerContentType]; !ok {
		dst = appendHeader(dst, headerContentType, DefaultContentType)
	}

	keys := make([]string, 0, len(res.Headers))
	for key := range res.Headers {
		if key == headerContentLength {
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		dst = appendHeader(dst, key, res.Headers[key])
	}

	dst = append(dst, headerContentLength...)
	dst = append(dst, headerSeparator...)
	dst = strconv.AppendInt(dst, int64(len(res.Body)), 10)
	dst = append(dst, crlf...)

	dst = append(dst, crlf...)
	return append(dst, res.Body...)
}

func (res *Response) Reset() {
	res.Status = 0
	res.Reason = ""
	res.Body = nil
	if res.Headers == nil {
		res.Headers = make(Headers)
	} else {
		clear(res.Headers)
	}
}

func appendHeader(dst []byte, key, value string) []byte {
	dst = append(dst, key...)
	dst = append(dst, headerSeparator...)
	dst = append(dst, value...)
	return append(dst, crlf...)
}
