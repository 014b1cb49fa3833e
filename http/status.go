// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package http

const (
	StatusContinue           = 100 // RFC 7231, 6.2.1
	StatusSwitchingProtocols = 101 // RFC 7231, 6.2.2

	StatusOK        = 200 // RFC 7231, 6.3.1
	StatusCreated   = 201 // RFC 7231, 6.3.2
	StatusAccepted  = 202 // RFC 7231, 6.3.3
	StatusNoContent = 204 // RFC 7231, 6.3.5

	StatusMovedPermanently  = 301 // RFC 7231, 6.4.2
	StatusFound             = 302 // RFC 7231, 6.4.3
	StatusSeeOther          = 303 // RFC 7231, 6.4.4
	StatusNotModified       = 304 // RFC 7232, 4.1
	StatusTemporaryRedirect = 307 // RFC 7231, 6.4.7

	StatusBadRequest            = 400 // RFC 7231, 6.5.1
	StatusForbidden             = 403 // RFC 7231, 6.5.3
	StatusNotFound              = 404 // RFC 7231, 6.5.4
	StatusMethodNotAllowed      = 405 // RFC 7231, 6.5.5
	StatusRequestTimeout        = 408 // RFC 7231, 6.5.7
	StatusLengthRequired        = 411 // RFC 7231, 6.5.10
	StatusRequestEntityTooLarge = 413 // RFC 7231, 6.5.11
	StatusUnsupportedMediaType  = 415 // RFC 7231, 6.5.13
	StatusUnprocessableEntity   = 422 // RFC 4918, 11.2
	StatusTooManyRequests       = 429 // RFC 6585, 4

	StatusInternalServerError     = 500 // RFC 7231, 6.6.1
	StatusNotImplemented          = 501 // RFC 7231, 6.6.2
	StatusBadGateway              = 502 // RFC 7231, 6.6.3
	StatusServiceUnavailable      = 503 // RFC 7231, 6.6.4
	StatusGatewayTimeout          = 504 // RFC 7231, 6.6.5
	StatusHTTPVersionNotSupported = 505 // RFC 7231, 6.6.6
)

var (
	unknownStatusCode = "Unknown Status Code"

	statusMessages = [...]string{
		StatusContinue:           "Continue",
		StatusSwitchingProtocols: "Switching Protocols",

		StatusOK:        "OK",
		StatusCreated:   "Created",
		StatusAccepted:  "Accepted",
		StatusNoContent: "No Content",

		StatusMovedPermanently:  "Moved Permanently",
		StatusFound:             "Found",
		StatusSeeOther:          "See Other",
		StatusNotModified:       "Not Modified",
		StatusTemporaryRedirect: "Temporary Redirect",

		StatusBadRequest:            "Bad Request",
		StatusForbidden:             "Forbidden",
		StatusNotFound:              "Not Found",
		StatusMethodNotAllowed:      "Method Not Allowed",
		StatusRequestTimeout:        "Request Timeout",
		StatusLengthRequired:        "Length Required",
		StatusRequestEntityTooLarge: "Request Entity Too Large",
		StatusUnsupportedMediaType:  "Unsupported Media Type",
		StatusUnprocessableEntity:   "Unprocessable Entity",
		StatusTooManyRequests:       "Too Many Requests",

		StatusInternalServerError:     "Internal Server Error",
		StatusNotImplemented:          "Not Implemented",
		StatusBadGateway:              "Bad Gateway",
		StatusServiceUnavailable:      "Service Unavailable",
		StatusGatewayTimeout:          "Gateway Timeout",
		StatusHTTPVersionNotSupported: "HTTP Version Not Supported",
	}
)

// StatusText returns the reason phrase for code.
func StatusText(code int) string {
	if code < 0 || code >= len(statusMessages) || statusMessages[code] == "" {
		return unknownStatusCode
	}
	return statusMessages[code]
}
