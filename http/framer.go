package http

import (
	"bytes"
)

type framerState uint8

const (
	stateReadingHeaders framerState = iota
	stateReadingBody
	stateComplete
	stateFailed
)

func (s framerState) String() string {
	switch s {
	case stateReadingHeaders:
		return "reading-headers"
	case stateReadingBody:
		return "reading-body"
	case stateComplete:
		return "complete"
	default:
		return "failed"
	}
}

// framer accumulates bytes until exactly one message is buffered: the header
// block up to \r\n\r\n plus Content-Length bytes of body.
type framer struct {
	buf []byte
	n   int

	scanned   int // bytes already searched for the header terminator
	bodyStart int
	expected  int
	state     framerState

	initialSize int
	maxSize     int
	grows       int
}

func newFramer(initialSize, maxSize int) framer {
	return framer{initialSize: initialSize, maxSize: maxSize}
}

// space returns the free tail of the buffer, doubling the buffer when it is
// full. Already buffered bytes are carried over unchanged.
func (f *framer) space() ([]byte, error) {
	if f.buf == nil {
		f.buf = make([]byte, f.initialSize)
	}

	if f.n == len(f.buf) {
		if len(f.buf) >= f.maxSize {
			return nil, f.fail(ErrRequestTooLarge)
		}

		buf := make([]byte, min(len(f.buf)*2, f.maxSize))
		copy(buf, f.buf[:f.n])
		f.buf = buf
		f.grows++
	}

	return f.buf[f.n:], nil
}

// commit accounts for n freshly read bytes and reports whether the message
// is complete.
func (f *framer) commit(n int) (bool, error) {
	f.n += n

	if f.state == stateReadingHeaders {
		from := max(f.scanned-(len(headerTerminator)-1), 0)
		i := bytes.Index(f.buf[from:f.n], headerTerminator)
		if i < 0 {
			f.scanned = f.n
			return false, nil
		}

		f.bodyStart = from + i + len(headerTerminator)
		length, err := contentLength(f.buf[:f.bodyStart])
		if err != nil {
			return false, f.fail(err)
		}

		f.expected = f.bodyStart + length
		if f.expected > f.maxSize {
			return false, f.fail(ErrRequestTooLarge)
		}
		f.state = stateReadingBody
	}

	switch {
	case f.n < f.expected:
		return false, nil
	case f.n > f.expected:
		return false, f.fail(ErrPipelined)
	}

	f.state = stateComplete
	return true, nil
}

func (f *framer) fail(err error) error {
	f.state = stateFailed
	return err
}

func (f *framer) message() []byte {
	return f.buf[:f.n]
}

func (f *framer) reset() {
	f.n = 0
	f.scanned = 0
	f.bodyStart = 0
	f.expected = 0
	f.state = stateReadingHeaders
}

// release drops buffers that grew past the initial size.
func (f *framer) release() {
	if len(f.buf) > f.initialSize {
		f.buf = nil
	}
	f.grows = 0
	f.reset()
}

// contentLength finds the Content-Length field in a complete header block.
// A missing field means an empty body. A repeated field is rejected.
func contentLength(head []byte) (int, error) {
	i := bytes.Index(head, contentLengthField)
	if i < 0 {
		return 0, nil
	}

	value := head[i+len(contentLengthField):]
	if bytes.Contains(value, contentLengthField) {
		return 0, ErrInvalidContentLength
	}
	if end := bytes.Index(value, crlf); end >= 0 {
		value = value[:end]
	}
	value = bytes.Trim(value, " \t")
	if len(value) == 0 {
		return 0, ErrInvalidContentLength
	}

	length := 0
	for _, c := range value {
		if c < '0' || c > '9' {
			return 0, ErrInvalidContentLength
		}
		length = length*10 + int(c-'0')
		if length > 1<<40 {
			return 0, ErrRequestTooLarge
		}
	}
	return length, nil
}
