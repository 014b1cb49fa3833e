package http

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// connState is only read and written by the dispatcher.
type connState uint8

const (
	connAwaiting connState = iota // registered, waiting for readability
	connReady                     // fired, queued for a worker
	connAssigned                  // owned by a worker
)

// Conn is one admitted client connection. While a worker owns it, nothing
// else touches its descriptor or buffers.
type Conn struct {
	fd    int
	id    uint64
	state connState

	framer framer
	wbuf   []byte

	readTimeout  time.Duration
	writeTimeout time.Duration

	ctx RequestCtx
}

var connPool = sync.Pool{
	New: func() any {
		return &Conn{fd: -1}
	},
}

func acquireConn(fd int, id uint64, cfg *Config) *Conn {
	c := connPool.Get().(*Conn)
	c.fd = fd
	c.id = id
	c.state = connAwaiting
	c.framer.initialSize = cfg.InitialBufferSize
	c.framer.maxSize = cfg.MaxRequestSize
	c.readTimeout = cfg.ReadTimeout
	c.writeTimeout = cfg.WriteTimeout
	c.ctx.conn = c
	return c
}

// releaseConn returns c to the pool. The descriptor must already be closed.
func releaseConn(c *Conn) {
	c.framer.release()
	if cap(c.wbuf) > c.framer.initialSize {
		c.wbuf = nil
	}
	c.ctx.reset()
	c.fd = -1
	c.id = 0
	connPool.Put(c)
}

// ID is unique per admission, unlike the descriptor number.
func (c *Conn) ID() uint64 {
	return c.id
}

// receive reads exactly one message and parses it into c.ctx.Request.
// io.EOF means the peer closed before sending anything.
func (c *Conn) receive() error {
	c.framer.reset()

	for {
		p, err := c.framer.space()
		if err != nil {
			return err
		}

		n, err := unix.Read(c.fd, p)
		switch {
		case err == nil && n == 0:
			if c.framer.n == 0 {
				c.framer.fail(io.EOF)
				return io.EOF
			}
			return c.framer.fail(io.ErrUnexpectedEOF)
		case err == nil:
			done, err := c.framer.commit(n)
			if err != nil {
				return err
			}
			if done {
				return c.ctx.Request.Parse(c.framer.message())
			}
		case errors.Is(err, unix.EINTR):
		case errors.Is(err, unix.EAGAIN):
			if err := c.wait(unix.POLLIN, c.readTimeout); err != nil {
				return c.framer.fail(err)
			}
		default:
			return c.framer.fail(fmt.Errorf("http: read: %w", err))
		}
	}
}

// send writes all of p, waiting for the socket to drain when needed.
func (c *Conn) send(p []byte) error {
	for len(p) > 0 {
		n, err := unix.SendmsgN(c.fd, p, nil, nil, unix.MSG_NOSIGNAL)
		if n > 0 {
			p = p[n:]
		}

		switch {
		case err == nil:
		case errors.Is(err, unix.EINTR):
		case errors.Is(err, unix.EAGAIN):
			if err := c.wait(unix.POLLOUT, c.writeTimeout); err != nil {
				return err
			}
		default:
			return fmt.Errorf("http: send: %w", err)
		}
	}
	return nil
}

func (c *Conn) wait(events int16, timeout time.Duration) error {
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: events}}
	deadline := time.Now().Add(timeout)

	for {
		ms := int(time.Until(deadline).Milliseconds())
		if ms <= 0 {
			return ErrTimeout
		}

		n, err := unix.Poll(fds, ms)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			return fmt.Errorf("http: poll: %w", err)
		case n == 0:
			return ErrTimeout
		}
		return nil
	}
}
