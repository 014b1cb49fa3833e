package http

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/sys/unix"
)

const (
	acceptPollInterval = 100 * time.Millisecond
	acceptBackoff      = 10 * time.Millisecond
)

// listen opens a non-blocking IPv4 listening socket.
func listen(host string, port, backlog int) (int, netip.AddrPort, error) {
	ip := netip.IPv4Unspecified()
	if host != "" {
		addr, err := netip.ParseAddr(host)
		if err != nil {
			return -1, netip.AddrPort{}, fmt.Errorf("http: listen: %w", err)
		}
		addr = addr.Unmap()
		if !addr.Is4() {
			return -1, netip.AddrPort{}, fmt.Errorf("http: listen: %s is not an IPv4 address", host)
		}
		ip = addr
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, netip.AddrPort{}, fmt.Errorf("http: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, netip.AddrPort{}, fmt.Errorf("http: setsockopt: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port, Addr: ip.As4()}); err != nil {
		unix.Close(fd)
		return -1, netip.AddrPort{}, fmt.Errorf("http: bind %s: %w", netip.AddrPortFrom(ip, uint16(port)), err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, netip.AddrPort{}, fmt.Errorf("http: listen: %w", err)
	}

	sa, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return -1, netip.AddrPort{}, fmt.Errorf("http: getsockname: %w", err)
	}
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		port = sa4.Port
	}

	return fd, netip.AddrPortFrom(ip, uint16(port)), nil
}

// accept runs on its own goroutine. It only accepts descriptors and forwards
// them to the dispatcher. It owns lfd and closes it on return.
func (d *dispatcher) accept(lfd int) error {
	defer d.poller.Wake()
	defer unix.Close(lfd)

	fds := []unix.PollFd{{Fd: int32(lfd), Events: unix.POLLIN}}
	for {
		select {
		case <-d.quit:
			return nil
		default:
		}

		nfd, _, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == nil:
			d.srv.stats.accepted.Add(1)
			select {
			case d.accepted <- nfd:
				d.poller.Wake()
			case <-d.quit:
				unix.Close(nfd)
				return nil
			}

		case errors.Is(err, unix.EAGAIN):
			if _, err := unix.Poll(fds, int(acceptPollInterval.Milliseconds())); err != nil && !errors.Is(err, unix.EINTR) {
				return fmt.Errorf("%w: poll: %w", ErrAcceptorFailed, err)
			}

		case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED), errors.Is(err, unix.EPROTO):

		case errors.Is(err, unix.EMFILE), errors.Is(err, unix.ENFILE),
			errors.Is(err, unix.ENOBUFS), errors.Is(err, unix.ENOMEM):
			d.logger.Warn("accept: out of resources, backing off", "error", err)
			time.Sleep(acceptBackoff)

		default:
			return fmt.Errorf("%w: %w", ErrAcceptorFailed, err)
		}
	}
}
