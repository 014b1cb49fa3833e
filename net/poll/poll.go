//go:build linux

// Package poll is a thin layer over epoll. Connection descriptors are
// registered edge-triggered and one-shot: after a descriptor fires it stays
// silent until it is explicitly re-armed. An eventfd is kept registered so
// other goroutines can interrupt Wait.
//
// A Poller is owned by a single goroutine. Only Wake may be called
// concurrently.
package poll

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

var (
	ErrRegistered = errors.New("poll: descriptor already registered")
	ErrNotFired   = errors.New("poll: descriptor is armed or not registered")
)

const connEvents = unix.EPOLLIN | unix.EPOLLET | unix.EPOLLONESHOT

type Event struct {
	FD     int
	Tag    uint32
	Hangup bool // EPOLLERR or EPOLLHUP was reported
}

type fdState uint8

const (
	stateArmed fdState = iota + 1
	stateFired
)

type Poller struct {
	epfd   int
	wakefd int

	fds   map[int]fdState
	armed int

	raw []unix.EpollEvent
}

func New(maxEvents int) (*Poller, error) {
	if maxEvents < 1 {
		maxEvents = 1
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("poll: epoll_create1: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("poll: eventfd: %w", err)
	}

	// the wake descriptor is level-triggered and never disarmed
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakefd),
	}); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("poll: register wake descriptor: %w", err)
	}

	return &Poller{
		epfd:   epfd,
		wakefd: wakefd,
		fds:    make(map[int]fdState),
		raw:    make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Add registers fd for a single readable notification carrying tag.
func (p *Poller) Add(fd int, tag uint32) error {
	if _, ok := p.fds[fd]; ok {
		return ErrRegistered
	}

	if err := p.ctl(unix.EPOLL_CTL_ADD, fd, tag); err != nil {
		return err
	}

	p.fds[fd] = stateArmed
	p.armed++
	return nil
}

// Rearm enables another notification for a descriptor that already fired.
func (p *Poller) Rearm(fd int, tag uint32) error {
	if p.fds[fd] != stateFired {
		return ErrNotFired
	}

	if err := p.ctl(unix.EPOLL_CTL_MOD, fd, tag); err != nil {
		return err
	}

	p.fds[fd] = stateArmed
	p.armed++
	return nil
}

// Remove deregisters fd. Removing an unknown descriptor is a no-op.
func (p *Poller) Remove(fd int) error {
	state, ok := p.fds[fd]
	if !ok {
		return nil
	}

	delete(p.fds, fd)
	if state == stateArmed {
		p.armed--
	}

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("poll: epoll_ctl del %d: %w", fd, err)
	}
	return nil
}

// Armed reports how many descriptors can currently produce an event,
// the wake descriptor included.
func (p *Poller) Armed() int {
	return p.armed + 1
}

// Registered reports how many connection descriptors are known to the poller,
// armed or fired.
func (p *Poller) Registered() int {
	return len(p.fds)
}

// Wait blocks until at least one descriptor is ready, Wake is called or the
// timeout expires. A negative timeout waits forever. Wake notifications are
// consumed here and never returned as events.
func (p *Poller) Wait(events []Event, timeout time.Duration) (int, error) {
	size := min(p.Armed(), len(p.raw), len(events))
	if size < 1 {
		size = 1
	}

	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}

	n, err := unix.EpollWait(p.epfd, p.raw[:size], ms)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("poll: epoll_wait: %w", err)
	}

	out := 0
	for _, ev := range p.raw[:n] {
		fd := int(ev.Fd)
		if fd == p.wakefd {
			p.drainWake()
			continue
		}

		if p.fds[fd] == stateArmed {
			p.fds[fd] = stateFired
			p.armed--
		}

		events[out] = Event{
			FD:     fd,
			Tag:    uint32(ev.Pad),
			Hangup: ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		}
		out++
	}

	return out, nil
}

// Wake interrupts a concurrent or the next Wait. Safe for concurrent use.
func (p *Poller) Wake() error {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)

	_, err := unix.Write(p.wakefd, one[:])
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("poll: wake: %w", err)
	}
	return nil
}

func (p *Poller) Close() error {
	return errors.Join(unix.Close(p.wakefd), unix.Close(p.epfd))
}

func (p *Poller) drainWake() {
	var buf [8]byte
	unix.Read(p.wakefd, buf[:])
}

func (p *Poller) ctl(op, fd int, tag uint32) error {
	if err := unix.EpollCtl(p.epfd, op, fd, &unix.EpollEvent{
		Events: connEvents,
		Fd:     int32(fd),
		Pad:    int32(tag),
	}); err != nil {
		return fmt.Errorf("poll: epoll_ctl %d: %w", fd, err)
	}
	return nil
}
