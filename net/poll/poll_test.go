//go:build linux

package poll

import (
	"testing"
	"time"

	"github.com/freekieb7/ember/test"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newPoller(t *testing.T) *Poller {
	t.Helper()

	p, err := New(16)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPollerTransitions(t *testing.T) {
	p := newPoller(t)
	a, b := socketPair(t)
	events := make([]Event, 16)

	test.Equal(t, 1, p.Armed())

	// admit
	test.NoError(t, p.Add(a, 7))
	test.Equal(t, 2, p.Armed())
	test.Equal(t, 1, p.Registered())

	// fire
	unix.Write(b, []byte("ping"))
	n, err := p.Wait(events, time.Second)
	test.NoError(t, err)
	test.Equal(t, 1, n)
	test.Equal(t, a, events[0].FD)
	test.Equal(t, uint32(7), events[0].Tag)
	test.Equal(t, false, events[0].Hangup)
	test.Equal(t, 1, p.Armed())
	test.Equal(t, 1, p.Registered())

	// one-shot: unread data does not fire again
	n, err = p.Wait(events, 50*time.Millisecond)
	test.NoError(t, err)
	test.Equal(t, 0, n)

	// re-arm: pending data is reported again
	test.NoError(t, p.Rearm(a, 8))
	test.Equal(t, 2, p.Armed())
	n, err = p.Wait(events, time.Second)
	test.NoError(t, err)
	test.Equal(t, 1, n)
	test.Equal(t, uint32(8), events[0].Tag)
	test.Equal(t, 1, p.Armed())

	// remove after fire
	test.NoError(t, p.Remove(a))
	test.Equal(t, 1, p.Armed())
	test.Equal(t, 0, p.Registered())
}

func TestPollerRemoveArmed(t *testing.T) {
	p := newPoller(t)
	a, _ := socketPair(t)

	test.NoError(t, p.Add(a, 1))
	test.Equal(t, 2, p.Armed())
	test.NoError(t, p.Remove(a))
	test.Equal(t, 1, p.Armed())

	// unknown descriptors are ignored
	test.NoError(t, p.Remove(a))
	test.Equal(t, 1, p.Armed())
}

func TestPollerMisuse(t *testing.T) {
	p := newPoller(t)
	a, _ := socketPair(t)

	test.NoError(t, p.Add(a, 1))
	test.ErrorIs(t, p.Add(a, 1), ErrRegistered)
	test.ErrorIs(t, p.Rearm(a, 1), ErrNotFired)
	test.ErrorIs(t, p.Rearm(12345, 1), ErrNotFired)
	test.Equal(t, 2, p.Armed())
}

func TestPollerWake(t *testing.T) {
	p := newPoller(t)
	events := make([]Event, 4)

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Wake()
	}()

	start := time.Now()
	n, err := p.Wait(events, 5*time.Second)
	test.NoError(t, err)
	test.Equal(t, 0, n)
	test.True(t, time.Since(start) < 5*time.Second, "wake did not interrupt wait")

	// the wake counter was drained
	n, err = p.Wait(events, 20*time.Millisecond)
	test.NoError(t, err)
	test.Equal(t, 0, n)
}

func TestPollerHangup(t *testing.T) {
	p := newPoller(t)
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fds[0])

	test.NoError(t, p.Add(fds[0], 3))
	unix.Close(fds[1])

	events := make([]Event, 4)
	n, err := p.Wait(events, time.Second)
	test.NoError(t, err)
	test.Equal(t, 1, n)
	test.Equal(t, true, events[0].Hangup)
}
