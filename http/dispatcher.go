package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/freekieb7/ember/net/poll"
	"golang.org/x/sys/unix"
)

const (
	maxEvents       = 1024
	dispatchTimeout = time.Second
)

// dispatcher owns every connection that is not currently held by a worker.
// All of its fields are confined to the goroutine running run, except for
// the channels and the poller's Wake.
type dispatcher struct {
	srv     *Server
	cfg     *Config
	handler Handler
	logger  *slog.Logger
	metrics *instruments
	poller  *poll.Poller

	accepted chan int
	done     chan completion
	quit     <-chan struct{}

	conns    map[int]*Conn
	pending  ring[int]
	ready    ring[*Conn]
	workers  *WorkerPool
	admitted int
	nextID   uint64
	stopping bool
}

func newDispatcher(srv *Server, inst *instruments) (*dispatcher, error) {
	cfg := &srv.Config

	poller, err := poll.New(min(cfg.MaxConnections, maxEvents))
	if err != nil {
		return nil, err
	}

	return &dispatcher{
		srv:      srv,
		cfg:      cfg,
		handler:  srv.Handler,
		logger:   srv.logger,
		metrics:  inst,
		poller:   poller,
		accepted: make(chan int, min(cfg.Backlog, maxEvents)),
		done:     make(chan completion, cfg.MaxWorkers),
		quit:     srv.quit,
		conns:    make(map[int]*Conn, min(cfg.MaxConnections, maxEvents)),
		pending:  newRing[int](min(cfg.MaxConnections, maxEvents), cfg.MaxPending),
		ready:    newRing[*Conn](min(cfg.MaxConnections, maxEvents), 0),
		workers:  NewWorkerPool(cfg.MaxWorkers),
	}, nil
}

// run is the dispatch loop. Every iteration waits for readiness, then
// collects new connections, finished workers and readable connections, and
// finally admits and assigns as far as capacity allows.
func (d *dispatcher) run(acceptorDone <-chan error) error {
	d.workers.start(d.work)

	events := make([]poll.Event, min(d.cfg.MaxConnections, maxEvents))
	acceptorRunning := true
	var failure error

	for !d.stopping {
		n, err := d.poller.Wait(events, dispatchTimeout)
		if err != nil {
			failure = err
			d.beginStop()
			break
		}

		select {
		case err := <-acceptorDone:
			acceptorRunning = false
			if err != nil {
				failure = err
				d.beginStop()
			}
		default:
		}

		select {
		case <-d.quit:
			d.beginStop()
		default:
		}

		d.drainAccepted()
		d.drainCompletions()
		for _, ev := range events[:n] {
			d.onReadable(ev)
		}
		d.admit()
		d.assign()
		d.publish()
	}

	d.finish(acceptorDone, acceptorRunning)
	return failure
}

func (d *dispatcher) drainAccepted() {
	for {
		select {
		case fd := <-d.accepted:
			if d.stopping {
				unix.Close(fd)
				continue
			}
			if err := d.pending.Enqueue(fd); err != nil {
				d.srv.stats.rejected.Add(1)
				unix.Close(fd)
				d.metrics.rejected.Add(context.Background(), 1)
				d.logger.Warn("pending queue full, connection rejected", "fd", fd)
				continue
			}
			d.metrics.pending.Add(context.Background(), 1)
		default:
			return
		}
	}
}

func (d *dispatcher) drainCompletions() {
	for {
		select {
		case cm := <-d.done:
			d.complete(cm)
		default:
			return
		}
	}
}

// complete takes a connection back from a worker. It either goes back to
// waiting for readability or is closed.
func (d *dispatcher) complete(cm completion) {
	c := cm.slot.conn
	d.workers.release(cm.slot)
	d.metrics.busy.Add(context.Background(), -1)

	if cm.verdict == verdictClose || d.stopping {
		d.closeConn(c)
		return
	}

	c.state = connAwaiting
	if err := d.poller.Rearm(c.fd, c.tag()); err != nil {
		d.logger.Error("rearm failed", "conn", c.id, "fd", c.fd, "error", err)
		d.closeConn(c)
	}
}

func (d *dispatcher) onReadable(ev poll.Event) {
	c, ok := d.conns[ev.FD]
	if !ok || c.tag() != ev.Tag || c.state != connAwaiting {
		d.logger.Debug("stale readiness event", "fd", ev.FD)
		return
	}

	if ev.Hangup {
		d.closeConn(c)
		return
	}

	c.state = connReady
	d.ready.Enqueue(c)
}

func (d *dispatcher) admit() {
	for !d.stopping && d.admitted < d.cfg.MaxConnections && d.pending.Len() > 0 {
		fd, _ := d.pending.Dequeue()
		d.metrics.pending.Add(context.Background(), -1)

		d.nextID++
		c := acquireConn(fd, d.nextID, d.cfg)
		if err := d.poller.Add(fd, c.tag()); err != nil {
			d.logger.Error("register connection", "fd", fd, "error", err)
			unix.Close(fd)
			releaseConn(c)
			continue
		}

		d.conns[fd] = c
		d.admitted++
		d.metrics.admitted.Add(context.Background(), 1)
	}
}

func (d *dispatcher) assign() {
	for !d.stopping && d.ready.Len() > 0 {
		s, ok := d.workers.acquire()
		if !ok {
			return
		}

		c, _ := d.ready.Dequeue()
		c.state = connAssigned
		s.conn = c
		d.metrics.busy.Add(context.Background(), 1)
		s.tasks <- c
	}
}

func (d *dispatcher) closeConn(c *Conn) {
	if err := d.poller.Remove(c.fd); err != nil {
		d.logger.Debug("deregister connection", "conn", c.id, "fd", c.fd, "error", err)
	}
	unix.Close(c.fd)
	delete(d.conns, c.fd)
	d.admitted--
	d.metrics.admitted.Add(context.Background(), -1)
	releaseConn(c)
}

func (d *dispatcher) publish() {
	d.srv.stats.admitted.Store(int64(d.admitted))
	d.srv.stats.pending.Store(int64(d.pending.Len()))
	d.srv.stats.ready.Store(int64(d.ready.Len()))
	d.srv.stats.busy.Store(int64(d.workers.Busy()))
}

// beginStop drops everything no worker is holding. Connections owned by
// workers are closed as their completions arrive.
func (d *dispatcher) beginStop() {
	if d.stopping {
		return
	}
	d.stopping = true
	d.srv.signalQuit()

	for d.pending.Len() > 0 {
		fd, _ := d.pending.Dequeue()
		unix.Close(fd)
		d.metrics.pending.Add(context.Background(), -1)
	}
	for d.ready.Len() > 0 {
		c, _ := d.ready.Dequeue()
		d.closeConn(c)
	}
	for _, c := range d.conns {
		if c.state == connAwaiting {
			d.closeConn(c)
		}
	}
}

// finish waits for busy workers and the acceptor, then tears the pool and
// the poller down. Workers touch the poller until their goroutines exit, so
// the poller is closed last.
func (d *dispatcher) finish(acceptorDone <-chan error, acceptorRunning bool) {
	for d.workers.Busy() > 0 {
		d.complete(<-d.done)
	}
	if acceptorRunning {
		if err := <-acceptorDone; err != nil {
			d.logger.Error("acceptor stopped", "error", err)
		}
	}
	d.drainAccepted()

	d.workers.stop()
	if err := d.poller.Close(); err != nil {
		d.logger.Error("close poller", "error", err)
	}
	d.publish()
}

func (c *Conn) tag() uint32 {
	return uint32(c.id)
}
