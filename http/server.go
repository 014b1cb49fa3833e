package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sys/unix"
)

type Config struct {
	Host string
	Port int

	MaxConnections int // admitted connections, registered with the poller
	MaxWorkers     int
	MaxPending     int // accepted but not yet admitted, 0 for unbounded
	Backlog        int

	InitialBufferSize int
	MaxRequestSize    int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.Backlog == 0 {
		cfg.Backlog = DefaultBacklog
	}
	if cfg.InitialBufferSize == 0 {
		cfg.InitialBufferSize = DefaultReadBufferSize
	}
	if cfg.MaxRequestSize == 0 {
		cfg.MaxRequestSize = MaxRequestSize
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	return cfg
}

func (cfg Config) Validate() error {
	var errs []error
	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", cfg.Port))
	}
	if cfg.MaxConnections < 1 {
		errs = append(errs, errors.New("max connections must be positive"))
	}
	if cfg.MaxWorkers < 1 {
		errs = append(errs, errors.New("max workers must be positive"))
	}
	if cfg.MaxPending < 0 {
		errs = append(errs, errors.New("max pending must not be negative"))
	}
	if cfg.InitialBufferSize < 1 {
		errs = append(errs, errors.New("initial buffer size must be positive"))
	}
	if cfg.MaxRequestSize < cfg.InitialBufferSize {
		errs = append(errs, errors.New("max request size is smaller than the initial buffer size"))
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Stats is a point-in-time snapshot of the dispatcher's bookkeeping.
type Stats struct {
	Admitted int
	Pending  int
	Ready    int
	Busy     int
	Accepted uint64
	Rejected uint64
	Served   uint64
}

type stats struct {
	admitted atomic.Int64
	pending  atomic.Int64
	ready    atomic.Int64
	busy     atomic.Int64
	accepted atomic.Uint64
	rejected atomic.Uint64
	served   atomic.Uint64
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Server) {
		s.meterProvider = mp
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracerProvider = tp
	}
}

type Server struct {
	Name    string
	Config  Config
	Handler Handler

	logger         *slog.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	mu       sync.Mutex
	lfd      int
	addr     netip.AddrPort
	running  bool
	quit     chan struct{}
	quitOnce sync.Once
	finished chan struct{}

	stats stats
}

func NewServer(name string, cfg Config, handler Handler, opts ...Option) *Server {
	s := &Server{
		Name:     name,
		Config:   cfg.withDefaults(),
		Handler:  handler,
		lfd:      -1,
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("server", name)
	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}
	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}
	return s
}

// Listen binds the listening socket. Port 0 picks a free port, see Addr.
func (s *Server) Listen() error {
	if err := s.Config.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lfd >= 0 || s.running {
		return ErrServerRunning
	}

	fd, addr, err := listen(s.Config.Host, s.Config.Port, s.Config.Backlog)
	if err != nil {
		return err
	}
	s.lfd = fd
	s.addr = addr
	return nil
}

func (s *Server) Addr() netip.AddrPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Serve runs the acceptor, the dispatcher and the worker pool until Shutdown
// is called or the acceptor fails. After a requested shutdown it returns
// ErrServerClosed.
func (s *Server) Serve() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrServerRunning
	}
	if s.lfd < 0 {
		s.mu.Unlock()
		return ErrNotListening
	}
	s.running = true
	lfd := s.lfd
	s.lfd = -1 // owned by the acceptor from here on
	s.mu.Unlock()
	defer close(s.finished)

	inst, err := newInstruments(s.meterProvider, s.tracerProvider)
	if err != nil {
		unix.Close(lfd)
		return fmt.Errorf("http: create instruments: %w", err)
	}

	d, err := newDispatcher(s, inst)
	if err != nil {
		unix.Close(lfd)
		return err
	}

	s.logger.Info("server started",
		"addr", s.addr.String(),
		"max_connections", s.Config.MaxConnections,
		"max_workers", s.Config.MaxWorkers,
	)

	acceptorDone := make(chan error, 1)
	go func() {
		acceptorDone <- d.accept(lfd)
	}()

	if err := d.run(acceptorDone); err != nil {
		s.logger.Error("server stopped", "error", err)
		return err
	}

	s.logger.Info("server stopped")
	return ErrServerClosed
}

func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown stops accepting, closes idle and queued connections, and waits for
// in-flight requests to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.signalQuit()

	s.mu.Lock()
	running := s.running
	if !running && s.lfd >= 0 {
		unix.Close(s.lfd)
		s.lfd = -1
	}
	s.mu.Unlock()

	if !running {
		return nil
	}

	select {
	case <-s.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) Stats() Stats {
	return Stats{
		Admitted: int(s.stats.admitted.Load()),
		Pending:  int(s.stats.pending.Load()),
		Ready:    int(s.stats.ready.Load()),
		Busy:     int(s.stats.busy.Load()),
		Accepted: s.stats.accepted.Load(),
		Rejected: s.stats.rejected.Load(),
		Served:   s.stats.served.Load(),
	}
}

func (s *Server) signalQuit() {
	s.quitOnce.Do(func() {
		close(s.quit)
	})
}
