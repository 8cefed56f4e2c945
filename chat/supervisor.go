package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syaihu/Thunderirc-Radio/irc"
	"github.com/syaihu/Thunderirc-Radio/telemetry"
)

// IRCTransport is the connection side of the IRC session.
type IRCTransport interface {
	Connect(ctx context.Context) error
	Connected() bool
	ReadLines(timeout time.Duration) ([]string, error)
	Close(reason string)
}

// EventTransport is the connection side of the event publisher.
type EventTransport interface {
	Connect(ctx context.Context) error
	Connected() bool
	Close()
}

// MessageHandler consumes parsed IRC messages.
type MessageHandler interface {
	Dispatch(ctx context.Context, msg *irc.Message)
}

// Options tune the supervisor loops.
type Options struct {
	// ReadTimeout bounds a single poll of the IRC connection.
	ReadTimeout time.Duration
	// IdleInterval is how long the receive loop sleeps while IRC is down.
	IdleInterval time.Duration
	// HealthInterval is the period between connection checks.
	HealthInterval time.Duration
	ShutdownGrace  time.Duration
	QuitMessage    string
}

func (o *Options) defaults() {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = time.Second
	}
	if o.IdleInterval <= 0 {
		o.IdleInterval = time.Second
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = 30 * time.Second
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 5 * time.Second
	}
}

// Status is a point-in-time view of the relay's connections.
type Status struct {
	Running          bool
	IRC              bool
	Events           bool
	InflightRequests int
}

// Supervisor owns the receive loop and the health loop and runs the shutdown sequence.
type Supervisor struct {
	irc      IRCTransport
	events   EventTransport
	dispatch MessageHandler
	tasks    *TaskSet
	opts     Options
	log      *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	running bool
}

// NewSupervisor wires the loops together. tasks may be nil when nothing runs detached.
func NewSupervisor(ircT IRCTransport, evT EventTransport, dispatch MessageHandler, tasks *TaskSet, opts Options, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if tasks == nil {
		tasks = NewTaskSet(logger)
	}
	opts.defaults()
	return &Supervisor{
		irc:      ircT,
		events:   evT,
		dispatch: dispatch,
		tasks:    tasks,
		opts:     opts,
		log:      logger.With(slog.String("component", "supervisor")),
	}
}

// Run connects both transports and blocks until ctx is cancelled or Stop is
// called, then shuts down. Only a failed initial IRC connection is an error;
// the event stream may start disconnected and is retried by the health loop.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	if s.stopped {
		cancel()
	}
	s.mu.Unlock()

	s.log.Info("starting relay")
	if err := s.irc.Connect(ctx); err != nil {
		s.log.Error("failed to connect to irc", slog.Any("err", err))
		return fmt.Errorf("initial irc connect: %w", err)
	}
	if err := s.events.Connect(ctx); err != nil {
		s.log.Error("failed to connect to event stream; will retry", slog.Any("err", err))
	}

	s.setRunning(true)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.receiveLoop(gctx)
		return nil
	})
	g.Go(func() error {
		s.healthLoop(gctx)
		return nil
	})
	_ = g.Wait()
	s.setRunning(false)

	s.shutdown()
	return nil
}

// Stop ends Run. It is safe to call more than once; a Stop that comes
// before Run makes Run fail its initial connect.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Status reports the current connection state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return Status{
		Running:          running,
		IRC:              s.irc.Connected(),
		Events:           s.events.Connected(),
		InflightRequests: s.tasks.Active(),
	}
}

func (s *Supervisor) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Supervisor) receiveLoop(ctx context.Context) {
	for ctx.Err() == nil {
		if !s.irc.Connected() {
			if !sleepCtx(ctx, s.opts.IdleInterval) {
				return
			}
			continue
		}
		lines, err := s.irc.ReadLines(s.opts.ReadTimeout)
		for _, line := range lines {
			s.handleLine(ctx, line)
		}
		if err != nil && !errors.Is(err, irc.ErrNotConnected) {
			s.log.Debug("irc read failed", slog.Any("err", err))
		}
	}
}

func (s *Supervisor) handleLine(ctx context.Context, line string) {
	telemetry.IncLinesReceived()
	s.log.Debug("received", slog.String("line", line))
	msg, err := irc.Parse(line)
	if err != nil {
		telemetry.IncParseFailures()
		s.log.Warn("failed to parse irc line", slog.String("line", line), slog.Any("err", err))
		return
	}
	s.dispatch.Dispatch(ctx, msg)
}

func (s *Supervisor) healthLoop(ctx context.Context) {
	t := time.NewTicker(s.opts.HealthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		s.checkConnections(ctx)
	}
}

// checkConnections reconnects whichever transport is down. The two attempts
// run side by side so a slow IRC dial never delays the event stream.
func (s *Supervisor) checkConnections(ctx context.Context) {
	var g errgroup.Group
	if !s.irc.Connected() {
		g.Go(func() error {
			s.log.Info("attempting to reconnect to irc")
			err := s.irc.Connect(ctx)
			telemetry.ObserveReconnect("irc", err)
			if err != nil {
				s.log.Error("irc reconnect failed", slog.Any("err", err))
			}
			return nil
		})
	}
	if !s.events.Connected() {
		g.Go(func() error {
			s.log.Info("attempting to reconnect to event stream")
			err := s.events.Connect(ctx)
			telemetry.ObserveReconnect("events", err)
			if err != nil {
				s.log.Error("event stream reconnect failed", slog.Any("err", err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Supervisor) shutdown() {
	s.log.Info("stopping relay")
	if n := s.tasks.Shutdown(s.opts.ShutdownGrace); n > 0 {
		s.log.Warn("abandoned in-flight requests", slog.Int("count", n))
	}
	s.irc.Close(s.opts.QuitMessage)
	s.events.Close()
	s.log.Info("relay stopped")
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
