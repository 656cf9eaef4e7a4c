package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"gardenrelay/internal/garden/memorystore"
	"gardenrelay/internal/garden/stream"

	"go.uber.org/zap"
)

// Loop keeps the snapshot fresh from one Source. It is the store's only writer.
type Loop struct {
	source    Source
	store     *memorystore.SnapshotStore
	handle    stream.Handler
	clock     Clock
	logger    *zap.Logger
	observers []Observer

	mu    sync.RWMutex
	state State
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithObserver adds a transition observer; observers run in the order added.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// NewLoop wires source to store through handle.
func NewLoop(source Source, store *memorystore.SnapshotStore, handle stream.Handler,
	logger *zap.Logger, opts ...Option) *Loop {
	l := &Loop{
		source: source,
		store:  store,
		handle: handle,
		clock:  RealClock(),
		logger: logger.Named("ingest").With(zap.String("source", source.Name())),
		state:  StateDisconnected,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current connectivity state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Run drives the state machine until ctx is cancelled. Upstream failures
// never end it: each is logged, marks the snapshot disconnected and is
// retried after the source's fixed backoff, without limit.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("ingestion loop started",
		zap.String("endpoint", l.source.Endpoint()),
		zap.Duration("backoff", l.source.Backoff()))
	defer l.logger.Info("ingestion loop stopped")

	for ctx.Err() == nil {
		l.attempt(ctx)
		if ctx.Err() != nil {
			break
		}
		if !l.sleep(ctx, l.source.Backoff()) {
			break
		}
	}
	l.transition(StateDisconnected, nil)
}

// attempt runs one Connecting -> Connected -> (Disconnected) cycle.
func (l *Loop) attempt(ctx context.Context) {
	l.transition(StateConnecting, nil)

	link, err := l.source.Open(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.transition(StateDisconnected, err)
		}
		return
	}
	defer link.Close()

	l.transition(StateConnected, nil)

	err = l.consume(ctx, link)
	switch {
	case ctx.Err() != nil:
	case errors.Is(err, ErrCycleDone):
		// healthy until the next attempt begins
	default:
		l.transition(StateDisconnected, err)
	}
}

func (l *Loop) consume(ctx context.Context, link Link) error {
	for {
		msg, err := link.Next(ctx)
		if err != nil {
			return err
		}
		// malformed payloads are logged by the handler and skipped
		_ = l.handle(msg)
	}
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-l.clock.After(d):
		return true
	}
}

// transition records the new state, writes the matching connected flag and
// notifies observers.
func (l *Loop) transition(to State, cause error) {
	l.mu.Lock()
	from := l.state
	l.state = to
	l.mu.Unlock()

	l.store.SetConnected(to == StateConnected)

	switch {
	case cause != nil:
		l.logger.Warn("upstream failure, retrying",
			zap.Stringer("from", from),
			zap.Duration("retry_in", l.source.Backoff()),
			zap.Error(cause))
	case to == StateConnected:
		l.logger.Info("upstream connected")
	default:
		l.logger.Debug("state change", zap.Stringer("from", from), zap.Stringer("to", to))
	}

	t := Transition{From: from, To: to, Source: l.source.Name(), Err: cause, At: l.clock.Now()}
	for _, o := range l.observers {
		o.OnTransition(t)
	}
}
