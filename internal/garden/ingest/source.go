package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"gardenrelay/pkg/garden"
)

// ErrCycleDone ends a Link that delivered everything it had without failing,
// as a poll does after its single response.
var ErrCycleDone = errors.New("ingest: cycle complete")

// Source is one upstream shape behind the loop's common contract.
type Source interface {
	// Name labels logs, metrics and journal entries.
	Name() string
	// Endpoint is the upstream URL, for logs.
	Endpoint() string
	// Open establishes the link. Any error is a failed attempt.
	Open(ctx context.Context) (Link, error)
	// Backoff is the fixed delay before the next attempt.
	Backoff() time.Duration
}

// Link is one established upstream session.
type Link interface {
	// Next blocks for the next raw payload. ErrCycleDone means the session
	// finished cleanly; any other error means it failed.
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// StreamSource reads payloads from a long-lived WebSocket.
type StreamSource struct {
	client *garden.WSClient
	retry  time.Duration
}

// NewStreamSource reconnects after retry whenever the socket fails.
func NewStreamSource(client *garden.WSClient, retry time.Duration) *StreamSource {
	return &StreamSource{client: client, retry: retry}
}

func (s *StreamSource) Name() string           { return "stream" }
func (s *StreamSource) Backoff() time.Duration { return s.retry }
func (s *StreamSource) Endpoint() string       { return s.client.URL() }

func (s *StreamSource) Open(ctx context.Context) (Link, error) {
	conn, err := s.client.Dial(ctx)
	if err != nil {
		return nil, err
	}

	l := &streamLink{conn: conn, done: make(chan struct{})}
	// unblock a pending read when the loop is shut down
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-l.done:
		}
	}()
	return l, nil
}

type streamLink struct {
	conn      *garden.WSConn
	done      chan struct{}
	closeOnce sync.Once
}

func (l *streamLink) Next(context.Context) ([]byte, error) {
	return l.conn.ReadMessage()
}

func (l *streamLink) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return l.conn.Close()
}

// PollSource issues one bounded GET per cycle.
type PollSource struct {
	client   *garden.RESTClient
	interval time.Duration
	timeout  time.Duration
}

// NewPollSource polls every interval; each request is bounded by timeout.
func NewPollSource(client *garden.RESTClient, interval, timeout time.Duration) *PollSource {
	return &PollSource{client: client, interval: interval, timeout: timeout}
}

func (s *PollSource) Name() string           { return "poll" }
func (s *PollSource) Backoff() time.Duration { return s.interval }
func (s *PollSource) Endpoint() string       { return s.client.URL() }

// Open performs the request. Malformed bodies fail here, so a poll Link
// only ever carries a parsable payload.
func (s *PollSource) Open(ctx context.Context) (Link, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.client.FetchStock(ctx)
	if err != nil {
		return nil, err
	}
	return &pollLink{raw: raw}, nil
}

type pollLink struct {
	raw      []byte
	consumed bool
}

func (l *pollLink) Next(context.Context) ([]byte, error) {
	if l.consumed {
		return nil, ErrCycleDone
	}
	l.consumed = true
	return l.raw, nil
}

func (l *pollLink) Close() error { return nil }
