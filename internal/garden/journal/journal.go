package journal

import (
	"context"
	"sync"
	"time"

	"gardenrelay/internal/garden/ingest"
	"gardenrelay/pkg/storage/postgres"

	"go.uber.org/zap"
)

// EventWriter persists one connection event. *postgres.PostgresClient implements it.
type EventWriter interface {
	InsertConnectionEvent(ctx context.Context, record *postgres.ConnectionEventRecord) error
}

// Journal records ingestion transitions off the loop goroutine. When the
// buffer is full events are dropped and counted, never waited on.
type Journal struct {
	writer  EventWriter
	logger  *zap.Logger
	timeout time.Duration

	ch      chan *postgres.ConnectionEventRecord
	wg      sync.WaitGroup
	mu      sync.Mutex
	dropped int
	closed  bool
}

// New creates a Journal with room for buffer pending events.
func New(writer EventWriter, logger *zap.Logger, buffer int) *Journal {
	return &Journal{
		writer:  writer,
		logger:  logger.Named("journal"),
		timeout: 2 * time.Second,
		ch:      make(chan *postgres.ConnectionEventRecord, buffer),
	}
}

// ToRecord converts a loop transition into its database row.
func ToRecord(t ingest.Transition) *postgres.ConnectionEventRecord {
	rec := &postgres.ConnectionEventRecord{
		Source:     t.Source,
		FromState:  t.From.String(),
		ToState:    t.To.String(),
		OccurredAt: t.At,
	}
	if t.Err != nil {
		rec.Error = t.Err.Error()
	}
	return rec
}

// OnTransition implements ingest.Observer.
func (j *Journal) OnTransition(t ingest.Transition) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}

	select {
	case j.ch <- ToRecord(t):
	default:
		j.dropped++
		j.logger.Warn("journal buffer full, dropping event",
			zap.Stringer("to", t.To), zap.Int("dropped", j.dropped))
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (j *Journal) Dropped() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

// StartWorker drains the buffer into the writer until Close.
func (j *Journal) StartWorker() {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		for rec := range j.ch {
			ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
			err := j.writer.InsertConnectionEvent(ctx, rec)
			cancel()
			if err != nil {
				j.logger.Warn("failed to record connection event",
					zap.String("to", rec.ToState), zap.Error(err))
			}
		}
	}()
}

// Close stops accepting events and waits for the worker to flush what is buffered.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.ch)
	j.mu.Unlock()

	j.wg.Wait()
}
