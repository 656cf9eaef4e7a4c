package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gardenrelay/internal/garden/ingest"
	"gardenrelay/pkg/storage/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryWriter struct {
	mu      sync.Mutex
	records []*postgres.ConnectionEventRecord
	fail    bool
	block   chan struct{}
}

func (w *memoryWriter) InsertConnectionEvent(ctx context.Context, rec *postgres.ConnectionEventRecord) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("db down")
	}
	w.records = append(w.records, rec)
	return nil
}

func (w *memoryWriter) Records() []*postgres.ConnectionEventRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*postgres.ConnectionEventRecord(nil), w.records...)
}

// go test -v --run TestToRecord
func TestToRecord(t *testing.T) {
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	rec := ToRecord(ingest.Transition{
		From:   ingest.StateConnecting,
		To:     ingest.StateDisconnected,
		Source: "stream",
		Err:    errors.New("dial tcp: refused"),
		At:     at,
	})

	assert.Equal(t, &postgres.ConnectionEventRecord{
		Source:     "stream",
		FromState:  "connecting",
		ToState:    "disconnected",
		Error:      "dial tcp: refused",
		OccurredAt: at,
	}, rec)
}

// go test -v --run TestJournalWritesInOrder
func TestJournalWritesInOrder(t *testing.T) {
	w := &memoryWriter{}
	j := New(w, zap.NewNop(), 16)
	j.StartWorker()

	for _, to := range []ingest.State{ingest.StateConnecting, ingest.StateConnected, ingest.StateDisconnected} {
		j.OnTransition(ingest.Transition{To: to, Source: "poll"})
	}
	j.Close()
	j.Close()

	recs := w.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "connecting", recs[0].ToState)
	assert.Equal(t, "connected", recs[1].ToState)
	assert.Equal(t, "disconnected", recs[2].ToState)

	// events after Close are ignored rather than panicking on a closed channel
	j.OnTransition(ingest.Transition{To: ingest.StateConnecting})
	assert.Len(t, w.Records(), 3)
}

// go test -v --run TestJournalDropsWhenFull
func TestJournalDropsWhenFull(t *testing.T) {
	w := &memoryWriter{block: make(chan struct{})}
	j := New(w, zap.NewNop(), 2)
	// no worker yet: the buffer fills after two events
	for i := 0; i < 5; i++ {
		j.OnTransition(ingest.Transition{To: ingest.StateConnecting})
	}
	assert.Equal(t, 3, j.Dropped())

	close(w.block)
	j.StartWorker()
	j.Close()
	assert.Len(t, w.Records(), 2)
}

// go test -v --run TestJournalWriterErrors
func TestJournalWriterErrors(t *testing.T) {
	w := &memoryWriter{fail: true}
	j := New(w, zap.NewNop(), 4)
	j.StartWorker()
	j.OnTransition(ingest.Transition{To: ingest.StateConnected})
	j.Close()

	assert.Empty(t, w.Records())
}
