package memorystore

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"
)

// SnapshotStore holds the single latest Snapshot. Writers build a new
// immutable Snapshot and swap it in; readers load the pointer without
// taking any lock, so a reader never waits on the writer and never sees a
// half-applied Update.
type SnapshotStore struct {
	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewSnapshotStore returns a store holding the empty, disconnected Snapshot.
func NewSnapshotStore() *SnapshotStore {
	s := &SnapshotStore{}
	s.current.Store(&Snapshot{Stock: Stock{}.clone()})
	return s
}

// Read returns a copy of the current Snapshot.
func (s *SnapshotStore) Read() Snapshot {
	cur := s.current.Load()

	out := *cur
	out.Stock = cur.Stock.clone()
	if cur.Timestamp != nil {
		ts := *cur.Timestamp
		out.Timestamp = &ts
	}
	out.RawResponse = bytes.Clone(cur.RawResponse)
	return out
}

// Connected reports the connectivity flag without copying the item lists.
func (s *SnapshotStore) Connected() bool {
	return s.current.Load().Connected
}

// Write atomically applies u. The stored timestamp never moves backwards:
// an older u.Timestamp is clamped to the current one.
func (s *SnapshotStore) Write(u Update) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Stored slices are never mutated in place, so a shallow copy is a safe base.
	next := *s.current.Load()

	if u.Stock != nil {
		next.Stock = u.Stock.clone()
	}
	if u.Connected != nil {
		next.Connected = *u.Connected
	}
	if u.Timestamp != nil {
		ts := *u.Timestamp
		if next.Timestamp != nil && ts.Before(*next.Timestamp) {
			ts = *next.Timestamp
		}
		next.Timestamp = &ts
	}
	if u.RawResponse != nil {
		next.RawResponse = bytes.Clone(u.RawResponse)
	}

	s.current.Store(&next)
}

// SetConnected is the connectivity-only Write used on state transitions.
func (s *SnapshotStore) SetConnected(connected bool) {
	s.Write(Update{Connected: &connected})
}

// Publish replaces the stock, raw payload and timestamp in one Write.
func (s *SnapshotStore) Publish(stock Stock, raw []byte, at time.Time) {
	s.Write(Update{
		Stock:       &stock,
		Timestamp:   &at,
		RawResponse: raw,
	})
}
