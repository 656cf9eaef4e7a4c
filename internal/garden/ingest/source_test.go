package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gardenrelay/internal/garden/memorystore"
	"gardenrelay/internal/garden/stream"
	"gardenrelay/pkg/garden"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// collect forwards observations without ever blocking the loop.
func collect(store *memorystore.SnapshotStore, ch chan<- observed) Observer {
	return ObserverFunc(func(tr Transition) {
		snap := store.Read()
		select {
		case ch <- observed{to: tr.To, failed: tr.Err != nil, connected: snap.Connected, seeds: len(snap.Seeds)}:
		default:
		}
	})
}

// waitFor reads observations until n of them reached state to.
func waitFor(t *testing.T, ch <-chan observed, to State, n int) []observed {
	t.Helper()
	var got []observed
	deadline := time.After(5 * time.Second)
	for count := 0; count < n; {
		select {
		case o := <-ch:
			got = append(got, o)
			if o.to == to {
				count++
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %d x %s, saw %+v", n, to, got)
		}
	}
	return got
}

// go test -v --run TestStreamSourceReconnects
func TestStreamSourceReconnects(t *testing.T) {
	var conns atomic.Int32
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if conns.Add(1) == 1 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"seed":{"items":[{"name":"Carrot","stock":5}]}}`))
			return // drop the connection mid-stream
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := garden.NewWSClient(garden.WSOptions{
		URL:              wsURL(server),
		HandshakeTimeout: time.Second,
		PingInterval:     time.Second,
		PongWait:         5 * time.Second,
	}, zap.NewNop())
	source := NewStreamSource(client, 50*time.Millisecond)

	store := memorystore.NewSnapshotStore()
	ch := make(chan observed, 64)
	loop := NewLoop(source, store, stream.MakeMessageHandler(zap.NewNop(), store, nil, nil),
		zap.NewNop(), WithObserver(collect(store, ch)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	got := waitFor(t, ch, StateConnected, 2)

	// the drop was seen as a failure, with the snapshot disconnected but intact
	var sawDrop bool
	for _, o := range got {
		if o.to == StateDisconnected && o.failed {
			sawDrop = true
			assert.False(t, o.connected)
			assert.Equal(t, 1, o.seeds)
		}
	}
	assert.True(t, sawDrop)

	// the malformed message on the second connection is skipped without a state change
	time.Sleep(100 * time.Millisecond)
	snap := store.Read()
	assert.True(t, snap.Connected)
	assert.Equal(t, []memorystore.Item{{Name: "Carrot", Stock: 5, Rarity: "Unknown"}}, snap.Seeds)
	assert.Equal(t, StateConnected, loop.State())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	assert.False(t, store.Connected())
}

// go test -v --run TestPollSourceCycles
func TestPollSourceCycles(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			http.Error(w, "warming up", http.StatusServiceUnavailable)
		case 2:
			_, _ = w.Write([]byte(`{"unterminated":`))
		default:
			_, _ = w.Write([]byte(`{"seed":{"items":[{"name":"Carrot","stock":5}]},"weather":{"type":"rain"}}`))
		}
	}))
	defer server.Close()

	source := NewPollSource(garden.NewRESTClient(server.URL, time.Second), 20*time.Millisecond, time.Second)
	store := memorystore.NewSnapshotStore()
	ch := make(chan observed, 64)
	loop := NewLoop(source, store, stream.MakeMessageHandler(zap.NewNop(), store, nil, nil),
		zap.NewNop(), WithObserver(collect(store, ch)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	got := waitFor(t, ch, StateConnected, 2)

	failures := 0
	for _, o := range got {
		if o.failed {
			failures++
			assert.False(t, o.connected)
		}
	}
	assert.Equal(t, 2, failures, "503 and malformed body both count as failed polls")

	require.Eventually(t, func() bool { return len(store.Read().Seeds) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, map[string]any{"type": "rain"}, store.Read().Weather)
}
