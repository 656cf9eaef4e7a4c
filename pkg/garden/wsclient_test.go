package garden

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockWSServer creates a test WebSocket server.
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

func testOptions(url string) WSOptions {
	return WSOptions{
		URL:              url,
		HandshakeTimeout: time.Second,
		PingInterval:     50 * time.Millisecond,
		PongWait:         time.Second,
	}
}

// go test -v --run TestWSClientReadsMessages
func TestWSClientReadsMessages(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"SEED_STOCK":[]}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"GEAR_STOCK":[]}`))
		// keep reading so pings get answered until the client leaves
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewWSClient(testOptions(wsURL(server)), zap.NewNop())
	conn, err := client.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"SEED_STOCK":[]}`, string(msg))

	msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"GEAR_STOCK":[]}`, string(msg))

	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close(), "second close is a no-op")
}

// go test -v --run TestWSClientServerClose
func TestWSClientServerClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	})
	defer server.Close()

	conn, err := NewWSClient(testOptions(wsURL(server)), zap.NewNop()).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ReadMessage()
	assert.Error(t, err)
}

// go test -v --run TestWSClientPongTimeout
func TestWSClientPongTimeout(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// never read, so pings are never answered
		time.Sleep(2 * time.Second)
	})
	defer server.Close()

	opts := testOptions(wsURL(server))
	opts.PongWait = 200 * time.Millisecond
	conn, err := NewWSClient(opts, zap.NewNop()).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	start := time.Now()
	_, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}

// go test -v --run TestWSClientDialFailure
func TestWSClientDialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewWSClient(testOptions(wsURL(server)), zap.NewNop()).Dial(context.Background())
	assert.Error(t, err)
}

// go test -v --run TestWithAccountID
func TestWithAccountID(t *testing.T) {
	got, err := WithAccountID("wss://feed.example.com/garden?v=2", "12345")
	require.NoError(t, err)
	assert.Equal(t, "wss://feed.example.com/garden?user_id=12345&v=2", got)

	got, err = WithAccountID("wss://feed.example.com/", "")
	require.NoError(t, err)
	assert.Equal(t, "wss://feed.example.com/", got)

	_, err = WithAccountID("://bad", "1")
	assert.Error(t, err)
}
