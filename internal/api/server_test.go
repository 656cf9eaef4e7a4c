package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gardenrelay/internal/garden/memorystore"
	"gardenrelay/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ServerOptions) (*Server, *memorystore.SnapshotStore) {
	t.Helper()
	store := memorystore.NewSnapshotStore()
	opts.Now = func() time.Time { return fixedNow }
	return NewServer(store, opts), store
}

func do(t *testing.T, s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// go test -v --run TestRootBeforeFirstUpdate
func TestRootBeforeFirstUpdate(t *testing.T) {
	s, _ := newTestServer(t, ServerOptions{})

	rec := do(t, s, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"online","message":"Grow a Garden Stock API","connected":false,"timestamp":null}`,
		rec.Body.String())
}

// go test -v --run TestStockServesSnapshot
func TestStockServesSnapshot(t *testing.T) {
	s, store := newTestServer(t, ServerOptions{})
	at := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	store.Publish(memorystore.Stock{
		Seeds:   []memorystore.Item{{Name: "Carrot", Stock: 5, Rarity: "Unknown"}},
		Weather: map[string]any{"type": "rain"},
	}, []byte(`{"secret":"raw"}`), at)
	store.SetConnected(true)

	rec := do(t, s, http.MethodGet, "/stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"seedsStock": [{"name":"Carrot","stock":5,"rarity":"Unknown","price":0,"imageUrl":""}],
		"gearStock": [], "eggStock": [], "cosmeticsStock": [], "eventStock": [], "merchantsStock": [],
		"weather": {"type":"rain"},
		"timestamp": "2025-08-01T09:00:00Z",
		"connected": true
	}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
}

// go test -v --run TestHealth
func TestHealth(t *testing.T) {
	s, store := newTestServer(t, ServerOptions{})
	store.SetConnected(true)

	rec := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","connected":true,"timestamp":"2025-08-01T09:30:00Z"}`, rec.Body.String())
}

// go test -v --run TestDebugEndpoint
func TestDebugEndpoint(t *testing.T) {
	s, _ := newTestServer(t, ServerOptions{})
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/debug", nil).Code, "disabled by default")

	s, store := newTestServer(t, ServerOptions{Debug: true})
	rec := do(t, s, http.MethodGet, "/debug", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rawResponse":null,"timestamp":null}`, rec.Body.String())

	store.Publish(memorystore.Stock{}, []byte(`{"SEED_STOCK":[]}`), fixedNow)
	rec = do(t, s, http.MethodGet, "/debug", nil)
	assert.JSONEq(t, `{"rawResponse":{"SEED_STOCK":[]},"timestamp":"2025-08-01T09:30:00Z"}`, rec.Body.String())
}

// go test -v --run TestErrorsAreJSON
func TestErrorsAreJSON(t *testing.T) {
	s, _ := newTestServer(t, ServerOptions{})

	rec := do(t, s, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found","timestamp":"2025-08-01T09:30:00Z"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/stock", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "method not allowed")
}

// go test -v --run TestCORS
func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, ServerOptions{})
	rec := do(t, s, http.MethodGet, "/stock", http.Header{"Origin": {"https://garden.example"}})
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, s, http.MethodOptions, "/stock", http.Header{"Origin": {"https://garden.example"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	s, _ = newTestServer(t, ServerOptions{CORSOrigins: []string{"https://ok.example"}})
	rec = do(t, s, http.MethodGet, "/", http.Header{"Origin": {"https://ok.example"}})
	assert.Equal(t, "https://ok.example", rec.Header().Get("Access-Control-Allow-Origin"))
	rec = do(t, s, http.MethodGet, "/", http.Header{"Origin": {"https://evil.example"}})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// go test -v --run TestMetricsEndpoint
func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.NewRegistry()
	s, _ := newTestServer(t, ServerOptions{Metrics: reg})

	do(t, s, http.MethodGet, "/stock", nil)
	do(t, s, http.MethodGet, "/unknown/path", nil)

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `gardenrelay_http_requests_total{code="200",route="/stock"} 1`)
	assert.Contains(t, body, `gardenrelay_http_requests_total{code="404",route="unmatched"} 1`)
}

// go test -v --run TestServeAndShutdown
func TestServeAndShutdown(t *testing.T) {
	s, store := newTestServer(t, ServerOptions{ShutdownTimeout: time.Second})
	store.SetConnected(true)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.True(t, status.Connected)
	assert.True(t, strings.HasPrefix(status.Message, "Grow a Garden"))

	require.NoError(t, s.Shutdown(context.Background()))
	assert.NoError(t, <-errCh)
}
