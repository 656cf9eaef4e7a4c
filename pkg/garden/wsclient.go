package garden

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSOptions configures the WebSocket dialer and keep-alive.
type WSOptions struct {
	URL              string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration // how often we ping the upstream
	PongWait         time.Duration // read deadline extended by every pong or message
}

// WSClient dials the upstream WebSocket feed.
type WSClient struct {
	opts   WSOptions
	dialer websocket.Dialer
	logger *zap.Logger
}

// NewWSClient creates a new WebSocket client with the given options and logger.
func NewWSClient(opts WSOptions, logger *zap.Logger) *WSClient {
	return &WSClient{
		opts: opts,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger: logger,
	}
}

// URL returns the endpoint being dialed.
func (c *WSClient) URL() string {
	return c.opts.URL
}

// Dial opens a connection and starts its keep-alive pinger. The caller owns
// the returned WSConn and must Close it.
func (c *WSClient) Dial(ctx context.Context) (*WSConn, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")

	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", c.opts.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}

	wc := &WSConn{
		conn:     conn,
		pongWait: c.opts.PongWait,
		done:     make(chan struct{}),
		logger:   c.logger,
	}

	wc.extendDeadline()
	conn.SetPongHandler(func(string) error {
		wc.extendDeadline()
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		wc.extendDeadline()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	go wc.pingLoop(c.opts.PingInterval)
	return wc, nil
}

// WSConn is one live upstream connection.
type WSConn struct {
	conn      *websocket.Conn
	pongWait  time.Duration
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// ReadMessage blocks for the next data message. Any error means the
// connection is finished.
func (c *WSConn) ReadMessage() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.extendDeadline()
	return msg, nil
}

// Close stops the pinger and closes the socket. Safe to call more than once.
func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = c.conn.Close()
	})
	return err
}

func (c *WSConn) extendDeadline() {
	if c.pongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	}
}

func (c *WSConn) pingLoop(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(interval)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				// the read side sees the dead socket through the read deadline
				c.logger.Debug("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// WithAccountID embeds the upstream account identifier into a feed URL as
// the user_id query parameter. An empty id leaves rawURL unchanged.
func WithAccountID(rawURL, id string) (string, error) {
	if id == "" {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse upstream url: %w", err)
	}
	q := u.Query()
	q.Set("user_id", id)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
