package realtime

import (
	"log/slog"
	"sync"
	"time"

	"eventstream/internal/domain"

	"github.com/gorilla/websocket"
)

// ClientConfig tunes the websocket pumps.
type ClientConfig struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultClientConfig mirrors the environment defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:   54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 8192,
		SendBuffer:     256,
	}
}

// Client is one websocket connection: a read goroutine feeding the handler and a write
// goroutine draining send.
type Client struct {
	id       string
	conn     *websocket.Conn
	identity domain.Identity
	config   ClientConfig
	logger   *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(id string, conn *websocket.Conn, identity domain.Identity, cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultClientConfig().SendBuffer
	}
	return &Client{
		id:       id,
		conn:     conn,
		identity: identity,
		config:   cfg,
		logger:   logger.With("session_id", id, "user_id", identity.UserID),
		send:     make(chan []byte, cfg.SendBuffer),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Identity() domain.Identity { return c.identity }

// Enqueue never blocks. A full buffer means the peer is not keeping up: the client is closed
// and must reconnect.
func (c *Client) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn("send buffer full, closing session")
		c.closeLocked()
		return false
	}
}

// Send encodes and enqueues a frame for this client only.
func (c *Client) Send(event string, payload any) bool {
	data, err := Encode(event, payload)
	if err != nil {
		c.logger.Error("failed to encode frame", "frame", event, "err", err)
		return false
	}
	return c.Enqueue(data)
}

// Close stops delivery. The write pump sends a close frame and shuts the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump reads frames until the connection fails. onClose runs before the connection is
// closed, so room cleanup finishes before anything else can observe the disconnect.
func (c *Client) ReadPump(handle func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		c.Close()
		if onClose != nil {
			onClose(c)
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "err", err)
			}
			return
		}
		handle(c, message)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

var _ Member = (*Client)(nil)
