package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"churnpulse/internal/infrastructure"
)

// Write deadline and inbound frame cap. Clients only ever send small
// heartbeat frames, so the read limit is tight.
const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

// Default ping cycle, used when the hub carries no Keepalive override.
const (
	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = 54 * time.Second
)

// heartbeat is the only application frame clients are expected to send.
const heartbeat = `{"type":"heartbeat"}`

// Connection abstracts the gorilla connection for the client pumps, so
// tests can drive them without a network socket.
type Connection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// gorillaConn adapts *websocket.Conn to the Connection interface.
type gorillaConn struct {
	conn *websocket.Conn
}

func (c *gorillaConn) ReadMessage() (int, []byte, error) { return c.conn.ReadMessage() }

func (c *gorillaConn) WriteMessage(mt int, data []byte) error { return c.conn.WriteMessage(mt, data) }

func (c *gorillaConn) Close() error { return c.conn.Close() }

func (c *gorillaConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

func (c *gorillaConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

func (c *gorillaConn) SetReadLimit(limit int64) { c.conn.SetReadLimit(limit) }

func (c *gorillaConn) SetPongHandler(h func(string) error) { c.conn.SetPongHandler(h) }

func (c *gorillaConn) RemoteAddr() string {
	if c.conn.RemoteAddr() != nil {
		return c.conn.RemoteAddr().String()
	}
	return ""
}

// Client is a middleman between one websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time
	keepalive   Keepalive

	logger *slog.Logger

	messagesSent     int64
	messagesReceived int64
}

// NewClient creates a new Client over a gorilla connection
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return NewClientWithConnection(hub, &gorillaConn{conn: conn}, logger)
}

// NewClientWithConnection creates a new Client with a custom connection.
// The keepalive cycle is captured from the hub at admission time.
func NewClientWithConnection(hub *Hub, conn Connection, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	id := uuid.New().String()

	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		id:          id,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		keepalive:   Keepalive{PingPeriod: defaultPingPeriod, PongWait: defaultPongWait},
	}
	if hub != nil {
		c.keepalive = hub.clientKeepalive()
	}
	c.logger = logger.With(
		slog.String("component", "websocket.client"),
		slog.String("client_id", id),
	)
	return c
}

// NewClientWithTrace stamps the client and its log records with the
// originating request ID.
func NewClientWithTrace(hub *Hub, conn *websocket.Conn, traceID string, logger *slog.Logger) *Client {
	c := NewClient(hub, conn, logger)
	c.traceID = traceID
	c.logger = c.logger.With(slog.String("trace_id", traceID))
	return c
}

// ReadPump pumps messages from the websocket connection to the hub. Clients
// only ever send heartbeats; anything else is read and discarded so the
// connection deadline keeps advancing.
func (c *Client) ReadPump() {
	defer func() {
		ctx := c.context()
		c.logger.InfoContext(ctx, "WebSocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)),
			slog.Int64("messages_received", c.messagesReceived))
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.keepalive.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.keepalive.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.ErrorContext(c.context(), "Unexpected WebSocket close error",
					slog.String("error", err.Error()))
			}
			break
		}

		c.messagesReceived++
		if string(message) == heartbeat {
			c.logger.Debug("Heartbeat received")
		}
	}
}

// WritePump drains the send queue to the socket and keeps the
// connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.keepalive.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.InfoContext(c.context(), "WebSocket write pump stopped",
			slog.Int64("messages_sent", c.messagesSent))
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// A closed send channel means the hub dropped us.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.ErrorContext(c.context(), "Error writing message to WebSocket",
					slog.String("error", err.Error()))
				return
			}
			c.messagesSent++

			// Flush whatever else is queued as separate frames.
			for n := len(c.send); n > 0; n-- {
				select {
				case msg := <-c.send:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						c.logger.ErrorContext(c.context(), "Error writing queued message to WebSocket",
							slog.String("error", err.Error()))
						return
					}
					c.messagesSent++
				default:
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.context(), "Failed to send ping message",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// ServeWS attaches an upgraded connection to the hub and starts its pumps
func ServeWS(hub *Hub, conn *websocket.Conn, traceID string) {
	client := NewClientWithTrace(hub, conn, traceID, nil)

	select {
	case client.hub.register <- client:
	case <-client.hub.quit:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
