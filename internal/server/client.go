// Package server manages individual WebSocket connections: read/write pumps,
// keepalive deadlines, rate limiting, and lifecycle control.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// writeWait is the time allowed to write one message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod is how often pings go out; it must be below pongWait.
	pingPeriod = 54 * time.Second

	// sendBuffer is the per-connection outbound queue length. A client that
	// falls this far behind is evicted.
	sendBuffer = 256
)

// Client is one live WebSocket connection. It satisfies the session interface
// consumed by the registry, rooms, and router.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	addr string

	send      chan []byte
	closeOnce sync.Once

	limiter *eventLimiter
}

// NewClient wraps an upgraded WebSocket connection. The hub starts the pumps
// when the client is registered.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, cfg *Config) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	return &Client{
		id:      uuid.NewString(),
		conn:    conn,
		hub:     hub,
		addr:    addr,
		send:    make(chan []byte, sendBuffer),
		limiter: newEventLimiter(cfg.RateLimitBurst, cfg.RateLimitRefillInterval),
	}
}

// ID returns the process-unique connection id.
func (c *Client) ID() string {
	return c.id
}

// Emit queues one event for the write pump. It reports false when the
// outbound buffer is full, leaving eviction to the caller.
func (c *Client) Emit(event string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("unencodable outbound payload")
		return true
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("unencodable envelope")
		return true
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close shuts the outbound queue, which lets the write pump drain and close
// the connection. Safe to call more than once; only the hub loop calls it.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// setupReadConnection arms the read deadline and pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Warn().Err(err).Str("conn", c.id).Msg("setting initial read deadline failed")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Warn().Err(err).Str("conn", c.id).Msg("extending read deadline failed")
		}
		return nil
	})
}

// handleReadError classifies a read failure for logging. Every read failure
// ends the connection; none are retried.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Warn().Str("conn", c.id).Str("addr", c.addr).Msg("message exceeded size limit")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Info().Str("conn", c.id).Str("addr", c.addr).Msg("client disconnected")
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		log.Info().Str("conn", c.id).Str("addr", c.addr).Msg("connection closed")
	default:
		log.Warn().Err(err).Str("conn", c.id).Str("addr", c.addr).Msg("websocket read error")
	}
}

// readPump pulls frames off the wire, decodes them, and hands them to the hub
// loop. It exits on the first read error; the deferred unregister is the
// disconnect signal that runs registry cleanup.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Warn().Err(err).Str("conn", c.id).Msg("closing connection after read pump")
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.limiter.allow() {
			log.Warn().Str("conn", c.id).Str("addr", c.addr).Msg("rate limit exceeded; frame discarded")
			continue
		}

		env, err := DecodeEnvelope(raw)
		if err != nil {
			// Malformed frames are logged and dropped; the connection stays up.
			log.Warn().Err(err).Str("conn", c.id).Msg("undecodable frame discarded")
			continue
		}

		select {
		case c.hub.inbound <- inboundEvent{sess: c, env: env}:
		case <-c.hub.ctx.Done():
			return
		}
	}
}

// writePump drains the send queue to the wire and keeps the connection alive
// with pings. It owns all writes to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Warn().Err(err).Str("conn", c.id).Msg("closing connection after write pump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("conn", c.id).Msg("setting write deadline failed")
				return
			}
			if !ok {
				c.writeClose()
				return
			}
			if !c.writeFrame(frame) {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("conn", c.id).Msg("setting ping deadline failed")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeFrame writes one frame and reports whether the pump should continue.
func (c *Client) writeFrame(frame []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !isExpectedCloseError(err) {
			log.Warn().Err(err).Str("conn", c.id).Msg("write failed")
		}
		return false
	}
	return true
}

// writeClose tells the peer the server is done with the connection.
func (c *Client) writeClose() {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		log.Warn().Err(err).Str("conn", c.id).Msg("writing close frame failed")
	}
}

// isExpectedCloseError reports whether an error is routine connection
// teardown noise rather than something worth a warning.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
