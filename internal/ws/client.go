package ws

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrSlowSubscriber means the client's outbound queue was full.
	ErrSlowSubscriber = errors.New("subscriber too slow")
	// ErrClientClosed means the client has already disconnected.
	ErrClientClosed = errors.New("client closed")
)

// ClientConfig tunes per-connection behaviour.
type ClientConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
	PingInterval time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// client is a WebSocket subscriber. Send only enqueues; writePump is the
// connection's single writer and drains the queue in order.
type client struct {
	id     string
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	cfg    ClientConfig
	remote string
}

func newClient(conn *websocket.Conn, hub *Hub, cfg ClientConfig) *client {
	cfg = cfg.withDefaults()
	return &client{
		id:     uuid.New().String(),
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, cfg.QueueSize),
		done:   make(chan struct{}),
		cfg:    cfg,
		remote: conn.RemoteAddr().String(),
	}
}

func (c *client) ID() string { return c.id }

// Send queues msg without blocking. A full queue means the peer is not
// keeping up and it is reported as too slow straight away.
func (c *client) Send(_ context.Context, msg []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSlowSubscriber
	}
}

// Close stops the write pump, which closes the connection. Idempotent.
func (c *client) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *client) writePump() {
	var ping <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	defer func() {
		c.hub.Leave(c)
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("ws client %s write error: %v", c.remote, err)
				return
			}
		case <-ping:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages and returns when the peer goes away.
// Pongs extend the read deadline when pings are enabled.
func (c *client) readPump() {
	c.conn.SetReadLimit(512)
	if c.cfg.PingInterval > 0 {
		wait := 2 * c.cfg.PingInterval
		c.conn.SetReadDeadline(time.Now().Add(wait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(wait))
		})
	}
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
