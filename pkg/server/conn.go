package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-go/vstore/pkg/store"
)

// Frame is a value pushed to a websocket client. The first frame of a
// connection carries the value current at subscription time.
type Frame struct {
	Store string          `json:"store"`
	Seq   uint64          `json:"seq"`
	Value json.RawMessage `json:"value"`
}

// ErrorFrame reports a rejected client message.
type ErrorFrame struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// ClientMessage is a frame sent by a websocket client.
type ClientMessage struct {
	Op    string          `json:"op"`
	Value json.RawMessage `json:"value,omitempty"`
}

// conn is one websocket subscriber to one store.
type conn struct {
	id     string
	hub    *Hub
	ws     *websocket.Conn
	entry  *Entry
	logger *slog.Logger

	send chan []byte
	done chan struct{}

	mu    sync.Mutex
	seq   uint64
	unsub store.Unsubscriber

	closeOnce sync.Once
}

func newConn(h *Hub, ws *websocket.Conn, entry *Entry) *conn {
	id := uuid.NewString()
	return &conn{
		id:     id,
		hub:    h,
		ws:     ws,
		entry:  entry,
		logger: h.logger.With("conn", id, "store", entry.Name()),
		send:   make(chan []byte, h.config.SendBuffer),
		done:   make(chan struct{}),
	}
}

// subscribe starts forwarding store values. The replayed value is queued
// before subscribe returns.
func (c *conn) subscribe() {
	unsub := c.entry.Subscribe(c.push)
	c.mu.Lock()
	c.unsub = unsub
	c.mu.Unlock()

	// The connection may have been dropped during the replay.
	select {
	case <-c.done:
		unsub()
	default:
	}
}

// push runs inside store notifications and must not block.
func (c *conn) push(v json.RawMessage) {
	c.mu.Lock()
	c.seq++
	frame := Frame{Store: c.entry.Name(), Seq: c.seq, Value: v}
	c.mu.Unlock()

	data, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("frame encode error", "error", err)
		return
	}
	c.enqueue(data)
}

func (c *conn) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("dropping slow consumer", "buffer", cap(c.send))
		c.hub.config.Metrics.RecordSlowConsumer()
		c.close()
	}
}

func (c *conn) sendError(code, msg string) {
	data, err := json.Marshal(ErrorFrame{Code: code, Error: msg})
	if err != nil {
		return
	}
	c.enqueue(data)
}

// readLoop processes client messages until the connection fails or closes.
func (c *conn) readLoop() {
	defer c.close()

	cfg := c.hub.config
	c.ws.SetReadLimit(cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Error("read error", "error", err)
				cfg.Metrics.RecordWebSocketError("read")
			}
			return
		}

		var m ClientMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			c.sendError("E203", "message is not valid JSON")
			continue
		}

		switch m.Op {
		case "set":
			if err := c.entry.Set(m.Value); err != nil {
				c.sendError(codeFor(err), err.Error())
			}
		default:
			c.sendError("E203", "unknown op "+m.Op)
		}
	}
}

// writeLoop writes queued frames and pings until the connection closes.
func (c *conn) writeLoop() {
	cfg := c.hub.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write error", "error", err)
				cfg.Metrics.RecordWebSocketError("write")
				return
			}
			cfg.Metrics.RecordMessageSent()

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				cfg.Metrics.RecordWebSocketError("ping")
				return
			}

		case <-c.done:
			c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(cfg.WriteTimeout),
			)
			return
		}
	}
}

// close unsubscribes and signals writeLoop, which sends a close frame and
// closes the socket. It never blocks on the network, so it is safe to call
// from inside a store notification.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		unsub := c.unsub
		c.mu.Unlock()
		if unsub != nil {
			unsub()
		}

		c.hub.untrack(c)
		c.logger.Debug("connection closed")
	})
}
