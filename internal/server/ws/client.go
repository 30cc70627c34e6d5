package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/preyanshu/verdict/internal/domain"
)

// client is one websocket connection. readPump and writePump own the
// connection; subs is shared with the hub's delivery loop.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	subs   map[string]bool
	closed bool
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool, len(h.cfg.Channels)),
	}
	for _, ch := range h.cfg.Channels {
		c.subs[ch] = true
	}
	return c
}

// request is a control frame sent by a client. Resume replays events on
// Channel recorded after LastID ("0" for the oldest retained).
type request struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels,omitempty"`
	Channel  string   `json:"channel,omitempty"`
	LastID   string   `json:"lastId,omitempty"`
}

// envelope frames control replies and replayed history.
type envelope struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	ID      string `json:"id,omitempty"`
	Payload any    `json:"payload"`
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.leave <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var req request
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}
		c.handle(req)
	}
}

func (c *client) handle(req request) {
	switch req.Action {
	case "subscribe":
		c.mu.Lock()
		for _, ch := range req.Channels {
			c.subs[ch] = true
		}
		c.mu.Unlock()
	case "unsubscribe":
		c.mu.Lock()
		for _, ch := range req.Channels {
			delete(c.subs, ch)
		}
		c.mu.Unlock()
	case "resume":
		c.resume(req.Channel, req.LastID)
	}
}

func (c *client) resume(channel, lastID string) {
	if !c.hub.known(channel) {
		c.reply(envelope{Type: "error", Channel: channel, Payload: "unknown channel"})
		return
	}
	if lastID == "" {
		lastID = "0"
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	msgs, err := c.hub.bus.StreamRead(ctx, domain.HistoryStream(channel), lastID, c.hub.cfg.Replay)
	if err != nil {
		c.hub.logger.Warn("ws history read failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		c.reply(envelope{Type: "error", Channel: channel, Payload: "history unavailable"})
		return
	}
	for _, m := range msgs {
		c.reply(envelope{Type: "history", Channel: channel, ID: m.ID, Payload: json.RawMessage(m.Payload)})
	}
}

func (h *Hub) known(channel string) bool {
	for _, ch := range h.cfg.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}

func (c *client) sendStatus() {
	var st domain.ServiceStatus
	if c.hub.cfg.Status != nil {
		st = c.hub.cfg.Status()
	}
	c.reply(envelope{Type: "status", Payload: st})
}

func (c *client) reply(e envelope) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// enqueue drops the frame when the client is not keeping up or has already
// been closed by the hub.
func (c *client) enqueue(data []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("ws dropping message for slow client")
	}
}

// close ends the send queue once; writePump then sends a close frame.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel] || c.subs["*"]
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
