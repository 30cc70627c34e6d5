// Package ws pushes redemption and audit events to browser clients and lets
// a reconnecting client replay what it missed.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/preyanshu/verdict/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	maxMessageSize = 4096
	sendBufferSize = 256
	defaultReplay  = 100
)

// DefaultChannels are the bus channels relayed to clients.
var DefaultChannels = []string{domain.ChannelRedemptions, domain.ChannelAudits}

// Origins are enforced by the CORS and auth middleware in front of /ws.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Gauge receives the connected client count.
type Gauge interface {
	Set(v float64)
}

// Config tunes a Hub. Zero values select defaults.
type Config struct {
	Channels []string
	// Replay caps how many history entries a resume request returns.
	Replay int
	// Status builds the snapshot sent to every client on connect.
	Status func() domain.ServiceStatus
	Gauge  Gauge
}

// Hub owns the client set. Only Run mutates it; join, leave and fanout are
// its inputs.
type Hub struct {
	cfg    Config
	bus    domain.SignalBus
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	join   chan *client
	leave  chan *client
	fanout chan event
	done   chan struct{}
}

// event is one bus message tagged with the channel it arrived on.
type event struct {
	channel string
	data    []byte
}

func NewHub(bus domain.SignalBus, cfg Config, logger *slog.Logger) *Hub {
	if len(cfg.Channels) == 0 {
		cfg.Channels = DefaultChannels
	}
	if cfg.Replay <= 0 {
		cfg.Replay = defaultReplay
	}
	return &Hub{
		cfg:     cfg,
		bus:     bus,
		logger:  logger.With(slog.String("component", "ws_hub")),
		clients: make(map[*client]struct{}),
		join:    make(chan *client),
		leave:   make(chan *client),
		fanout:  make(chan event, sendBufferSize),
		done:    make(chan struct{}),
	}
}

// Run relays every configured channel to subscribed clients until ctx ends.
// Clients still connected at that point have their send queues closed.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for _, ch := range h.cfg.Channels {
		go h.relay(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case c := <-h.join:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.changed("ws client connected")
		case c := <-h.leave:
			h.mu.Lock()
			_, ok := h.clients[c]
			if ok {
				delete(h.clients, c)
				c.close()
			}
			h.mu.Unlock()
			if ok {
				h.changed("ws client disconnected")
			}
		case ev := <-h.fanout:
			h.deliver(ev)
		}
	}
}

func (h *Hub) deliver(ev event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.isSubscribed(ev.channel) {
			c.enqueue(ev.data)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
	h.mu.Unlock()
	h.reportCount()
}

func (h *Hub) changed(msg string) {
	h.reportCount()
	h.logger.Info(msg, slog.Int("clients", h.ClientCount()))
}

// relay forwards one bus channel into fanout.
func (h *Hub) relay(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws subscription closed", slog.String("channel", channel))
				return
			}
			select {
			case h.fanout <- event{channel: channel, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) reportCount() {
	if h.cfg.Gauge != nil {
		h.cfg.Gauge.Set(float64(h.ClientCount()))
	}
}

// HandleWS upgrades the request, subscribes the client to every channel and
// greets it with a status frame.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn)
	select {
	case h.join <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.sendStatus()

	go c.writePump()
	go c.readPump()
}
