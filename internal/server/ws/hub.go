package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingEvery    = 50 * time.Second // under pongWait
	maxInbound   = 4096             // control messages only
	outboxSize   = 256
)

// Channels are the bus channels relayed to feed clients.
var Channels = []string{domain.ChannelStock, domain.ChannelOrders, domain.ChannelAlerts}

// Origin checks happen in the CORS middleware.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// subscribeMsg is the only inbound message:
// {"action":"unsubscribe","channels":["orders"]}
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Hub is a JSON event feed. Each bus channel has one relay goroutine that
// writes straight into the outbox of every peer that has not muted it.
type Hub struct {
	bus     domain.SignalBus
	logger  *slog.Logger
	mode    string
	started time.Time

	mu    sync.RWMutex
	peers map[*peer]struct{}
}

// NewHub creates a hub fed by bus. mode is reported to clients on connect.
func NewHub(bus domain.SignalBus, mode string, logger *slog.Logger) *Hub {
	if mode == "" {
		mode = "unknown"
	}
	return &Hub{
		bus:     bus,
		logger:  logger.With(slog.String("component", "ws")),
		mode:    mode,
		started: time.Now().UTC(),
		peers:   make(map[*peer]struct{}),
	}
}

// Run relays bus events until ctx is cancelled, then disconnects every peer.
func (h *Hub) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, ch := range Channels {
		events, err := h.bus.Subscribe(ctx, ch)
		if err != nil {
			h.logger.Error("ws: subscribe failed",
				slog.String("channel", ch),
				slog.String("error", err.Error()),
			)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.relay(ctx, ch, events)
		}()
	}

	<-ctx.Done()
	wg.Wait()

	h.mu.Lock()
	for p := range h.peers {
		p.stop()
		delete(h.peers, p)
	}
	h.mu.Unlock()
	return ctx.Err()
}

func (h *Hub) relay(ctx context.Context, channel string, events <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-events:
			if !ok {
				h.logger.Warn("ws: bus subscription closed", slog.String("channel", channel))
				return
			}
			frame, err := json.Marshal(envelope{Channel: channel, Data: data})
			if err != nil {
				h.logger.Warn("ws: dropping malformed event",
					slog.String("channel", channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			h.deliver(channel, frame)
		}
	}
}

func (h *Hub) deliver(channel string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.peers {
		if p.wants(channel) && !p.enqueue(frame) {
			h.logger.Warn("ws: outbox full, event dropped", slog.String("channel", channel))
		}
	}
}

// HandleWS upgrades the request and starts the peer's reader and writer.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}
	p := &peer{
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
		muted:  make(map[string]bool),
	}
	// hello is queued before the peer joins so it is always the first frame.
	p.enqueue(h.hello())

	h.mu.Lock()
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	h.logger.Info("ws: client connected", slog.Int("clients", n))

	go p.write()
	go h.read(p)
}

func (h *Hub) hello() []byte {
	msg, _ := json.Marshal(map[string]any{
		"type": "hello",
		"payload": map[string]any{
			"mode":          h.mode,
			"channels":      Channels,
			"uptimeSeconds": max(0, int64(time.Since(h.started).Seconds())),
		},
	})
	return msg
}

// read applies subscription changes until the connection fails, then drops
// the peer.
func (h *Hub) read(p *peer) {
	defer func() {
		h.mu.Lock()
		delete(h.peers, p)
		n := len(h.peers)
		h.mu.Unlock()
		p.stop()
		h.logger.Info("ws: client disconnected", slog.Int("clients", n))
	}()

	p.conn.SetReadLimit(maxInbound)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("ws: read failed", slog.String("error", err.Error()))
			}
			return
		}
		var msg subscribeMsg
		if json.Unmarshal(raw, &msg) == nil {
			p.apply(msg)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// peer is one feed connection. Peers hear every channel unless muted.
type peer struct {
	conn   *websocket.Conn
	outbox chan []byte
	done   chan struct{}
	once   sync.Once

	mu    sync.RWMutex
	muted map[string]bool
}

func (p *peer) wants(channel string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.muted[channel]
}

func (p *peer) apply(msg subscribeMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range msg.Channels {
		switch msg.Action {
		case "subscribe":
			delete(p.muted, ch)
		case "unsubscribe":
			p.muted[ch] = true
		}
	}
}

// enqueue never blocks; it reports false when the frame was dropped.
func (p *peer) enqueue(frame []byte) bool {
	select {
	case <-p.done:
		return false
	case p.outbox <- frame:
		return true
	default:
		return false
	}
}

func (p *peer) stop() {
	p.once.Do(func() { close(p.done) })
}

// write owns every write on the connection, pings included. It closes the
// connection on exit, which in turn ends read.
func (p *peer) write() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		p.conn.Close()
	}()

	for {
		var err error
		select {
		case <-p.done:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			p.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case frame := <-p.outbox:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err = p.conn.WriteMessage(websocket.TextMessage, frame)
		case <-ping.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err = p.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}
