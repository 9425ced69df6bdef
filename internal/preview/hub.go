package preview

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
)

// ReloadMessage is the text frame sent to browsers after a rebuild.
const ReloadMessage = "reload"

const (
	clientBuffer = 4
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	// the dev server is local; pages may be opened through any host name
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans the reload signal out to connected browsers.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*hubClient
	closed   bool
	recorder metrics.Recorder
}

type hubClient struct {
	id   string
	send chan string
	done chan struct{}
	once sync.Once
}

func (c *hubClient) stop() { c.once.Do(func() { close(c.done) }) }

// NewHub returns an empty hub. rec may be nil.
func NewHub(rec metrics.Recorder) *Hub {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Hub{clients: map[string]*hubClient{}, recorder: rec}
}

// ServeHTTP upgrades the request and forwards reload signals until either side
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "live reload shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("Live reload upgrade failed", logfields.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	c := &hubClient{id: uuid.NewString(), send: make(chan string, clientBuffer), done: make(chan struct{})}
	if !h.register(c) {
		return
	}
	defer h.unregister(c)

	go h.readPump(conn, c)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-c.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case msg := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				slog.Debug("Live reload write failed", slog.String("client", c.id), logfields.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and ends the client when the socket closes.
func (h *Hub) readPump(conn *websocket.Conn, c *hubClient) {
	defer c.stop()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("Live reload client dropped", slog.String("client", c.id), logfields.Error(err))
			}
			return
		}
	}
}

func (h *Hub) register(c *hubClient) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetReloadClients(n)
	slog.Debug("Live reload client connected", slog.String("client", c.id), logfields.Clients(n))
	return true
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	c.stop()
	h.recorder.SetReloadClients(n)
}

// Broadcast queues the reload signal for every client and returns how many
// received it. Clients whose queue is full already have a reload pending.
func (h *Hub) Broadcast() int {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return 0
	}
	snapshot := make([]*hubClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range snapshot {
		select {
		case c.send <- ReloadMessage:
			sent++
		default:
		}
	}
	h.recorder.IncReloadBroadcast()
	slog.Debug("Live reload broadcast", logfields.Clients(sent))
	return sent
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[string]*hubClient{}
	h.mu.Unlock()
	for _, c := range clients {
		c.stop()
	}
	h.recorder.SetReloadClients(0)
}
