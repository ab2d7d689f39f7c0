package server

import (
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/ServerEye/internal/debounce"
	"github.com/SmitUplenchwar2687/ServerEye/internal/i18n"
	"github.com/SmitUplenchwar2687/ServerEye/internal/monitor"
	"github.com/SmitUplenchwar2687/ServerEye/internal/pipeline"
)

const (
	wsWriteWait   = 10 * time.Second
	wsMaxMessage  = 4096
	msgTypeFilter = "filter"
	msgTypeView   = "view"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is meant for trusted operators
	},
}

// inbound is a message from the page.
type inbound struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Player string `json:"player"`
}

// viewMessage is pushed whenever a client's view changes.
type viewMessage struct {
	Type         string          `json:"type"`
	HTML         string          `json:"html"`
	Filter       pipeline.Filter `json:"filter"`
	Stats        pipeline.Stats  `json:"stats"`
	BlocksBroken int             `json:"blocks_broken"`
	ChatMessages int             `json:"chat_messages"`
	Shown        int             `json:"shown"`
	Online       bool            `json:"online"`
	Connection   string          `json:"connection"`
	LastUpdate   string          `json:"last_update"`
	Cleanup      CleanupView     `json:"cleanup"`
}

// Hub tracks WebSocket clients. Each client has its own filter and
// language and receives its own rendering of every snapshot.
type Hub struct {
	srv *Server

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

func newHub(s *Server) *Hub {
	return &Hub{
		srv:     s,
		clients: make(map[*wsClient]struct{}),
	}
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	tr   *i18n.Catalog
	send chan []byte
	done chan struct{}

	debounce  *debounce.Debouncer
	closeOnce sync.Once

	mu     sync.Mutex
	filter pipeline.Filter
}

// HandleWebSocket upgrades the HTTP connection and registers the client.
// The client gets the current view immediately.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tr := h.srv.catalog(nil, r)
	f := filterFrom(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.srv.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(wsMaxMessage)

	c := &wsClient{
		hub:      h,
		conn:     conn,
		tr:       tr,
		send:     make(chan []byte, 1),
		done:     make(chan struct{}),
		debounce: debounce.New(h.srv.opts.FilterDebounce, h.srv.clock),
		filter:   f,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.srv.opts.Metrics.AddWSClients(1)

	go c.writeLoop()
	c.push(h.srv.monitor.Snapshot())
	go c.readLoop()
}

// Broadcast renders snap for every client. It never blocks on a slow
// client: an unsent older view is replaced.
func (h *Hub) Broadcast(snap monitor.Snapshot) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.push(snap)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		h.srv.opts.Metrics.AddWSClients(-1)
	}
}

func (c *wsClient) readLoop() {
	defer c.close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.srv.log.Debug().Err(err).Msg("ignoring malformed websocket message")
			continue
		}
		switch msg.Type {
		case msgTypeFilter:
			c.setFilter(pipeline.Filter{EventType: msg.Event, Player: msg.Player})
			c.debounce.Trigger(func() {
				c.push(c.hub.srv.monitor.Snapshot())
			})
		}
	}
}

func (c *wsClient) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.hub.srv.log.Debug().Err(err).Msg("websocket write failed")
				c.close()
				return
			}
		}
	}
}

func (c *wsClient) setFilter(f pipeline.Filter) {
	c.mu.Lock()
	c.filter = f.Normalize()
	c.mu.Unlock()
}

func (c *wsClient) currentFilter() pipeline.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *wsClient) push(snap monitor.Snapshot) {
	s := c.hub.srv
	v := s.buildView(snap, c.currentFilter(), c.tr)
	html, err := s.fragment(v, c.tr)
	if err != nil {
		s.log.Error().Err(err).Msg("rendering websocket view")
		return
	}
	data, err := json.Marshal(viewMessage{
		Type:         msgTypeView,
		HTML:         html,
		Filter:       v.Filter,
		Stats:        v.Stats,
		BlocksBroken: v.BlocksBroken,
		ChatMessages: v.ChatMessages,
		Shown:        v.Shown,
		Online:       v.Online,
		Connection:   v.Connection,
		LastUpdate:   v.LastUpdate,
		Cleanup:      v.Cleanup,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("encoding websocket view")
		return
	}
	c.enqueue(data)
}

// enqueue keeps only the newest pending message.
func (c *wsClient) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		c.hub.remove(c)
		c.debounce.Stop()
		close(c.done)
		c.conn.Close()
	})
}
