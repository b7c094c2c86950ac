package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"inputrouter/internal/engine"
)

// Feed message types pushed to websocket clients.
const (
	feedOutcome = "outcome"
	feedStatus  = "status"
)

const statusInterval = 5 * time.Second

// feedMessage is the envelope for every websocket push.
type feedMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API binds loopback only, so any origin is local
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans routing outcomes and status snapshots out to websocket
// clients. The feed is one-way; inbound messages are discarded.
type Hub struct {
	server     *Server
	clients    map[*wsClient]bool
	clientsMu  sync.Mutex
	broadcast  chan feedMessage
	register   chan *wsClient
	unregister chan *wsClient
	shutdown   chan struct{}
	stopOnce   sync.Once
}

// wsClient represents one connected feed consumer
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	ip   string
}

func newHub(s *Server) *Hub {
	return &Hub{
		server:     s,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan feedMessage, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		shutdown:   make(chan struct{}),
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.clientsMu.Unlock()
			log.Printf("WS: Client connected from %s. Total clients: %d", client.ip, total)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("WS: Client disconnected from %s. Total clients: %d", client.ip, len(h.clients))
			}
			h.clientsMu.Unlock()

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-h.shutdown:
			return
		}
	}
}

func (h *Hub) broadcastMessage(message feedMessage) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("WS: Failed to marshal feed message: %v", err)
		return
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- jsonMsg:
		default:
			// Slow consumer; drop it rather than stall the feed
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// BroadcastOutcome pushes one routing outcome to the feed. The send
// never blocks the routing path; entries are shed when the feed backs
// up.
func (h *Hub) BroadcastOutcome(ev engine.OutcomeEvent) {
	select {
	case h.broadcast <- feedMessage{Type: feedOutcome, Payload: ev}:
	default:
	}
}

// statusLoop publishes periodic status snapshots to the feed.
func (h *Hub) statusLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			select {
			case h.broadcast <- feedMessage{Type: feedStatus, Payload: h.server.engine.Status()}:
			default:
			}
		case <-h.shutdown:
			return
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.shutdown) })
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		ip:   r.RemoteAddr,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so pings and closes are processed.
// Client payloads carry no meaning on this feed.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			break
		}
	}
}

// writePump pumps feed messages to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
