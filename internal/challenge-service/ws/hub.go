package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Hub mantém as conexões inscritas por challengeId
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

// client serializa escritas; gorilla/websocket não aceita escritas concorrentes
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS atende uma conexão até o cliente desconectar
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	defer func() {
		h.drop(c)
		conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.ChallengeID == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.ChallengeID]; !ok {
				h.subs[msg.ChallengeID] = make(map[*client]struct{})
			}
			h.subs[msg.ChallengeID][c] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if set, ok := h.subs[msg.ChallengeID]; ok {
				delete(set, c)
				if len(set) == 0 {
					delete(h.subs, msg.ChallengeID)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

// Subscribers conta as conexões inscritas num desafio
func (h *Hub) Subscribers(challengeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[challengeID])
}

// Broadcast envia a atualização aos inscritos do desafio
func (h *Hub) Broadcast(u Update) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[u.ChallengeID]))
	for c := range h.subs[u.ChallengeID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	for _, c := range targets {
		_ = c.write(b)
	}
}
