package hub

import (
	"encoding/json"
	"sync"
)

// Hub is the registry of live connections, keyed by user then connection id.
// It only routes frames; who is "online" is the presence tracker's business.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[string]*Client // userID -> connID -> client
}

func New() *Hub {
	return &Hub{conns: make(map[string]map[string]*Client)}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c.UserID]; !ok {
		h.conns[c.UserID] = make(map[string]*Client)
	}
	h.conns[c.UserID][c.ConnID] = c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if byConn, ok := h.conns[c.UserID]; ok {
		delete(byConn, c.ConnID)
		if len(byConn) == 0 {
			delete(h.conns, c.UserID)
		}
	}
}

// SendToUser fans a payload out to every live connection of one user,
// fire-and-forget per connection. Returns how many connections accepted it.
// Zero recipients is not an error; the durable path still persists the message.
func (h *Hub) SendToUser(userID string, payload any) int {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.conns[userID]))
	for _, c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if c.Queue(b) {
			n++
		}
	}
	return n
}

// Broadcast sends a payload to every live connection, skipping exceptConnID
// when non-empty.
func (h *Hub) Broadcast(payload any, exceptConnID string) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	var targets []*Client
	for _, byConn := range h.conns {
		for _, c := range byConn {
			if c.ConnID == exceptConnID {
				continue
			}
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Queue(b)
	}
}
