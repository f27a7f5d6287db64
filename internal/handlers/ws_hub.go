package handlers

import (
	"sync"

	"github.com/gorilla/websocket"
)

type wsClient struct {
	conn          *websocket.Conn
	send          chan []byte
	sessionID     string
	participantID string
	closeOnce     sync.Once
}

func (c *wsClient) trySend(payload []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *wsClient) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// WSHub tracks the presence socket of every connected participant. A
// participant has at most one socket; a newer one replaces the older.
type WSHub struct {
	mu       sync.Mutex
	sessions map[string]map[string]*wsClient // sessionID -> participantID -> client
}

func NewWSHub() *WSHub {
	return &WSHub{
		sessions: make(map[string]map[string]*wsClient),
	}
}

func (h *WSHub) Add(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers, ok := h.sessions[client.sessionID]
	if !ok {
		peers = make(map[string]*wsClient)
		h.sessions[client.sessionID] = peers
	}

	if old := peers[client.participantID]; old != nil && old != client {
		_ = old.conn.Close()
		old.closeSend()
	}

	peers[client.participantID] = client
}

// Remove drops client if it is still the registered socket for its participant.
func (h *WSHub) Remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.closeSend()

	peers, ok := h.sessions[client.sessionID]
	if !ok || peers[client.participantID] != client {
		return
	}
	delete(peers, client.participantID)
	if len(peers) == 0 {
		delete(h.sessions, client.sessionID)
	}
}

func (h *WSHub) CloseParticipant(sessionID, participantID string) {
	h.mu.Lock()
	client := h.sessions[sessionID][participantID]
	h.mu.Unlock()

	if client == nil {
		return
	}
	_ = client.conn.Close()
}

func (h *WSHub) Connected(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}
