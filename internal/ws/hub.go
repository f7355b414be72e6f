package ws

import (
	"sync"

	"messenger-service/internal/models"
)

// Hub maintains room membership for live connections. Rooms are named by
// conversation id. All membership mutation and broadcasting happens under
// one lock so a slow client can be detached without racing a concurrent
// send on its closed channel.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[int]map[*Client]bool
	clientRooms map[*Client]map[int]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[int]map[*Client]bool),
		clientRooms: make(map[*Client]map[int]bool),
	}
}

// Join adds the client to a conversation room.
func (h *Hub) Join(conversationID int, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*Client]bool)
	}
	h.rooms[conversationID][c] = true
	if _, ok := h.clientRooms[c]; !ok {
		h.clientRooms[c] = make(map[int]bool)
	}
	h.clientRooms[c][conversationID] = true
}

// Leave removes the client from a conversation room. Leaving a room the
// client never joined is a no-op.
func (h *Hub) Leave(conversationID int, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conversationID, c)
}

// InRoom reports whether the client currently belongs to the room.
func (h *Hub) InRoom(conversationID int, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientRooms[c][conversationID]
}

// RoomSize returns the number of connections joined to a room.
func (h *Hub) RoomSize(conversationID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// Broadcast delivers a payload to every member of the room, including the
// sender's own other connections.
func (h *Hub) Broadcast(conversationID int, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[conversationID] {
		h.trySendLocked(c, payload)
	}
}

// BroadcastMessage sends a hydrated message to its conversation's room.
// REST and realtime appends share this path.
func (h *Hub) BroadcastMessage(msg models.Message) {
	h.Broadcast(msg.ConversationID, encodeMessage(msg))
}

// BroadcastExcept delivers a payload to every room member but the sender.
// Used for typing hints, which the originating connection never needs back.
func (h *Hub) BroadcastExcept(conversationID int, except *Client, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[conversationID] {
		if c == except {
			continue
		}
		h.trySendLocked(c, payload)
	}
}

// Send queues a payload for a single client. Routed through the hub lock so
// it cannot race a detach closing the channel.
func (h *Hub) Send(c *Client, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trySendLocked(c, payload)
}

// Detach discards all room memberships for a disconnected client and closes
// its send channel so the write pump can drain and exit.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(c)
}

func (h *Hub) leaveLocked(conversationID int, c *Client) {
	if members, ok := h.rooms[conversationID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	if joined, ok := h.clientRooms[c]; ok {
		delete(joined, conversationID)
		if len(joined) == 0 {
			delete(h.clientRooms, c)
		}
	}
}

// trySendLocked queues a payload for one client. A client whose buffer is
// full is considered dead and detached; the websocket close handshake is
// left to its write pump.
func (h *Hub) trySendLocked(c *Client, payload []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		h.detachLocked(c)
	}
}

func (h *Hub) detachLocked(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	for conversationID := range h.clientRooms[c] {
		if members, ok := h.rooms[conversationID]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, conversationID)
			}
		}
	}
	delete(h.clientRooms, c)
}
