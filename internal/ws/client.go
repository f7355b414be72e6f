package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"messenger-service/internal/models"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
	// Generous relative to the 5000-char content cap; guards the decoder.
	maxFrameSize = 1 << 20
)

// Client is the realtime session for one live connection: the authenticated
// user, the socket and the outbound queue. Room membership lives in the hub;
// the closed flag is guarded by the hub lock.
type Client struct {
	gateway     *Gateway
	conn        *websocket.Conn
	send        chan []byte
	connID      string
	user        models.UserSummary
	ip          string
	requestID   string
	connectedAt time.Time
	closed      bool
}

// readPump consumes inbound frames and dispatches them until the transport
// closes, then discards the session's room memberships.
func (c *Client) readPump() {
	defer func() {
		c.gateway.hub.Detach(c)
		c.gateway.onDisconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.dispatch(data)
	}
}

// dispatch decodes one inbound frame and routes it. The event set is closed;
// unknown names and undecodable payloads are answered with an error event on
// this connection only.
func (c *Client) dispatch(data []byte) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.gateway.sendError(c, "malformed event")
		return
	}

	switch envelope.Event {
	case EventJoinConversation:
		var payload joinPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.ConversationID == 0 {
			c.gateway.sendError(c, "conversationId is required")
			return
		}
		c.gateway.handleJoin(c, payload.ConversationID)
	case EventLeaveConversation:
		var payload joinPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.ConversationID == 0 {
			c.gateway.sendError(c, "conversationId is required")
			return
		}
		c.gateway.handleLeave(c, payload.ConversationID)
	case EventMessageNew:
		var payload newMessagePayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.ConversationID == 0 || payload.Content == "" {
			c.gateway.sendError(c, "conversationId and content are required")
			return
		}
		c.gateway.handleMessageNew(c, payload)
	case EventMessageSeen:
		var payload seenPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.MessageID == 0 || payload.ConversationID == 0 {
			c.gateway.sendError(c, "messageId and conversationId are required")
			return
		}
		c.gateway.handleMessageSeen(c, payload)
	case EventTypingStart, EventTypingStop:
		var payload typingPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.ConversationID == 0 {
			c.gateway.sendError(c, "conversationId is required")
			return
		}
		c.gateway.handleTyping(c, envelope.Event, payload.ConversationID)
	default:
		c.gateway.sendError(c, "unknown event")
	}
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with pings. It exits once the queue is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
