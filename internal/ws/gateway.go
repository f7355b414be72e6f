package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"messenger-service/internal/auth"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// Operations against the store are detached from the connection context:
// a disconnect mid-operation must not roll the side effect back, the result
// is simply undeliverable.
const opTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway authenticates live connections and drives the event protocol over
// the hub, the conversation registry and the message log.
type Gateway struct {
	hub           *Hub
	tokens        *auth.TokenService
	users         repositories.UserRepository
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	audit         *telemetry.AuditEmitter
}

// NewGateway constructs a Gateway.
func NewGateway(hub *Hub, tokens *auth.TokenService, users repositories.UserRepository, conversations repositories.ConversationRepository, messages repositories.MessageRepository, audit *telemetry.AuditEmitter) *Gateway {
	return &Gateway{
		hub:           hub,
		tokens:        tokens,
		users:         users,
		conversations: conversations,
		messages:      messages,
		audit:         audit,
	}
}

// Handle performs the connection handshake: the access token (header or
// query) must verify and resolve to an existing user before the upgrade, so
// an unauthenticated socket never reaches room state.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := g.tokens.VerifyAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	user, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &Client{
		gateway:     g,
		conn:        conn,
		send:        make(chan []byte, 256),
		connID:      uuid.NewString(),
		user:        user.Summary(),
		ip:          observability.IPFromRequest(c.Request),
		requestID:   observability.RequestIDFromRequest(c.Request),
		connectedAt: time.Now(),
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	userID := client.user.ID
	g.audit.Emit(ctx, "ws_connect", client.requestID, &userID, map[string]any{
		"connId": client.connID,
		"ip":     client.ip,
	})
	log.Info().Int("user_id", userID).Str("conn_id", client.connID).Msg("websocket connected")

	go client.writePump()
	client.readPump()
}

func (g *Gateway) onDisconnect(c *Client) {
	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	userID := c.user.ID
	g.audit.Emit(context.Background(), "ws_disconnect", c.requestID, &userID, map[string]any{
		"connId":     c.connID,
		"ip":         c.ip,
		"durationMs": time.Since(c.connectedAt).Milliseconds(),
	})
	log.Info().Int("user_id", userID).Str("conn_id", c.connID).Msg("websocket disconnected")
}

// handleJoin adds the connection to the conversation's room after the
// participant check. Failure leaves membership untouched and is reported to
// this connection only.
func (g *Gateway) handleJoin(c *Client, conversationID int) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := g.conversations.GetForParticipant(ctx, conversationID, c.user.ID); err != nil {
		g.sendOpError(c, err, "failed to join conversation")
		return
	}

	g.hub.Join(conversationID, c)
	observability.IncWSEvent("join")
	g.hub.Send(c, encodeEvent(EventJoinedConversation, roomAck{ConversationID: conversationID}))
}

// handleLeave removes membership unconditionally; leaving needs no
// authorization re-check.
func (g *Gateway) handleLeave(c *Client, conversationID int) {
	g.hub.Leave(conversationID, c)
	observability.IncWSEvent("leave")
	g.hub.Send(c, encodeEvent(EventLeftConversation, roomAck{ConversationID: conversationID}))
}

// handleMessageNew appends through the message log and broadcasts the
// hydrated message to every room member, the sender's other connections
// included.
func (g *Gateway) handleMessageNew(c *Client, payload newMessagePayload) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := g.conversations.GetForParticipant(ctx, payload.ConversationID, c.user.ID); err != nil {
		g.sendOpError(c, err, "failed to send message")
		return
	}

	msg, err := g.messages.Create(ctx, payload.ConversationID, c.user.ID, payload.Content)
	if err != nil {
		g.sendOpError(c, err, "failed to send message")
		return
	}

	observability.IncWSEvent("message_new")
	g.hub.BroadcastMessage(msg)
}

// handleMessageSeen marks a message seen on behalf of the reader and
// broadcasts the receipt to the room.
func (g *Gateway) handleMessageSeen(c *Client, payload seenPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := g.conversations.GetForParticipant(ctx, payload.ConversationID, c.user.ID); err != nil {
		g.sendOpError(c, err, "failed to mark message as seen")
		return
	}

	msg, err := g.messages.MarkSeen(ctx, payload.MessageID, payload.ConversationID, c.user.ID)
	if err != nil {
		g.sendOpError(c, err, "failed to mark message as seen")
		return
	}

	observability.IncWSEvent("message_seen")
	g.hub.Broadcast(payload.ConversationID, encodeReceipt(models.SeenReceipt{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SeenBy:         c.user.ID,
		SeenAt:         msg.UpdatedAt,
	}))
}

// handleTyping rebroadcasts an ephemeral presence hint to the other room
// members. Nothing is persisted, and a sender who never joined the room is
// dropped silently.
func (g *Gateway) handleTyping(c *Client, event string, conversationID int) {
	if !g.hub.InRoom(conversationID, c) {
		return
	}
	observability.IncWSEvent("typing")
	g.hub.BroadcastExcept(conversationID, c, encodeEvent(event, typingNotice{
		UserID:         c.user.ID,
		ConversationID: conversationID,
	}))
}

func (g *Gateway) sendError(c *Client, message string) {
	observability.IncWSEvent("ws_error")
	g.hub.Send(c, encodeError(message))
}

// sendOpError surfaces expected domain failures with their own message and
// masks storage faults behind a generic one.
func (g *Gateway) sendOpError(c *Client, err error, fallback string) {
	switch {
	case errors.Is(err, repositories.ErrConversationNotFound),
		errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrOwnMessage):
		g.sendError(c, err.Error())
	default:
		log.Error().Err(err).Int("user_id", c.user.ID).Msg("websocket operation failed")
		g.sendError(c, fallback)
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && (header[:7] == "Bearer " || header[:7] == "bearer ") {
		return header[7:]
	}
	return c.Query("token")
}
