package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

// MessageHandler serves message creation and cursor-paginated reads.
type MessageHandler struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	hub           *ws.Hub
	audit         *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(conversations repositories.ConversationRepository, messages repositories.MessageRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{conversations: conversations, messages: messages, hub: hub, audit: audit}
}

// Create appends a message over REST and broadcasts it to the room so live
// clients see messages regardless of which path produced them.
func (h *MessageHandler) Create(c *gin.Context) {
	var req struct {
		ConversationID int    `json:"conversationId" binding:"required"`
		Content        string `json:"content" binding:"required,min=1,max=5000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if _, err := h.conversations.GetForParticipant(c.Request.Context(), req.ConversationID, userID); err != nil {
		h.respondConversationErr(c, err)
		return
	}

	msg, err := h.messages.Create(c.Request.Context(), req.ConversationID, userID, req.Content)
	if err != nil {
		log.Error().Err(err).Msg("store message failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to store message"})
		return
	}

	h.hub.BroadcastMessage(msg)
	h.audit.Emit(c.Request.Context(), "message_sent", observability.RequestIDFromRequest(c.Request), &userID, map[string]any{
		"conversationId": msg.ConversationID,
		"messageId":      msg.ID,
	})
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Message created successfully",
		"data":    msg,
	})
}

// ListForConversation pages a conversation's log backwards from the cursor,
// returning each window oldest first.
func (h *MessageHandler) ListForConversation(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	limit := repositories.DefaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	var cursor *int
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		cursor = &parsed
	}

	userID := c.GetInt("userID")
	if _, err := h.conversations.GetForParticipant(c.Request.Context(), conversationID, userID); err != nil {
		h.respondConversationErr(c, err)
		return
	}

	page, err := h.messages.Page(c.Request.Context(), conversationID, limit, cursor)
	if err != nil {
		log.Error().Err(err).Msg("page messages failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": page.Messages,
		"pagination": gin.H{
			"hasMore":    page.HasMore,
			"nextCursor": page.NextCursor,
			"limit":      page.Limit,
		},
	})
}

func (h *MessageHandler) respondConversationErr(c *gin.Context, err error) {
	if errors.Is(err, repositories.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		return
	}
	log.Error().Err(err).Msg("resolve conversation failed")
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to resolve conversation"})
}
