package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"messenger-service/internal/repositories"
)

// ConversationHandler serves conversation creation and listing.
type ConversationHandler struct {
	conversations repositories.ConversationRepository
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(conversations repositories.ConversationRepository) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// Create returns the unique conversation with another user, creating it on
// first contact. The status code distinguishes a fresh conversation from an
// existing one.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req struct {
		UserBID int `json:"userBId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	conversation, created, err := h.conversations.CreateOrGet(c.Request.Context(), userID, req.UserBID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, repositories.ErrSelfConversation):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			log.Error().Err(err).Msg("create conversation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not create conversation"})
		}
		return
	}

	status := http.StatusOK
	message := "Conversation already exists"
	if created {
		status = http.StatusCreated
		message = "Conversation created successfully"
	}
	c.JSON(status, gin.H{"success": true, "message": message, "conversation": conversation})
}

// List returns the caller's conversations ordered by recency, enriched with
// the counterpart, last message and unread count.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := c.GetInt("userID")

	summaries, err := h.conversations.ListForUser(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("list conversations failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Chat list retrieved successfully",
		"data":    summaries,
		"count":   len(summaries),
	})
}

// Get returns one conversation for a participant. Non-participants get the
// same response as for a missing conversation.
func (h *ConversationHandler) Get(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt("userID")
	conversation, err := h.conversations.GetForParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
			return
		}
		log.Error().Err(err).Msg("load conversation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "conversation": conversation})
}
