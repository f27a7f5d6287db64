package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tariel-x/gopresence/internal/conversations"
	"github.com/tariel-x/gopresence/internal/models"
	"github.com/tariel-x/gopresence/internal/records"
)

type startConversationRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

type listConversationsResponse struct {
	SessionID     string                 `json:"session_id"`
	Conversations []*models.Conversation `json:"conversations"`
}

// StartConversation pairs the caller with another participant of the session.
func (h *Handlers) StartConversation(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.tracker.Begin(c.Request.Context(), claims.SessionID, claims.ParticipantID, req.ParticipantID, h.nowFn())
	if err != nil {
		h.writeConversationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

func (h *Handlers) GetConversation(c *gin.Context) {
	conv, err := h.tracker.Get(c.Request.Context(), c.Param("conversation_id"), h.nowFn())
	if err != nil {
		h.writeConversationError(c, err)
		return
	}
	if conv.SessionID != c.Param("session_id") {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

// EndConversation may only be called by one of the two participants.
func (h *Handlers) EndConversation(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	conversationID := c.Param("conversation_id")

	conv, err := h.tracker.Get(ctx, conversationID, h.nowFn())
	if err != nil {
		h.writeConversationError(c, err)
		return
	}
	if conv.SessionID != claims.SessionID || !conv.Includes(claims.ParticipantID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation"})
		return
	}

	ended, err := h.tracker.End(ctx, conversationID, h.nowFn())
	if err != nil {
		h.writeConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, ended)
}

func (h *Handlers) ListConversations(c *gin.Context) {
	sessionID := c.Param("session_id")
	c.JSON(http.StatusOK, listConversationsResponse{
		SessionID:     sessionID,
		Conversations: h.tracker.ListActive(c.Request.Context(), sessionID, h.nowFn()),
	})
}

func (h *Handlers) writeConversationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conversations.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, conversations.ErrConversationEnded):
		c.JSON(http.StatusConflict, gin.H{"error": "conversation ended"})
	case errors.Is(err, conversations.ErrParticipantBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, conversations.ErrSameParticipant):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, records.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
