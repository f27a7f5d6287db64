package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tariel-x/gopresence/internal/metrics"
	"github.com/tariel-x/gopresence/internal/models"
	"github.com/tariel-x/gopresence/internal/presence"
	"github.com/tariel-x/gopresence/internal/records"
)

type joinRequest struct {
	ParticipantID string `json:"participant_id" binding:"omitempty,max=64"`
}

type joinResponse struct {
	SessionID     string                    `json:"session_id"`
	ParticipantID string                    `json:"participant_id"`
	Token         string                    `json:"token"`
	Record        models.AvailabilityRecord `json:"record"`
	View          presence.View             `json:"view"`
}

type participantResponse struct {
	Record models.AvailabilityRecord `json:"record"`
	View   presence.View             `json:"view"`
}

type listParticipantsResponse struct {
	SessionID    string                      `json:"session_id"`
	Participants []models.AvailabilityRecord `json:"participants"`
}

type setAvailabilityRequest struct {
	Value *bool `json:"value" binding:"required"`
}

func (h *Handlers) JoinSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if len(sessionID) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is too long"})
		return
	}

	var req joinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	rec, err := h.records.Join(c.Request.Context(), sessionID, req.ParticipantID)
	if err != nil {
		h.writeRecordError(c, err)
		return
	}

	token, err := h.issuer.Issue(rec.SessionID, rec.ParticipantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, joinResponse{
		SessionID:     rec.SessionID,
		ParticipantID: rec.ParticipantID,
		Token:         token,
		Record:        rec,
		View:          presence.ViewOf(rec),
	})
}

// LeaveSession ends the participant's conversation, removes the record and
// closes the participant's presence sockets.
func (h *Handlers) LeaveSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	participantID := c.Param("participant_id")
	ctx := c.Request.Context()

	h.tracker.EndForParticipant(ctx, sessionID, participantID, h.nowFn())

	if err := h.records.Leave(ctx, sessionID, participantID); err != nil {
		h.writeRecordError(c, err)
		return
	}
	h.wsHub.CloseParticipant(sessionID, participantID)

	c.Status(http.StatusNoContent)
}

func (h *Handlers) ListParticipants(c *gin.Context) {
	sessionID := c.Param("session_id")

	networkableOnly := false
	if raw := c.Query("available"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "available must be a boolean"})
			return
		}
		networkableOnly = v
	}

	recs, err := h.records.List(c.Request.Context(), sessionID, networkableOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []models.AvailabilityRecord{}
	}

	c.JSON(http.StatusOK, listParticipantsResponse{SessionID: sessionID, Participants: recs})
}

func (h *Handlers) GetParticipant(c *gin.Context) {
	rec, err := h.records.ReadRecord(c.Request.Context(), c.Param("session_id"), c.Param("participant_id"))
	if err != nil {
		h.writeRecordError(c, err)
		return
	}
	c.JSON(http.StatusOK, participantResponse{Record: rec, View: presence.ViewOf(rec)})
}

// SetAvailability writes the flag directly for clients without a presence
// socket. The conversation gate applies here too.
func (h *Handlers) SetAvailability(c *gin.Context) {
	sessionID := c.Param("session_id")
	participantID := c.Param("participant_id")
	ctx := c.Request.Context()

	var req setAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.records.ReadRecord(ctx, sessionID, participantID)
	if err != nil {
		h.writeRecordError(c, err)
		return
	}
	if !presence.CanToggle(rec.ConversationState) {
		h.metrics.RecordToggle(metrics.ToggleDenied)
		c.JSON(http.StatusConflict, gin.H{
			"error": "availability cannot be changed during a conversation",
			"view":  presence.ViewOf(rec),
		})
		return
	}

	if rec.IsAvailableForCall != *req.Value {
		err = h.records.WriteAvailability(ctx, sessionID, participantID, *req.Value)
		h.metrics.RecordWrite(err)
		if err != nil {
			h.writeRecordError(c, err)
			return
		}
		h.metrics.RecordToggle(metrics.ToggleAccepted)
		if rec, err = h.records.ReadRecord(ctx, sessionID, participantID); err != nil {
			h.writeRecordError(c, err)
			return
		}
	} else {
		h.metrics.RecordToggle(metrics.ToggleUnchanged)
	}

	c.JSON(http.StatusOK, participantResponse{Record: rec, View: presence.ViewOf(rec)})
}

func (h *Handlers) writeRecordError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, records.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
	case errors.Is(err, records.ErrAlreadyJoined):
		c.JSON(http.StatusConflict, gin.H{"error": "participant already joined"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
