package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tariel-x/gopresence/internal/presence"
	"github.com/tariel-x/gopresence/internal/records"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 70 * time.Second
	wsPingPeriod = 30 * time.Second
)

const (
	wsTypePresence = "presence"
	wsTypeToggle   = "toggle"
	wsTypePing     = "ping"
	wsTypeError    = "error"
)

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type wsToggleData struct {
	Value *bool `json:"value"`
}

type wsErrorData struct {
	Message string `json:"message"`
}

// HandlePresenceSocket streams the participant's presence view and accepts
// toggles. The socket owns one controller for its whole lifetime.
func (h *Handlers) HandlePresenceSocket(c *gin.Context) {
	claims, err := h.issuer.Parse(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	sessionID, participantID := claims.SessionID, claims.ParticipantID
	logger := h.logger.With("session_id", sessionID, "participant_id", participantID)

	if _, err := h.records.ReadRecord(c.Request.Context(), sessionID, participantID); err != nil {
		h.writeRecordError(c, err)
		return
	}

	conn, err := h.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn:          conn,
		send:          make(chan []byte, 32),
		sessionID:     sessionID,
		participantID: participantID,
	}

	ctrl, err := presence.Open(c.Request.Context(), h.records, sessionID, participantID,
		presence.WithLogger(logger),
		presence.WithMetrics(h.metrics),
		presence.WithWriteTimeout(h.writeTimeout()),
		presence.WithOnChange(func(view presence.View) {
			if !client.trySend(presenceMessage(view)) {
				_ = client.conn.Close()
			}
		}),
	)
	if err != nil {
		logger.Warn("failed to open presence controller", "error", err)
		msg := wsErrorMessage("participant not found")
		if !errors.Is(err, records.ErrRecordNotFound) {
			msg = wsErrorMessage("presence unavailable")
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = conn.WriteMessage(websocket.TextMessage, msg)
		_ = conn.Close()
		return
	}

	h.wsHub.Add(client)
	h.metrics.WSConnected()
	logger.Debug("ws connected")

	go h.writePump(client)
	h.readPump(client, ctrl, logger)
}

func (h *Handlers) readPump(client *wsClient, ctrl *presence.Controller, logger *slog.Logger) {
	defer func() {
		logger.Debug("ws disconnect")
		ctrl.Close()
		_ = client.conn.Close()
		h.wsHub.Remove(client)
		h.metrics.WSDisconnected()
	}()

	_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			logger.Debug("ws read error", "error", err)
			return
		}

		var msg wsEnvelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Debug("ws bad json", "error", err)
			continue
		}

		switch msg.Type {
		case wsTypePing:
		case wsTypeToggle:
			var data wsToggleData
			if err := json.Unmarshal(msg.Data, &data); err != nil || data.Value == nil {
				client.trySend(wsErrorMessage("toggle requires a boolean value"))
				continue
			}
			if !ctrl.UserToggle(*data.Value) {
				// The client rendered its own guess; restore the real view.
				client.trySend(presenceMessage(ctrl.View()))
			}
		default:
			logger.Debug("ws unknown message type", "type", msg.Type)
		}
	}
}

func (h *Handlers) writePump(client *wsClient) {
	defer func() {
		_ = client.conn.Close()
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handlers) writeTimeout() time.Duration {
	if h.config == nil {
		return 0
	}
	return h.config.WriteTimeout
}

func presenceMessage(view presence.View) []byte {
	msg, _ := json.Marshal(wsEnvelope{Type: wsTypePresence, Data: mustMarshal(view)})
	return msg
}

func wsErrorMessage(message string) []byte {
	msg, _ := json.Marshal(wsEnvelope{Type: wsTypeError, Data: mustMarshal(wsErrorData{Message: message})})
	return msg
}

func mustMarshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
