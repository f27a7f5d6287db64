package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the API under api.
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/client-config", h.GetClientConfig)
	api.GET("/ws", h.HandlePresenceSocket)

	sessions := api.Group("/sessions/:session_id")
	sessions.POST("/participants", h.JoinSession)
	sessions.GET("/participants", h.ListParticipants)
	sessions.GET("/participants/:participant_id", h.GetParticipant)
	sessions.GET("/conversations", h.ListConversations)
	sessions.GET("/conversations/:conversation_id", h.GetConversation)

	authed := sessions.Group("", h.AuthMiddleware())
	authed.DELETE("/participants/:participant_id", h.LeaveSession)
	authed.PUT("/participants/:participant_id/availability", h.SetAvailability)
	authed.POST("/conversations", h.StartConversation)
	authed.POST("/conversations/:conversation_id/end", h.EndConversation)
}
