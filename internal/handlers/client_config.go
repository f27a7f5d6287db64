package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type clientConfigResponse struct {
	Debug            bool  `json:"debug"`
	DefaultAvailable bool  `json:"default_available"`
	WriteTimeoutMS   int64 `json:"write_timeout_ms"`
}

func (h *Handlers) GetClientConfig(c *gin.Context) {
	resp := clientConfigResponse{DefaultAvailable: true}
	if h.config != nil {
		resp.Debug = h.config.LogLevel == "debug"
		resp.DefaultAvailable = h.config.DefaultAvailable
		resp.WriteTimeoutMS = h.config.WriteTimeout.Milliseconds()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
