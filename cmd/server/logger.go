package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger logs every request with the session and participant it
// addressed. Server errors log at Error, rejected requests (auth failures,
// gate conflicts, unknown participants) at Warn, the rest at Debug.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.String("ip", c.ClientIP()),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()),
		}
		if sid := c.Param("session_id"); sid != "" {
			attrs = append(attrs, slog.String("session_id", sid))
		}
		if pid := c.Param("participant_id"); pid != "" {
			attrs = append(attrs, slog.String("participant_id", pid))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		level := slog.LevelDebug
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}

// serverErrorLog routes net/http server errors into slog, dropping handshakes
// for hosts autocert refuses.
func serverErrorLog(logger *slog.Logger) io.Writer {
	return serverErrorWriter{logger: logger}
}

type serverErrorWriter struct {
	logger *slog.Logger
}

func (w serverErrorWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" || (strings.Contains(msg, "TLS handshake error") && strings.Contains(msg, "not configured")) {
		return len(p), nil
	}
	w.logger.Log(context.Background(), slog.LevelWarn, "http server", "message", msg)
	return len(p), nil
}
