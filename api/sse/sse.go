package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skipmechanics/guildpanel/cache"
	"github.com/skipmechanics/guildpanel/config"
	mw "github.com/skipmechanics/guildpanel/middleware"
	"github.com/skipmechanics/guildpanel/presence"
	"go.uber.org/zap"
)

// Handler streams roster events over SSE for clients that cannot hold a
// WebSocket (read-only dashboards, TVs in the guild hall).
type Handler struct {
	pubsub  cache.PubSub
	c       cache.Cache
	sec     config.SecurityConfig
	tracker *presence.Tracker
	logger  *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, c cache.Cache, sec config.SecurityConfig, tracker *presence.Tracker, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, c: c, sec: sec, tracker: tracker, logger: logger}
}

// ServeSSE handles GET /sse?token=<jwt>. The stream opens with a full
// roster snapshot and then relays every presence event.
func (h *Handler) ServeSSE(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	if _, err := mw.ParseToken(tokenStr, h.sec.JWTSecret); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	exists, err := h.c.Exists(ctx, "session:"+tokenStr)
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, presence.Channel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	// Initial snapshot so the client has a roster before any delta.
	snapshot, _ := json.Marshal(presence.Event{
		Type:   presence.EventSync,
		Roster: h.tracker.MirrorSnapshot(c.Request.Context()),
	})
	fmt.Fprintf(c.Writer, "event: presence\ndata: %s\n\n", snapshot)
	c.Writer.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: presence\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
