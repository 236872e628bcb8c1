package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/skipmechanics/guildpanel/cache"
	"github.com/skipmechanics/guildpanel/config"
	mw "github.com/skipmechanics/guildpanel/middleware"
	"github.com/skipmechanics/guildpanel/model"
	"github.com/skipmechanics/guildpanel/presence"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Packet is the wire envelope for both directions.
type Packet struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// announcePayload is what a client may refresh about itself. The user ID
// and officer flag always come from the profile, never from the client.
type announcePayload struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Handler is the Gin handler for GET /ws, the presence socket.
type Handler struct {
	db       *gorm.DB
	cache    cache.Cache
	pubsub   cache.PubSub
	sec      config.SecurityConfig
	tracker  *presence.Tracker
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(
	db *gorm.DB,
	c cache.Cache,
	ps cache.PubSub,
	sec config.SecurityConfig,
	tracker *presence.Tracker,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		db:      db,
		cache:   c,
		pubsub:  ps,
		sec:     sec,
		tracker: tracker,
		logger:  logger,
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true // dev mode: allow all
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowed {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeWS handles GET /ws?token=<jwt>. The connection joins the presence
// roster immediately and receives every roster event until it closes.
func (h *Handler) ServeWS(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := mw.ParseToken(tokenStr, h.sec.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	exists, err := h.cache.Exists(ctx, "session:"+tokenStr)
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	var prof model.Profile
	if err := h.db.Where("id = ?", claims.UserID).First(&prof).Error; err != nil || prof.Status == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	name := prof.DisplayName
	if name == "" {
		name = prof.Username
	}
	entry := presence.Entry{
		UserID:    prof.ID,
		Name:      name,
		Avatar:    prof.AvatarURL,
		IsOfficer: prof.IsOfficer,
	}

	cl := &client{
		conn:   conn,
		send:   make(chan []byte, 64),
		logger: h.logger,
	}

	subCtx, subCancel := context.WithCancel(context.Background())
	events, unsub, err := h.pubsub.Subscribe(subCtx, presence.Channel)
	if err != nil {
		h.logger.Error("presence subscribe failed", zap.Error(err))
		subCancel()
		conn.Close()
		return
	}

	release := h.tracker.Connect(c.Request.Context(), entry)
	defer func() {
		release()
		unsub()
		subCancel()
		cl.close()
	}()

	go cl.writePump()
	go cl.forwardEvents(events)

	// The new connection starts from an authoritative snapshot; deltas
	// arrive over the subscription from here on.
	cl.sendEvent(presence.Event{Type: presence.EventSync, Roster: h.tracker.MirrorSnapshot(c.Request.Context())})

	h.logger.Info("presence connected",
		zap.String("user_id", prof.ID), zap.String("name", name))
	h.readPump(cl, entry)
}

// readPump consumes announce packets until the connection closes.
func (h *Handler) readPump(cl *client, entry presence.Entry) {
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.String("user_id", entry.UserID), zap.Error(err))
			}
			return
		}
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))

		var pkt Packet
		if err := json.Unmarshal(raw, &pkt); err != nil {
			continue
		}
		if pkt.Type != "announce" {
			continue
		}
		var ann announcePayload
		if err := json.Unmarshal(pkt.Payload, &ann); err != nil {
			continue
		}
		updated := entry
		if ann.Name != "" {
			updated.Name = ann.Name
		}
		if ann.Avatar != "" {
			updated.Avatar = ann.Avatar
		}
		h.tracker.Announce(context.Background(), updated)
	}
}
