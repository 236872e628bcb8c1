package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skipmechanics/guildpanel/cache"
	"github.com/skipmechanics/guildpanel/presence"
	"go.uber.org/zap"
)

// client owns one websocket connection. All writes funnel through the
// send channel so the write pump is the only goroutine touching the conn
// for output.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
	logger *zap.Logger
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// sendEvent queues a presence event, dropping it if the client cannot
// keep up. A periodic sync repairs anything a slow client missed.
func (c *client) sendEvent(ev presence.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	pkt, err := json.Marshal(Packet{Type: "presence", Payload: payload})
	if err != nil {
		return
	}
	defer func() {
		// Send on a closed channel means the connection already went away.
		recover()
	}()
	select {
	case c.send <- pkt:
	default:
		c.logger.Debug("ws send buffer full, dropping event")
	}
}

// forwardEvents relays roster events from the pub/sub subscription.
func (c *client) forwardEvents(events <-chan *cache.Message) {
	for msg := range events {
		var ev presence.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			continue
		}
		c.sendEvent(ev)
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings. It exits when the send channel closes.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
