package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/skipmechanics/guildpanel/api/ws"
	"github.com/skipmechanics/guildpanel/cache"
	"github.com/skipmechanics/guildpanel/config"
	mw "github.com/skipmechanics/guildpanel/middleware"
	"github.com/skipmechanics/guildpanel/model"
	"github.com/skipmechanics/guildpanel/presence"
	"github.com/skipmechanics/guildpanel/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type wsFixture struct {
	srv     *httptest.Server
	db      *gorm.DB
	cache   cache.Cache
	tracker *presence.Tracker
	sec     config.SecurityConfig
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour}
	tracker := presence.NewTracker(ps, c, zap.NewNop())

	r := gin.New()
	r.GET("/ws", ws.NewHandler(db, c, ps, sec, tracker, zap.NewNop()).ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &wsFixture{srv: srv, db: db, cache: c, tracker: tracker, sec: sec}
}

func (f *wsFixture) tokenFor(t *testing.T, username, displayName string, officer bool) string {
	t.Helper()
	prof := &model.Profile{Username: username, DisplayName: displayName, IsOfficer: officer, Status: 1}
	require.NoError(t, f.db.Create(prof).Error)
	token, err := mw.GenerateToken(prof.ID, f.sec.JWTSecret, f.sec.JWTTTLH)
	require.NoError(t, err)
	require.NoError(t, f.cache.Set(context.Background(), "session:"+token, prof.ID, time.Hour))
	return token
}

func (f *wsFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) presence.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var pkt ws.Packet
	require.NoError(t, json.Unmarshal(raw, &pkt))
	require.Equal(t, "presence", pkt.Type)
	var ev presence.Event
	require.NoError(t, json.Unmarshal(pkt.Payload, &ev))
	return ev
}

func TestServeWSRejectsBadAuth(t *testing.T) {
	f := newWSFixture(t)

	resp, err := http.Get(f.srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/ws?token=garbage")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWSInitialSyncAndJoin(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, f.tokenFor(t, "grunty", "Grunty", false))

	ev := readEvent(t, conn)
	require.Equal(t, presence.EventSync, ev.Type)
	require.Len(t, ev.Roster, 1)
	assert.Equal(t, "Grunty", ev.Roster[0].Name)

	// A second user joining shows up as a delta.
	f.dial(t, f.tokenFor(t, "thrall", "Thrall", true))
	for {
		ev = readEvent(t, conn)
		if ev.Type == presence.EventJoined && ev.Entry != nil && ev.Entry.Name == "Thrall" {
			assert.True(t, ev.Entry.IsOfficer)
			break
		}
	}
	assert.Len(t, f.tracker.Snapshot(), 2)
}

func TestServeWSDisconnectRemoves(t *testing.T) {
	f := newWSFixture(t)
	watcher := f.dial(t, f.tokenFor(t, "grunty", "Grunty", false))
	readEvent(t, watcher) // initial sync

	other := f.dial(t, f.tokenFor(t, "thrall", "Thrall", false))
	for {
		if ev := readEvent(t, watcher); ev.Type == presence.EventJoined && ev.Entry.Name == "Thrall" {
			break
		}
	}

	other.Close()
	for {
		ev := readEvent(t, watcher)
		if ev.Type == presence.EventLeft {
			assert.Equal(t, "Thrall", ev.Entry.Name)
			break
		}
	}
	require.Eventually(t, func() bool {
		return len(f.tracker.Snapshot()) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServeWSAnnounceRefreshesEntry(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, f.tokenFor(t, "grunty", "Grunty", false))
	readEvent(t, conn)

	payload, _ := json.Marshal(map[string]string{"avatar": "orc.png"})
	require.NoError(t, conn.WriteJSON(ws.Packet{Type: "announce", Payload: payload}))

	for {
		ev := readEvent(t, conn)
		if ev.Type == presence.EventJoined && ev.Entry.Avatar == "orc.png" {
			assert.Equal(t, "Grunty", ev.Entry.Name)
			break
		}
	}
	snap := f.tracker.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "orc.png", snap[0].Avatar)
}
