package presence

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/skipmechanics/guildpanel/cache"
	"go.uber.org/zap"
)

// Channel is the pub/sub channel carrying roster events.
const Channel = "presence"

// rosterKey is the cache hash mirroring the live roster, field = user ID.
const rosterKey = "presence:roster"

// Tracker is the server-side source of truth for who is online. Each
// connection registers with Connect; a user stays on the roster until
// their last connection releases. A cache hash mirrors the roster so
// snapshots can include users connected to other nodes when the cache is
// shared; Reset clears the mirror at startup, so a restart still empties
// the roster and clients re-announce on reconnect.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]Entry
	conns   map[string]int

	pubsub cache.PubSub
	cache  cache.Cache
	logger *zap.Logger
}

func NewTracker(ps cache.PubSub, c cache.Cache, logger *zap.Logger) *Tracker {
	return &Tracker{
		entries: make(map[string]Entry),
		conns:   make(map[string]int),
		pubsub:  ps,
		cache:   c,
		logger:  logger,
	}
}

// Connect registers one connection for a user and returns a release
// function for when that connection closes. The entry is broadcast as a
// joined event; the left event fires only when the user's last connection
// releases.
func (t *Tracker) Connect(ctx context.Context, e Entry) func() {
	t.mu.Lock()
	t.entries[e.UserID] = e
	t.conns[e.UserID]++
	t.mu.Unlock()

	t.broadcast(ctx, Event{Type: EventJoined, Entry: &e})
	t.mirror(ctx, e)

	var once sync.Once
	userID := e.UserID
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.conns[userID]--
			gone := t.conns[userID] <= 0
			var left Entry
			if gone {
				left = t.entries[userID]
				delete(t.conns, userID)
				delete(t.entries, userID)
			}
			t.mu.Unlock()

			if gone {
				ctx := context.Background()
				t.broadcast(ctx, Event{Type: EventLeft, Entry: &left})
				if err := t.cache.HDel(ctx, rosterKey, userID); err != nil {
					t.logger.Warn("roster mirror delete failed", zap.Error(err))
				}
			}
		})
	}
}

// Announce refreshes a connected user's entry. The latest announcement
// wins; clients use this to update avatar or display name mid-session.
func (t *Tracker) Announce(ctx context.Context, e Entry) {
	t.mu.Lock()
	if _, online := t.conns[e.UserID]; !online {
		t.mu.Unlock()
		return
	}
	t.entries[e.UserID] = e
	t.mu.Unlock()

	t.broadcast(ctx, Event{Type: EventJoined, Entry: &e})
	t.mirror(ctx, e)
}

// Snapshot returns the current roster sorted by name.
func (t *Tracker) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r := NewRoster()
	for _, e := range t.entries {
		r.Apply(Event{Type: EventJoined, Entry: &e})
	}
	return r.Entries()
}

// MirrorSnapshot returns the roster as recorded in the cache mirror,
// overlaid with this process's own entries so a failed mirror write never
// hides a user we know is online. With a shared cache this view spans
// nodes; when the mirror is unreadable it degrades to the local roster.
func (t *Tracker) MirrorSnapshot(ctx context.Context) []Entry {
	fields, err := t.cache.HGetAll(ctx, rosterKey)
	if err != nil {
		t.logger.Warn("roster mirror read failed", zap.Error(err))
		return t.Snapshot()
	}
	r := NewRoster()
	for _, raw := range fields {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			t.logger.Warn("roster mirror entry corrupt", zap.Error(err))
			continue
		}
		r.Apply(Event{Type: EventJoined, Entry: &e})
	}
	t.mu.RLock()
	for _, e := range t.entries {
		r.Apply(Event{Type: EventJoined, Entry: &e})
	}
	t.mu.RUnlock()
	return r.Entries()
}

// Reset drops the roster mirror. Run once at process start so entries
// left behind by an unclean shutdown do not linger in a shared cache.
func (t *Tracker) Reset(ctx context.Context) {
	if err := t.cache.Del(ctx, rosterKey); err != nil {
		t.logger.Warn("roster mirror reset failed", zap.Error(err))
	}
}

// Resync broadcasts a full sync event so every subscriber converges on
// the authoritative roster. Run periodically to repair missed deltas.
func (t *Tracker) Resync(ctx context.Context) {
	t.broadcast(ctx, Event{Type: EventSync, Roster: t.MirrorSnapshot(ctx)})
}

func (t *Tracker) broadcast(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		t.logger.Error("presence event marshal failed", zap.Error(err))
		return
	}
	if err := t.pubsub.Publish(ctx, Channel, string(payload)); err != nil {
		t.logger.Warn("presence publish failed", zap.Error(err))
	}
}

func (t *Tracker) mirror(ctx context.Context, e Entry) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := t.cache.HSet(ctx, rosterKey, e.UserID, string(payload)); err != nil {
		t.logger.Warn("roster mirror write failed", zap.Error(err))
	}
}
