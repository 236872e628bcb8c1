package presence

import "sort"

// Entry is one connected member as announced by their client. Multiple
// connections from the same user collapse to one entry.
type Entry struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar,omitempty"`
	IsOfficer bool   `json:"is_officer"`
}

// EventType classifies roster events on the broadcast channel.
type EventType string

const (
	EventJoined EventType = "joined"
	EventLeft   EventType = "left"
	EventSync   EventType = "sync"
)

// Event is one roster change. Joined and left carry the affected entry;
// sync carries the full roster and replaces any local view.
type Event struct {
	Type   EventType `json:"type"`
	Entry  *Entry    `json:"entry,omitempty"`
	Roster []Entry   `json:"roster,omitempty"`
}

// Roster is a pure reducer over a stream of Events. It holds the
// deduplicated set of announced entries keyed by user ID; the latest
// announcement for a key wins.
type Roster struct {
	entries map[string]Entry
}

func NewRoster() *Roster {
	return &Roster{entries: make(map[string]Entry)}
}

// Apply folds one event into the roster.
func (r *Roster) Apply(ev Event) {
	switch ev.Type {
	case EventJoined:
		if ev.Entry != nil && ev.Entry.UserID != "" {
			r.entries[ev.Entry.UserID] = *ev.Entry
		}
	case EventLeft:
		if ev.Entry != nil {
			delete(r.entries, ev.Entry.UserID)
		}
	case EventSync:
		r.entries = make(map[string]Entry, len(ev.Roster))
		for _, e := range ev.Roster {
			if e.UserID != "" {
				r.entries[e.UserID] = e
			}
		}
	}
}

// Entries returns the current roster sorted by name for stable display.
func (r *Roster) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Len returns the number of distinct users online.
func (r *Roster) Len() int {
	return len(r.entries)
}
