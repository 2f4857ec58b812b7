// Package presence tracks room membership and the delayed MOTD delivery queue
// of one chat server.
package presence

import (
	"time"

	"squadbot/internal/model"
)

// Delivery timing.
const (
	DeliverAfter = 2 * time.Second
	ExpireAfter  = 300 * time.Second
)

// Presence is a membership change observed in a room.
type Presence struct {
	Room        string
	User        string
	Self        bool
	Unavailable bool
}

// Tracker holds the joined state of every configured room and the queue of
// users waiting for the MOTD. It is not safe for concurrent use.
type Tracker struct {
	server   *model.ServerConfig
	optedOut func(user string) bool

	joined  map[string]bool
	pending []model.PendingReceiver
}

// New returns a Tracker for server. optedOut reports whether a user declined
// MOTD delivery.
func New(server *model.ServerConfig, optedOut func(user string) bool) *Tracker {
	return &Tracker{
		server:   server,
		optedOut: optedOut,
		joined:   make(map[string]bool),
	}
}

// Observe applies p at time now. It reports whether the user was queued.
func (t *Tracker) Observe(p Presence, now time.Time) bool {
	room, ok := t.server.Room(p.Room)
	if !ok {
		return false
	}
	if p.Self {
		t.joined[room.Name] = !p.Unavailable
		return false
	}
	if !t.joined[room.Name] || !room.Motd || p.Unavailable {
		return false
	}
	if t.Queued(p.User) || t.optedOut(p.User) {
		return false
	}
	t.pending = append(t.pending, model.PendingReceiver{User: p.User, JoinedAt: now})
	return true
}

// Sweep delivers the MOTD to receivers that joined at least DeliverAfter ago
// and drops receivers served more than ExpireAfter ago.
func (t *Tracker) Sweep(now time.Time, deliver func(user string)) {
	kept := t.pending[:0]
	for _, r := range t.pending {
		switch {
		case !r.Delivered() && now.Sub(r.JoinedAt) >= DeliverAfter:
			r.SentAt = now
			deliver(r.User)
		case r.Delivered() && now.Sub(r.SentAt) > ExpireAfter:
			continue
		}
		kept = append(kept, r)
	}
	clear(t.pending[len(kept):])
	t.pending = kept
}

// Joined reports whether the bot finished joining room.
func (t *Tracker) Joined(room string) bool {
	return t.joined[room]
}

// Reset marks every room as not joined. The queue is kept.
func (t *Tracker) Reset() {
	clear(t.joined)
}

// Queued reports whether user is in the delivery queue.
func (t *Tracker) Queued(user string) bool {
	for _, r := range t.pending {
		if r.User == user {
			return true
		}
	}
	return false
}

// Pending returns a copy of the delivery queue.
func (t *Tracker) Pending() []model.PendingReceiver {
	out := make([]model.PendingReceiver, len(t.pending))
	copy(out, t.pending)
	return out
}
