// Package transport defines the chat session the supervisor drives and an
// XMPP implementation of it.
package transport

import (
	"context"

	"squadbot/internal/model"
)

// Kind classifies an inbound stanza.
type Kind int

// Stanza kinds.
const (
	KindOther Kind = iota
	KindPresence
	KindGroupMessage
	KindDirectMessage
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindPresence:
		return "presence"
	case KindGroupMessage:
		return "groupchat"
	case KindDirectMessage:
		return "chat"
	case KindError:
		return "error"
	default:
		return "other"
	}
}

// Event is one inbound stanza.
//
// For presence and group messages Room is the room's local name and User the
// occupant nickname. For direct messages From is the sender's bare address
// and User its local part, except when the sender is a room occupant: then
// Room and User name the occupant and From is its full room address.
type Event struct {
	Kind        Kind
	Room        string
	User        string
	From        string
	Body        string
	Self        bool
	Unavailable bool
	Trusted     bool
	Err         error
}

// Client is one authenticated chat session. Events is closed when the
// session ends.
type Client interface {
	Events() <-chan Event
	SetAvailable() error
	JoinRoom(roomJID, nick string) error
	SendGroup(roomJID, text string) error
	SendPrivate(jid, text string) error
	Ping() error
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, server *model.ServerConfig) (Client, error)
}
