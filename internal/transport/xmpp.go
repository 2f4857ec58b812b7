package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xmppo/go-xmpp"

	"squadbot/internal/model"
)

const (
	xmppPort   = "5222"
	eventQueue = 64
)

// xmppConn is the subset of *xmpp.Client the adapter uses.
type xmppConn interface {
	Recv() (any, error)
	Send(chat xmpp.Chat) (int, error)
	SendOrg(org string) (int, error)
	JoinMUCNoHistory(jid, nick string) (int, error)
	PingC2S(jid, server string) error
	Close() error
}

// XMPPDialer opens XMPP sessions with STARTTLS on port 5222.
type XMPPDialer struct {
	log *slog.Logger
}

// NewXMPPDialer returns an XMPPDialer.
func NewXMPPDialer(log *slog.Logger) *XMPPDialer {
	return &XMPPDialer{log: log}
}

// Dial connects and authenticates as server.Username. Each session gets a
// random "bot-xxxxxx" resource.
func (d *XMPPDialer) Dial(ctx context.Context, server *model.ServerConfig) (Client, error) {
	opts := xmpp.Options{
		Host:     net.JoinHostPort(server.Address, xmppPort),
		User:     server.Username,
		Password: server.Password,
		Resource: "bot-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6],
		NoTLS:    true,
		StartTLS: true,
		Session:  true,
		Status:   "chat",
	}

	type result struct {
		cl  *xmpp.Client
		err error
	}
	done := make(chan result, 1)
	go func() {
		cl, err := opts.NewClient()
		done <- result{cl, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.cl != nil {
				_ = r.cl.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("xmpp connect: %w", r.err)
		}
		rooms := make([]string, 0, len(server.Rooms))
		for _, room := range server.Rooms {
			rooms = append(rooms, server.RoomJID(room.Name))
		}
		return newXMPPClient(r.cl, server.Nickname, rooms, d.log.With("server", server.Name)), nil
	}
}

type xmppClient struct {
	conn   xmppConn
	nick   string
	rooms  map[string]bool
	log    *slog.Logger
	events chan Event

	closeOnce sync.Once
}

func newXMPPClient(conn xmppConn, nick string, roomJIDs []string, log *slog.Logger) *xmppClient {
	rooms := make(map[string]bool, len(roomJIDs))
	for _, jid := range roomJIDs {
		rooms[strings.ToLower(jid)] = true
	}
	c := &xmppClient{
		conn:   conn,
		nick:   nick,
		rooms:  rooms,
		log:    log,
		events: make(chan Event, eventQueue),
	}
	go c.read()
	return c
}

func (c *xmppClient) read() {
	defer close(c.events)
	for {
		stanza, err := c.conn.Recv()
		if err != nil {
			c.log.Debug("xmpp session ended", "error", err)
			c.events <- Event{Kind: KindError, Err: err}
			return
		}
		c.events <- classify(stanza, c.nick, c.rooms)
	}
}

func (c *xmppClient) Events() <-chan Event {
	return c.events
}

func (c *xmppClient) SetAvailable() error {
	if _, err := c.conn.SendOrg("<presence><show>chat</show></presence>"); err != nil {
		return fmt.Errorf("send presence: %w", err)
	}
	return nil
}

func (c *xmppClient) JoinRoom(roomJID, nick string) error {
	if _, err := c.conn.JoinMUCNoHistory(roomJID, nick); err != nil {
		return fmt.Errorf("join %s: %w", roomJID, err)
	}
	return nil
}

func (c *xmppClient) SendGroup(roomJID, text string) error {
	if _, err := c.conn.Send(xmpp.Chat{Remote: roomJID, Type: "groupchat", Text: text}); err != nil {
		return fmt.Errorf("send groupchat: %w", err)
	}
	return nil
}

func (c *xmppClient) SendPrivate(jid, text string) error {
	if _, err := c.conn.Send(xmpp.Chat{Remote: jid, Type: "chat", Text: text}); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}
	return nil
}

func (c *xmppClient) Ping() error {
	return c.conn.PingC2S("", "")
}

// Close ends the session. The read loop then fails and closes Events.
func (c *xmppClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// classify turns a stanza into an Event. rooms holds the lower-cased bare
// addresses of the configured rooms.
func classify(stanza any, nick string, rooms map[string]bool) Event {
	switch v := stanza.(type) {
	case xmpp.Chat:
		return classifyChat(v, rooms)
	case xmpp.Presence:
		return classifyPresence(v, nick)
	default:
		return Event{Kind: KindOther}
	}
}

func classifyChat(m xmpp.Chat, rooms map[string]bool) Event {
	bare, resource := splitJID(m.Remote)
	switch m.Type {
	case "error":
		return Event{Kind: KindError, From: m.Remote, Body: m.Text}
	case "groupchat":
		return Event{
			Kind:    KindGroupMessage,
			Room:    localPart(bare),
			User:    resource,
			From:    m.Remote,
			Body:    m.Text,
			Trusted: trusted(m.OtherElem),
		}
	case "chat", "":
		if resource != "" && rooms[strings.ToLower(bare)] {
			// Private message from a room occupant; replies go to the
			// occupant address.
			return Event{
				Kind:    KindDirectMessage,
				Room:    localPart(bare),
				User:    resource,
				From:    m.Remote,
				Body:    m.Text,
				Trusted: trusted(m.OtherElem),
			}
		}
		return Event{
			Kind:    KindDirectMessage,
			User:    localPart(bare),
			From:    bare,
			Body:    m.Text,
			Trusted: trusted(m.OtherElem),
		}
	default:
		return Event{Kind: KindOther, From: m.Remote}
	}
}

func classifyPresence(p xmpp.Presence, nick string) Event {
	if p.Type == "error" {
		return Event{Kind: KindError, From: p.From}
	}
	bare, resource := splitJID(p.From)
	if resource == "" {
		return Event{Kind: KindOther, From: p.From}
	}
	return Event{
		Kind:        KindPresence,
		Room:        localPart(bare),
		User:        resource,
		From:        p.From,
		Self:        strings.EqualFold(resource, nick),
		Unavailable: p.Type == "unavailable",
	}
}

// trusted reports whether the stanza carries <cseflags cse="cse"/>.
func trusted(elems []xmpp.XMLElement) bool {
	for _, e := range elems {
		if e.XMLName.Local != "cseflags" {
			continue
		}
		for _, a := range e.Attr {
			if a.Name.Local == "cse" && a.Value == "cse" {
				return true
			}
		}
	}
	return false
}

func splitJID(jid string) (bare, resource string) {
	bare, resource, _ = strings.Cut(jid, "/")
	return bare, resource
}

func localPart(bare string) string {
	local, _, _ := strings.Cut(bare, "@")
	return local
}
