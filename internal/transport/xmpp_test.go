package transport

import (
	"encoding/xml"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/xmppo/go-xmpp"
)

type fakeConn struct {
	mu      sync.Mutex
	stanzas chan any
	sent    []xmpp.Chat
	raw     []string
	joined  []string
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{stanzas: make(chan any, 8)}
}

func (f *fakeConn) Recv() (any, error) {
	s, ok := <-f.stanzas
	if !ok {
		return nil, io.EOF
	}
	return s, nil
}

func (f *fakeConn) Send(chat xmpp.Chat) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, chat)
	return len(chat.Text), nil
}

func (f *fakeConn) SendOrg(org string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw = append(f.raw, org)
	return len(org), nil
}

func (f *fakeConn) JoinMUCNoHistory(jid, nick string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, jid+"/"+nick)
	return 0, nil
}

func (f *fakeConn) PingC2S(string, string) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.stanzas)
	}
	return nil
}

func cseflags(value string) []xmpp.XMLElement {
	return []xmpp.XMLElement{{
		XMLName: xml.Name{Local: "cseflags"},
		Attr:    []xml.Attr{{Name: xml.Name{Local: "cse"}, Value: value}},
	}}
}

func TestClassify(t *testing.T) {
	rooms := map[string]bool{"lobby@conference.chat.example.com": true}
	tests := []struct {
		name   string
		stanza any
		want   Event
	}{
		{
			name:   "group message",
			stanza: xmpp.Chat{Remote: "lobby@conference.chat.example.com/alice", Type: "groupchat", Text: "!help"},
			want: Event{
				Kind: KindGroupMessage, Room: "lobby", User: "alice",
				From: "lobby@conference.chat.example.com/alice", Body: "!help",
			},
		},
		{
			name: "trusted group message",
			stanza: xmpp.Chat{
				Remote: "lobby@conference.chat.example.com/mark", Type: "groupchat", Text: "!motd hi",
				OtherElem: cseflags("cse"),
			},
			want: Event{
				Kind: KindGroupMessage, Room: "lobby", User: "mark",
				From: "lobby@conference.chat.example.com/mark", Body: "!motd hi", Trusted: true,
			},
		},
		{
			name: "cseflags with other value",
			stanza: xmpp.Chat{
				Remote: "bob@chat.example.com/web", Type: "chat", Text: "!motd hi",
				OtherElem: cseflags("player"),
			},
			want: Event{Kind: KindDirectMessage, User: "bob", From: "bob@chat.example.com", Body: "!motd hi"},
		},
		{
			name:   "direct message",
			stanza: xmpp.Chat{Remote: "bob@chat.example.com/web", Type: "chat", Text: "!tips"},
			want:   Event{Kind: KindDirectMessage, User: "bob", From: "bob@chat.example.com", Body: "!tips"},
		},
		{
			name:   "private message from room occupant",
			stanza: xmpp.Chat{Remote: "Lobby@conference.chat.example.com/alice", Type: "chat", Text: "!motdoff"},
			want: Event{
				Kind: KindDirectMessage, Room: "Lobby", User: "alice",
				From: "Lobby@conference.chat.example.com/alice", Body: "!motdoff",
			},
		},
		{
			name:   "private message from unconfigured room",
			stanza: xmpp.Chat{Remote: "cellar@conference.chat.example.com/alice", Type: "chat", Text: "!tips"},
			want:   Event{Kind: KindDirectMessage, User: "cellar", From: "cellar@conference.chat.example.com", Body: "!tips"},
		},
		{
			name:   "error message",
			stanza: xmpp.Chat{Remote: "lobby@conference.chat.example.com", Type: "error", Text: "not allowed"},
			want:   Event{Kind: KindError, From: "lobby@conference.chat.example.com", Body: "not allowed"},
		},
		{
			name:   "occupant join",
			stanza: xmpp.Presence{From: "lobby@conference.chat.example.com/alice"},
			want:   Event{Kind: KindPresence, Room: "lobby", User: "alice", From: "lobby@conference.chat.example.com/alice"},
		},
		{
			name:   "occupant leave",
			stanza: xmpp.Presence{From: "lobby@conference.chat.example.com/alice", Type: "unavailable"},
			want: Event{
				Kind: KindPresence, Room: "lobby", User: "alice",
				From: "lobby@conference.chat.example.com/alice", Unavailable: true,
			},
		},
		{
			name:   "own join completes room",
			stanza: xmpp.Presence{From: "lobby@conference.chat.example.com/squadbot"},
			want: Event{
				Kind: KindPresence, Room: "lobby", User: "squadbot",
				From: "lobby@conference.chat.example.com/squadbot", Self: true,
			},
		},
		{
			name:   "own join with different case",
			stanza: xmpp.Presence{From: "lobby@conference.chat.example.com/SquadBot"},
			want: Event{
				Kind: KindPresence, Room: "lobby", User: "SquadBot",
				From: "lobby@conference.chat.example.com/SquadBot", Self: true,
			},
		},
		{
			name:   "bare presence",
			stanza: xmpp.Presence{From: "chat.example.com"},
			want:   Event{Kind: KindOther, From: "chat.example.com"},
		},
		{
			name:   "presence error",
			stanza: xmpp.Presence{From: "lobby@conference.chat.example.com/squadbot", Type: "error"},
			want:   Event{Kind: KindError, From: "lobby@conference.chat.example.com/squadbot"},
		},
		{
			name:   "iq",
			stanza: xmpp.IQ{ID: "1", Type: "result"},
			want:   Event{Kind: KindOther},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.stanza, "squadbot", rooms)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("classify() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClientSessionEnds(t *testing.T) {
	conn := newFakeConn()
	c := newXMPPClient(conn, "squadbot", []string{"lobby@conference.chat.example.com"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	conn.stanzas <- xmpp.Presence{From: "lobby@conference.chat.example.com/alice"}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = c.Close()

	var got []Event
	for ev := range c.Events() {
		got = append(got, ev)
	}

	want := []Event{
		{Kind: KindPresence, Room: "lobby", User: "alice", From: "lobby@conference.chat.example.com/alice"},
		{Kind: KindError, Err: io.EOF},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateErrors()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestClientSends(t *testing.T) {
	conn := newFakeConn()
	c := newXMPPClient(conn, "squadbot", []string{"lobby@conference.chat.example.com"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = c.Close() })

	if err := c.SetAvailable(); err != nil {
		t.Fatal(err)
	}
	if err := c.JoinRoom("lobby@conference.chat.example.com", "squadbot"); err != nil {
		t.Fatal(err)
	}
	if err := c.SendGroup("lobby@conference.chat.example.com", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := c.SendPrivate("bob@chat.example.com", "psst"); err != nil {
		t.Fatal(err)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	wantSent := []xmpp.Chat{
		{Remote: "lobby@conference.chat.example.com", Type: "groupchat", Text: "hello"},
		{Remote: "bob@chat.example.com", Type: "chat", Text: "psst"},
	}
	if diff := cmp.Diff(wantSent, conn.sent, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("sent (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"lobby@conference.chat.example.com/squadbot"}, conn.joined); diff != "" {
		t.Errorf("joined (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"<presence><show>chat</show></presence>"}, conn.raw); diff != "" {
		t.Errorf("presence (-want +got):\n%s", diff)
	}
}

func TestKindString(t *testing.T) {
	got := []string{KindPresence.String(), KindGroupMessage.String(), KindDirectMessage.String(), KindError.String(), KindOther.String()}
	want := []string{"presence", "groupchat", "chat", "error", "other"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Kind.String() (-want +got):\n%s", diff)
	}
}
