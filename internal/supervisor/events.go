package supervisor

import (
	"strings"

	"squadbot/internal/bot"
	"squadbot/internal/model"
	"squadbot/internal/presence"
	"squadbot/internal/telemetry"
	"squadbot/internal/transport"
)

// handleEvent routes one inbound stanza of c. Events of a stale conn are
// dropped.
func (s *Supervisor) handleEvent(c *conn, ev transport.Event) {
	if !s.current(c) {
		return
	}
	server := c.server
	c.lastSeen = s.now()
	telemetry.Stanzas.WithLabelValues(server.Name, ev.Kind.String()).Inc()

	switch ev.Kind {
	case transport.KindError:
		if ev.Err != nil {
			s.log.Error("session error", "server", server.Name, "error", ev.Err)
			return
		}
		s.log.Warn("error stanza", "server", server.Name, "from", ev.From, "text", ev.Body)

	case transport.KindPresence:
		p := presence.Presence{Room: ev.Room, User: ev.User, Self: ev.Self, Unavailable: ev.Unavailable}
		queued := s.trackers[server.Name].Observe(p, s.now())
		switch {
		case ev.Self && !ev.Unavailable:
			s.log.Debug("room joined", "server", server.Name, "room", ev.Room)
		case queued:
			s.log.Info("user joined", "server", server.Name, "room", ev.Room, "user", ev.User)
		}

	case transport.KindGroupMessage:
		if ev.Body == "" || ev.User == "" || strings.EqualFold(ev.User, server.Nickname) {
			return
		}
		room, ok := server.Room(ev.Room)
		if !ok || !room.Monitor {
			return
		}
		s.dispatch(bot.Request{
			Server:     server,
			Room:       server.RoomJID(ev.Room),
			User:       ev.User,
			From:       server.UserJID(ev.User),
			Text:       ev.Body,
			Privileged: ev.Trusted || server.IsAdmin(ev.User),
		})

	case transport.KindDirectMessage:
		if ev.Body == "" || !server.AllowPrivateCommands {
			return
		}
		s.dispatch(bot.Request{
			Server:     server,
			Room:       model.PrivateRoom,
			User:       ev.User,
			From:       ev.From,
			Text:       ev.Body,
			Privileged: ev.Trusted || server.IsAdmin(ev.User),
		})
	}
}

func (s *Supervisor) dispatch(req bot.Request) {
	if s.handler == nil {
		return
	}
	s.handler.Handle(s.ctx, req)
}
