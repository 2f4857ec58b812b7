// Package supervisor owns one chat session per configured server and runs
// every piece of bot state on a single event loop.
//
// Reader, timer and network goroutines never touch state directly. They post
// closures onto the loop, and each closure first checks that the connection
// it was created for is still the current one.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"squadbot/internal/activity"
	"squadbot/internal/bot"
	"squadbot/internal/model"
	"squadbot/internal/motd"
	"squadbot/internal/presence"
	"squadbot/internal/telemetry"
	"squadbot/internal/transport"
)

// Resolver checks that a server address resolves. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// CommandHandler runs chat commands. *bot.Bot satisfies it.
type CommandHandler interface {
	Handle(ctx context.Context, req bot.Request) bool
}

// Timing holds the supervisor's intervals and thresholds.
type Timing struct {
	Heartbeat        time.Duration
	HeartbeatTimeout time.Duration
	KeepaliveAfter   time.Duration
	MotdSweep        time.Duration
	Poll             time.Duration
	RetryDelay       time.Duration
}

// DefaultTiming returns the production timing.
func DefaultTiming() Timing {
	return Timing{
		Heartbeat:        time.Second,
		HeartbeatTimeout: 65 * time.Second,
		KeepaliveAfter:   30 * time.Second,
		MotdSweep:        500 * time.Millisecond,
		Poll:             30 * time.Second,
		RetryDelay:       2 * time.Second,
	}
}

// Config holds the collaborators of a Supervisor. Poller may be nil.
type Config struct {
	Servers  []*model.ServerConfig
	Dialer   transport.Dialer
	Resolver Resolver
	Motds    map[string]*motd.Store
	Poller   *activity.Poller
	Timing   Timing
}

// Supervisor is the bot runtime: connection map, presence trackers and the
// event loop that serializes access to them.
type Supervisor struct {
	servers  []*model.ServerConfig
	dialer   transport.Dialer
	resolver Resolver
	motds    map[string]*motd.Store
	poller   *activity.Poller
	handler  CommandHandler
	timing   Timing
	log      *slog.Logger
	now      func() time.Time

	ctx      context.Context
	loop     chan func()
	done     chan struct{}
	conns    map[string]*conn
	trackers map[string]*presence.Tracker
}

// New creates a Supervisor. SetHandler must be called before Run.
func New(cfg Config, log *slog.Logger) *Supervisor {
	s := &Supervisor{
		servers:  cfg.Servers,
		dialer:   cfg.Dialer,
		resolver: cfg.Resolver,
		motds:    cfg.Motds,
		poller:   cfg.Poller,
		timing:   cfg.Timing,
		log:      log,
		now:      time.Now,
		ctx:      context.Background(),
		loop:     make(chan func(), 64),
		done:     make(chan struct{}),
		conns:    make(map[string]*conn),
		trackers: make(map[string]*presence.Tracker),
	}
	for _, srv := range cfg.Servers {
		optedOut := func(string) bool { return false }
		if store, ok := cfg.Motds[srv.Name]; ok {
			optedOut = store.OptedOut
		}
		s.trackers[srv.Name] = presence.New(srv, optedOut)
	}
	return s
}

// SetHandler sets the command handler. The handler usually needs the
// supervisor as its Sender and Runner, hence the separate step.
func (s *Supervisor) SetHandler(h CommandHandler) {
	s.handler = h
}

// Run connects every server and processes events until ctx is cancelled,
// then disconnects everything.
func (s *Supervisor) Run(ctx context.Context) error {
	s.ctx = ctx
	defer close(s.done)

	for _, srv := range s.servers {
		s.connect(srv)
	}

	for {
		select {
		case <-ctx.Done():
			for _, c := range s.conns {
				s.disconnect(c)
			}
			s.log.Info("supervisor stopped")
			return nil
		case f := <-s.loop:
			f()
		}
	}
}

// post queues f onto the event loop. It reports false once Run has returned.
func (s *Supervisor) post(f func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.loop <- f:
		return true
	case <-s.done:
		return false
	}
}

// call runs f on the event loop and waits for it.
func (s *Supervisor) call(f func()) bool {
	ran := make(chan struct{})
	if !s.post(func() { f(); close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-s.done:
		return false
	}
}

// Go runs work on its own goroutine and posts the function it returns back
// onto the event loop.
func (s *Supervisor) Go(ctx context.Context, work func(ctx context.Context) func()) {
	go func() {
		next := work(ctx)
		if next != nil {
			s.post(next)
		}
	}()
}

// SendChat sends text to a room. Must be called on the event loop.
func (s *Supervisor) SendChat(server *model.ServerConfig, roomJID, text string) {
	c, ok := s.online(server.Name)
	if !ok {
		s.log.Warn("drop room message, not connected", "server", server.Name, "room", roomJID)
		return
	}
	if err := c.client.SendGroup(roomJID, text); err != nil {
		s.log.Error("send room message", "server", server.Name, "room", roomJID, "error", err)
	}
}

// SendPrivate sends text to a user. Must be called on the event loop.
func (s *Supervisor) SendPrivate(server *model.ServerConfig, jid, text string) {
	c, ok := s.online(server.Name)
	if !ok {
		s.log.Warn("drop private message, not connected", "server", server.Name, "to", jid)
		return
	}
	if err := c.client.SendPrivate(jid, text); err != nil {
		s.log.Error("send private message", "server", server.Name, "to", jid, "error", err)
	}
}

// Broadcast posts text into every announce room of every online server. It
// is safe to call from any goroutine.
func (s *Supervisor) Broadcast(text string) {
	s.post(func() { s.broadcast(text) })
}

func (s *Supervisor) broadcast(text string) {
	for _, srv := range s.servers {
		c, ok := s.online(srv.Name)
		if !ok {
			continue
		}
		for _, room := range srv.Rooms {
			if !room.Announce {
				continue
			}
			if err := c.client.SendGroup(srv.RoomJID(room.Name), text); err != nil {
				s.log.Error("send announcement", "server", srv.Name, "room", room.Name, "error", err)
			}
		}
	}
}

// States returns the connection state of every server. It is safe to call
// from any goroutine while Run is active.
func (s *Supervisor) States() map[string]State {
	out := make(map[string]State, len(s.servers))
	s.call(func() {
		for _, srv := range s.servers {
			out[srv.Name] = StateDisconnected
			if c, ok := s.conns[srv.Name]; ok {
				out[srv.Name] = c.state
			}
		}
	})
	return out
}

func (s *Supervisor) online(server string) (*conn, bool) {
	c, ok := s.conns[server]
	if !ok || c.state != StateOnline {
		return nil, false
	}
	return c, true
}

// poll starts an activity poll unless one is already running.
func (s *Supervisor) poll() {
	if s.poller == nil || !s.poller.Start() {
		return
	}
	s.Go(s.ctx, func(ctx context.Context) func() {
		batch := s.poller.Fetch(ctx)
		return func() {
			defer s.poller.Done()
			for _, a := range s.poller.Process(s.ctx, batch) {
				telemetry.Announcements.WithLabelValues(string(a.Category)).Inc()
				s.broadcast(a.Text)
			}
		}
	})
}
