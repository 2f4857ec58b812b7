package supervisor

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"squadbot/internal/model"
	"squadbot/internal/telemetry"
	"squadbot/internal/transport"
)

// State is the lifecycle state of one server connection.
type State int

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateOnline
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOnline:
		return "online"
	default:
		return "disconnected"
	}
}

// conn is the runtime state of one server. It is owned by the event loop.
type conn struct {
	server *model.ServerConfig
	state  State
	client transport.Client

	lastSeen time.Time
	lastPing time.Time

	// ctx is cancelled on disconnect and stops every goroutine of this conn.
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *Supervisor) current(c *conn) bool {
	return s.conns[c.server.Name] == c
}

// connect starts connecting server unless it already has a connection.
func (s *Supervisor) connect(server *model.ServerConfig) {
	if _, ok := s.conns[server.Name]; ok {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	c := &conn{server: server, state: StateConnecting, ctx: ctx, cancel: cancel}
	s.conns[server.Name] = c
	s.log.Info("connecting", "server", server.Name, "address", server.Address)
	go s.dial(c)
}

// dial waits until the server address resolves, then opens the session.
func (s *Supervisor) dial(c *conn) {
	err := retry.Do(c.ctx, retry.NewConstant(s.timing.RetryDelay), func(ctx context.Context) error {
		if _, err := s.resolver.LookupHost(ctx, c.server.Address); err != nil {
			s.log.Warn("server unreachable, retrying", "server", c.server.Name, "address", c.server.Address, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return
	}

	client, err := s.dialer.Dial(c.ctx, c.server)
	posted := s.post(func() {
		if !s.current(c) {
			if client != nil {
				closeAndDrain(client)
			}
			return
		}
		if err != nil {
			s.log.Error("connect", "server", c.server.Name, "error", err)
			s.restart(c, "connect failed", s.timing.RetryDelay)
			return
		}
		s.goOnline(c, client)
	})
	if !posted && client != nil {
		closeAndDrain(client)
	}
}

// goOnline announces presence, joins every room and starts the timers.
func (s *Supervisor) goOnline(c *conn, client transport.Client) {
	name := c.server.Name
	c.client = client
	c.state = StateOnline
	c.lastSeen = s.now()
	s.log.Info("connected", "server", name)

	go s.read(c)

	if err := client.SetAvailable(); err != nil {
		s.log.Error("set presence", "server", name, "error", err)
	}
	for _, room := range c.server.Rooms {
		if err := client.JoinRoom(c.server.RoomJID(room.Name), c.server.Nickname); err != nil {
			s.log.Error("join room", "server", name, "room", room.Name, "error", err)
			continue
		}
		s.log.Info("join room", "server", name, "room", room.Name)
	}

	go s.every(c, s.timing.Heartbeat, s.heartbeat)
	go s.every(c, s.timing.MotdSweep, s.sweepMotd)
	go s.every(c, s.timing.Poll, func(*conn) { s.poll() })
}

// read forwards session events to the loop until the session ends. Events
// arriving after disconnect are drained and dropped.
func (s *Supervisor) read(c *conn) {
	for ev := range c.client.Events() {
		if c.ctx.Err() != nil {
			continue
		}
		s.post(func() { s.handleEvent(c, ev) })
	}
	s.post(func() {
		if s.current(c) {
			s.log.Warn("session ended", "server", c.server.Name)
			s.restart(c, "session ended", s.timing.RetryDelay)
		}
	})
}

// every runs fn on the loop every d while c is current and online.
func (s *Supervisor) every(c *conn, d time.Duration, fn func(*conn)) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			s.post(func() {
				if s.current(c) && c.state == StateOnline {
					fn(c)
				}
			})
		}
	}
}

// heartbeat restarts a silent connection and pings an idle one.
func (s *Supervisor) heartbeat(c *conn) {
	now := s.now()
	idle := now.Sub(c.lastSeen)
	if idle > s.timing.HeartbeatTimeout {
		s.log.Warn("heartbeat timeout", "server", c.server.Name, "idle", idle.Round(time.Second))
		s.restart(c, "heartbeat timeout", 0)
		return
	}
	if idle > s.timing.KeepaliveAfter && now.Sub(c.lastPing) > s.timing.KeepaliveAfter {
		c.lastPing = now
		if err := c.client.Ping(); err != nil {
			s.log.Error("send keepalive", "server", c.server.Name, "error", err)
		}
	}
}

// sweepMotd delivers and expires queued MOTD receivers.
func (s *Supervisor) sweepMotd(c *conn) {
	name := c.server.Name
	tracker := s.trackers[name]
	store, ok := s.motds[name]
	if !ok {
		return
	}
	tracker.Sweep(s.now(), func(user string) {
		if err := c.client.SendPrivate(c.server.UserJID(user), store.Text()); err != nil {
			s.log.Error("send motd", "server", name, "user", user, "error", err)
			return
		}
		telemetry.MotdDeliveries.WithLabelValues(name).Inc()
		s.log.Info("motd sent", "server", name, "user", user)
	})
	telemetry.PendingMotd.WithLabelValues(name).Set(float64(len(tracker.Pending())))
}

// disconnect tears c down. Calling it for a stale conn is a no-op.
func (s *Supervisor) disconnect(c *conn) {
	if !s.current(c) {
		return
	}
	c.cancel()
	delete(s.conns, c.server.Name)
	c.state = StateDisconnected
	s.trackers[c.server.Name].Reset()
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			s.log.Debug("close session", "server", c.server.Name, "error", err)
		}
	}
	s.log.Info("disconnected", "server", c.server.Name)
}

// restart disconnects c and connects its server again after delay.
func (s *Supervisor) restart(c *conn, reason string, delay time.Duration) {
	if !s.current(c) {
		return
	}
	telemetry.Reconnects.WithLabelValues(c.server.Name, reason).Inc()
	s.log.Info("restart connection", "server", c.server.Name, "reason", reason, "delay", delay)
	s.disconnect(c)

	if delay <= 0 {
		s.connect(c.server)
		return
	}
	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-s.ctx.Done():
		case <-t.C:
			s.post(func() { s.connect(c.server) })
		}
	}()
}

// closeAndDrain closes a session nobody reads from.
func closeAndDrain(client transport.Client) {
	_ = client.Close()
	go func() {
		for range client.Events() {
		}
	}()
}
