// Package bot implements the chat command registry and its commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"squadbot/internal/model"
	"squadbot/internal/motd"
	"squadbot/internal/telemetry"
)

// Sender delivers outbound chat messages.
type Sender interface {
	SendChat(server *model.ServerConfig, roomJID, text string)
	SendPrivate(server *model.ServerConfig, jid, text string)
}

// Forge is the code-hosting collaborator used by contribs, prs and issues.
type Forge interface {
	Contributors(ctx context.Context) ([]model.Contributor, error)
	OpenIssues(ctx context.Context) ([]model.Item, error)
	PullRequests(ctx context.Context) ([]model.Item, error)
}

// Runner runs blocking work away from the caller's goroutine. The function
// returned by work, when non-nil, is then run back on the caller's loop.
type Runner interface {
	Go(ctx context.Context, work func(ctx context.Context) func())
}

// Request is one command invocation.
type Request struct {
	Server *model.ServerConfig
	// Room is the room address the command was sent in, or model.PrivateRoom.
	Room string
	// User is the sender's name: occupant nickname or address local part.
	User string
	// From is the sender's private address.
	From       string
	Text       string
	Privileged bool
}

// Private reports whether the request arrived as a private message.
func (r Request) Private() bool {
	return r.Room == model.PrivateRoom
}

// Config holds the collaborators of a Bot.
type Config struct {
	Prefix string
	Sender Sender
	Forge  Forge
	Runner Runner
	Motds  map[string]*motd.Store
}

// Bot dispatches chat messages to registered commands.
type Bot struct {
	registry *Registry
	prefix   string
	sender   Sender
	forge    Forge
	runner   Runner
	motds    map[string]*motd.Store
	log      *slog.Logger
}

// New creates a Bot with the default command set.
func New(cfg Config, log *slog.Logger) (*Bot, error) {
	reg, err := NewRegistry(DefaultCommands(cfg.Prefix)...)
	if err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}
	return &Bot{
		registry: reg,
		prefix:   cfg.Prefix,
		sender:   cfg.Sender,
		forge:    cfg.Forge,
		runner:   cfg.Runner,
		motds:    cfg.Motds,
		log:      log,
	}, nil
}

// Handle runs the command named by the first word of req.Text. It reports
// whether a command matched. Unknown commands are ignored.
func (b *Bot) Handle(ctx context.Context, req Request) bool {
	name, args, ok := ParseCommand(b.prefix, req.Text)
	if !ok {
		return false
	}
	cmd, ok := b.registry.Lookup(name)
	if !ok {
		return false
	}

	b.log.Debug("command", "cmd", cmd.Name(), "args", args, "server", req.Server.Name, "room", req.Room, "user", req.User)
	telemetry.Commands.WithLabelValues(cmd.Name()).Inc()
	cmd.Exec(ctx, b, req, args)
	return true
}

// Reply answers req in the channel it came from.
func (b *Bot) Reply(req Request, text string) {
	if req.Private() {
		b.sender.SendPrivate(req.Server, req.From, text)
		return
	}
	b.sender.SendChat(req.Server, req.Room, text)
}

func (b *Bot) motd(server string) (*motd.Store, bool) {
	s, ok := b.motds[server]
	if !ok {
		b.log.Error("no motd store", "server", server)
	}
	return s, ok
}

// async runs fetch through the runner and replies with its result.
func (b *Bot) async(ctx context.Context, req Request, op string, fetch func(ctx context.Context) (string, error)) {
	b.runner.Go(ctx, func(ctx context.Context) func() {
		text, err := fetch(ctx)
		if err != nil {
			b.log.Error(op, "server", req.Server.Name, "error", err)
			return nil
		}
		return func() { b.Reply(req, text) }
	})
}
