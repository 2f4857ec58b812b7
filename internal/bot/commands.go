package bot

import (
	"context"
	"fmt"
	"strings"
)

const (
	botInfoText = "The bot is written in Go. Source code for the bot can be found here: https://github.com/CUModSquad/SquadBot" +
		"\n\nMuch thanks to the CU Mod Squad for their help."
	tipsText = "Quick Tips: Welcome to the Mod Squad. Tips coming soon(tm)!"
)

// DefaultCommands returns the built-in commands in registration order.
func DefaultCommands(prefix string) []Command {
	return []Command{
		helpCmd{prefix: prefix},
		botInfoCmd{prefix: prefix},
		tipsCmd{prefix: prefix},
		motdCmd{prefix: prefix},
		motdOffCmd{prefix: prefix},
		motdOnCmd{prefix: prefix},
		contribsCmd{prefix: prefix},
		prsCmd{prefix: prefix},
		issuesCmd{prefix: prefix},
	}
}

type helpCmd struct{ prefix string }

func (helpCmd) Name() string { return "help" }

func (c helpCmd) Help() string {
	return "The command " + c.prefix + "help displays help for using the various available bot commands.\n" +
		"\nUsage: " + c.prefix + "help [command]\n" +
		"\nAvailable commands: " + HelpPlaceholder
}

func (c helpCmd) Exec(_ context.Context, b *Bot, req Request, args string) {
	if args == "" {
		b.Reply(req, b.registry.Help(c))
		return
	}
	name := strings.Fields(args)[0]
	target, ok := b.registry.Lookup(name)
	if !ok {
		b.Reply(req, fmt.Sprintf("Unknown command '%s'. Use %shelp for a list of commands.", name, c.prefix))
		return
	}
	b.Reply(req, b.registry.Help(target))
}

type botInfoCmd struct{ prefix string }

func (botInfoCmd) Name() string { return "botinfo" }

func (c botInfoCmd) Help() string {
	return "The command " + c.prefix + "botinfo displays information about this chatbot.\n" +
		"\nUsage: " + c.prefix + "botinfo"
}

func (botInfoCmd) Exec(_ context.Context, b *Bot, req Request, _ string) {
	b.Reply(req, botInfoText)
}

type tipsCmd struct{ prefix string }

func (tipsCmd) Name() string { return "tips" }

func (c tipsCmd) Help() string {
	return "The command " + c.prefix + "tips displays tips for new Mod Squad members.\n" +
		"\nUsage: " + c.prefix + "tips [user]\n" +
		"\nIf [user] is specified, tips will be sent to that user. If 'chat' is specified as the user, tips will be sent to chat."
}

func (tipsCmd) Exec(_ context.Context, b *Bot, req Request, args string) {
	if args == "" {
		b.Reply(req, "Tips sent to "+req.User+".")
		b.sender.SendPrivate(req.Server, req.From, tipsText)
		return
	}

	target := strings.ToLower(strings.Fields(args)[0])
	switch {
	case target == "chat":
		b.Reply(req, tipsText)
	case req.Private():
		// Requests by private message never reach a third party.
		b.Reply(req, "Tips sent to "+req.User+".")
		b.Reply(req, tipsText)
	default:
		b.Reply(req, "Tips sent to "+target+".")
		b.sender.SendPrivate(req.Server, req.Server.UserJID(target), tipsText)
	}
}

type motdCmd struct{ prefix string }

func (motdCmd) Name() string { return "motd" }

func (c motdCmd) Help() string {
	return "The command " + c.prefix + "motd allows setting and viewing the MOTD for the Mod Squad.\n" +
		"\nUsage: " + c.prefix + "motd [new MOTD]"
}

func (motdCmd) Exec(ctx context.Context, b *Bot, req Request, args string) {
	store, ok := b.motd(req.Server.Name)
	if !ok {
		return
	}
	if args == "" {
		b.Reply(req, store.Text())
		b.log.Info("motd sent", "server", req.Server.Name, "room", req.Room, "user", req.User)
		return
	}
	if !req.Privileged {
		b.log.Info("motd change denied", "server", req.Server.Name, "user", req.User)
		b.Reply(req, "You do not have permission to set an MOTD.")
		return
	}
	store.Set(ctx, args)
	b.log.Info("motd set", "server", req.Server.Name, "user", req.User)
	b.Reply(req, fmt.Sprintf("MOTD for %s set to: %s", req.Server.Name, args))
}

type motdOffCmd struct{ prefix string }

func (motdOffCmd) Name() string { return "motdoff" }

func (c motdOffCmd) Help() string {
	return "The command " + c.prefix + "motdoff allows users to stop receiving a Message of the Day for a particular server.\n" +
		"\nUsage: " + c.prefix + "motdoff"
}

func (motdOffCmd) Exec(ctx context.Context, b *Bot, req Request, _ string) {
	store, ok := b.motd(req.Server.Name)
	if !ok {
		return
	}
	if !store.OptOut(ctx, req.User) {
		b.Reply(req, fmt.Sprintf("User '%s' already unsubscribed from %s MOTD notices.", req.User, req.Server.Name))
		return
	}
	b.log.Info("motd opt-out", "server", req.Server.Name, "user", req.User)
	b.Reply(req, fmt.Sprintf("User '%s' unsubscribed from %s MOTD notices.", req.User, req.Server.Name))
}

type motdOnCmd struct{ prefix string }

func (motdOnCmd) Name() string { return "motdon" }

func (c motdOnCmd) Help() string {
	return "The command " + c.prefix + "motdon allows users to start receiving a Message of the Day for a particular server.\n" +
		"\nUsage: " + c.prefix + "motdon"
}

func (motdOnCmd) Exec(ctx context.Context, b *Bot, req Request, _ string) {
	store, ok := b.motd(req.Server.Name)
	if !ok {
		return
	}
	if !store.OptIn(ctx, req.User) {
		b.Reply(req, fmt.Sprintf("User '%s' already subscribed to %s MOTD notices.", req.User, req.Server.Name))
		return
	}
	b.log.Info("motd opt-in", "server", req.Server.Name, "user", req.User)
	b.Reply(req, fmt.Sprintf("User '%s' subscribed to %s MOTD notices.", req.User, req.Server.Name))
}

type contribsCmd struct{ prefix string }

func (contribsCmd) Name() string { return "contribs" }

func (c contribsCmd) Help() string {
	return "The command " + c.prefix + "contribs displays all contributors to monitored groups on GitHub.\n" +
		"\nUsage: " + c.prefix + "contribs"
}

func (contribsCmd) Exec(ctx context.Context, b *Bot, req Request, _ string) {
	b.async(ctx, req, "list contributors", func(ctx context.Context) (string, error) {
		contribs, err := b.forge.Contributors(ctx)
		if err != nil {
			return "", err
		}
		return FormatContributors(contribs), nil
	})
}

type prsCmd struct{ prefix string }

func (prsCmd) Name() string { return "prs" }

func (c prsCmd) Help() string {
	return "The command " + c.prefix + "prs displays current pull requests for all monitored groups on GitHub.\n" +
		"\nUsage: " + c.prefix + "prs"
}

func (prsCmd) Exec(ctx context.Context, b *Bot, req Request, _ string) {
	b.async(ctx, req, "list pull requests", func(ctx context.Context) (string, error) {
		prs, err := b.forge.PullRequests(ctx)
		if err != nil {
			return "", err
		}
		return FormatItems("pull requests", prs), nil
	})
}

type issuesCmd struct{ prefix string }

func (issuesCmd) Name() string { return "issues" }

func (c issuesCmd) Help() string {
	return "The command " + c.prefix + "issues displays current issues for all monitored groups on GitHub.\n" +
		"\nUsage: " + c.prefix + "issues"
}

func (issuesCmd) Exec(ctx context.Context, b *Bot, req Request, _ string) {
	b.async(ctx, req, "list issues", func(ctx context.Context) (string, error) {
		issues, err := b.forge.OpenIssues(ctx)
		if err != nil {
			return "", err
		}
		return FormatItems("issues", issues), nil
	})
}
