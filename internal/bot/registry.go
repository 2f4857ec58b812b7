package bot

import (
	"context"
	"fmt"
	"strings"
)

// HelpPlaceholder is replaced with the list of command names in help texts.
const HelpPlaceholder = "##HELPCOMMANDS##"

// Command is one chat command.
type Command interface {
	Name() string
	Help() string
	Exec(ctx context.Context, b *Bot, req Request, args string)
}

// Registry is an ordered, immutable set of commands with unique
// case-insensitive names.
type Registry struct {
	commands []Command
	byName   map[string]Command
}

// NewRegistry registers cmds in order. Duplicate names are rejected.
func NewRegistry(cmds ...Command) (*Registry, error) {
	r := &Registry{byName: make(map[string]Command, len(cmds))}
	for _, c := range cmds {
		key := strings.ToLower(c.Name())
		if key == "" {
			return nil, fmt.Errorf("command with empty name")
		}
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("duplicate command %q", c.Name())
		}
		r.byName[key] = c
		r.commands = append(r.commands, c)
	}
	return r, nil
}

// Lookup finds a command by case-insensitive name.
func (r *Registry) Lookup(name string) (Command, bool) {
	c, ok := r.byName[strings.ToLower(name)]
	return c, ok
}

// Commands returns the registered commands in order.
func (r *Registry) Commands() []Command {
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Names returns the registered command names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.commands))
	for i, c := range r.commands {
		names[i] = c.Name()
	}
	return names
}

// Help returns the help text of c with HelpPlaceholder expanded.
func (r *Registry) Help(c Command) string {
	return strings.ReplaceAll(c.Help(), HelpPlaceholder, strings.Join(r.Names(), ", "))
}
