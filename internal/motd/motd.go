// Package motd owns the per-server message of the day and its opt-out list.
package motd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"squadbot/internal/storage"
)

// Prefix is prepended to every stored MOTD text.
const Prefix = "MOTD: "

// Store holds the MOTD text and opt-out list of one server. It is the only
// writer of both, in memory and in storage. A Store is not safe for
// concurrent use; the supervisor calls it from its event loop.
type Store struct {
	server  string
	backend storage.Storage
	log     *slog.Logger

	text    string
	optOuts []string
}

// Load reads the MOTD and opt-out list of server, writing defaults on first run.
func Load(ctx context.Context, server string, backend storage.Storage, log *slog.Logger) (*Store, error) {
	s := &Store{
		server:  server,
		backend: backend,
		log:     log.With("server", server),
	}

	text, err := backend.LoadMotd(ctx, server)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.text = Prefix
		if err := backend.SaveMotd(ctx, server, s.text); err != nil {
			return nil, fmt.Errorf("write default motd: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load motd: %w", err)
	default:
		s.text = text
	}

	users, err := backend.LoadOptOuts(ctx, server)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.optOuts = []string{}
		if err := backend.SaveOptOuts(ctx, server, s.optOuts); err != nil {
			return nil, fmt.Errorf("write default opt-out list: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load opt-out list: %w", err)
	default:
		s.optOuts = dedupe(users)
	}

	return s, nil
}

// Text returns the current MOTD, including its "MOTD: " prefix.
func (s *Store) Text() string {
	return s.text
}

// Set replaces the MOTD with Prefix+text. A persistence failure is logged and
// the in-memory value still changes.
func (s *Store) Set(ctx context.Context, text string) {
	s.text = Prefix + text
	if err := s.backend.SaveMotd(ctx, s.server, s.text); err != nil {
		s.log.Error("save motd", "error", err)
	}
}

// OptedOut reports whether user is on the opt-out list.
func (s *Store) OptedOut(user string) bool {
	return slices.Contains(s.optOuts, user)
}

// OptOuts returns a copy of the opt-out list in insertion order.
func (s *Store) OptOuts() []string {
	return slices.Clone(s.optOuts)
}

// OptOut adds user to the opt-out list. It reports false when the user was
// already on it.
func (s *Store) OptOut(ctx context.Context, user string) bool {
	if s.OptedOut(user) {
		return false
	}
	s.optOuts = append(s.optOuts, user)
	s.persistOptOuts(ctx)
	return true
}

// OptIn removes user from the opt-out list. It reports false when the user
// was not on it.
func (s *Store) OptIn(ctx context.Context, user string) bool {
	i := slices.Index(s.optOuts, user)
	if i < 0 {
		return false
	}
	s.optOuts = slices.Delete(s.optOuts, i, i+1)
	s.persistOptOuts(ctx)
	return true
}

func (s *Store) persistOptOuts(ctx context.Context) {
	if err := s.backend.SaveOptOuts(ctx, s.server, s.optOuts); err != nil {
		s.log.Error("save opt-out list", "error", err)
	}
}

func dedupe(users []string) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		if !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}
