// Package activity turns repository events and commit feeds into chat
// announcements, remembering the newest timestamp seen per category.
package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"squadbot/internal/filter"
	"squadbot/internal/model"
	"squadbot/internal/storage"
)

// Category groups announcements that share a cursor.
type Category string

// Announcement categories.
const (
	CategoryIssue  Category = "issue"
	CategoryPR     Category = "pull_request"
	CategoryCommit Category = "commit"
)

// EventSource returns the latest events of the watched organizations.
type EventSource interface {
	Events(ctx context.Context) ([]model.RepoEvent, error)
}

// CommitSource returns the entries of a commit feed.
type CommitSource interface {
	Commits(ctx context.Context, url string) ([]model.CommitEntry, error)
}

// Announcement is one chat line produced by a poll.
type Announcement struct {
	Category Category
	Text     string
}

// Batch is the raw result of one fetch.
type Batch struct {
	Events  []model.RepoEvent
	Commits []model.CommitEntry
}

// Poller fetches activity and decides what to announce. Fetch may run on any
// goroutine; Start, Done and Process must be called from a single goroutine.
type Poller struct {
	events  EventSource
	commits CommitSource
	feeds   []string
	store   storage.Storage
	filter  *filter.Engine
	log     *slog.Logger

	cursor   model.Cursor
	inFlight bool
}

// Config holds the collaborators of a Poller. Commits may be nil when no
// feeds are configured.
type Config struct {
	Events  EventSource
	Commits CommitSource
	Feeds   []string
	Store   storage.Storage
	Filter  *filter.Engine
}

// New loads the cursor and returns a Poller. A missing cursor is created at
// the sentinel and written back.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Poller, error) {
	p := &Poller{
		events:  cfg.Events,
		commits: cfg.Commits,
		feeds:   cfg.Feeds,
		store:   cfg.Store,
		filter:  cfg.Filter,
		log:     log,
	}

	c, err := cfg.Store.LoadCursor(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c = model.NewCursor()
		if err := cfg.Store.SaveCursor(ctx, c); err != nil {
			return nil, fmt.Errorf("write default cursor: %w", err)
		}
		log.Info("activity cursor created")
	case err != nil:
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	p.cursor = c
	return p, nil
}

// Cursor returns the current cursor.
func (p *Poller) Cursor() model.Cursor {
	return p.cursor
}

// Start marks a poll as running. It reports false when one already is.
func (p *Poller) Start() bool {
	if p.inFlight {
		return false
	}
	p.inFlight = true
	return true
}

// Done marks the running poll as finished.
func (p *Poller) Done() {
	p.inFlight = false
}

// Fetch reads events and commit feeds. Failures are logged and the failing
// source contributes nothing.
func (p *Poller) Fetch(ctx context.Context) Batch {
	var b Batch
	if p.events != nil {
		events, err := p.events.Events(ctx)
		if err != nil {
			p.log.Error("fetch events", "error", err)
		}
		b.Events = events
	}
	if p.commits == nil {
		return b
	}
	for _, url := range p.feeds {
		if ctx.Err() != nil {
			return b
		}
		entries, err := p.commits.Commits(ctx, url)
		if err != nil {
			p.log.Error("fetch commit feed", "url", url, "error", err)
			continue
		}
		b.Commits = append(b.Commits, entries...)
	}
	return b
}

// Process compares b against the cursor, advances and persists the cursor
// when anything newer was seen, and returns the announcements to broadcast.
// A category whose cursor was still at the sentinel when the poll started
// advances silently.
func (p *Poller) Process(ctx context.Context, b Batch) []Announcement {
	start := p.cursor
	next := p.cursor
	changed := false

	var out []Announcement
	consider := func(cat Category, ts time.Time, title, text string) {
		// Cursors are stored with millisecond precision.
		ts = ts.UTC().Truncate(time.Millisecond)
		seen := *field(&start, cat)
		if !ts.After(seen) {
			return
		}
		if cur := field(&next, cat); ts.After(*cur) {
			*cur = ts
		}
		changed = true
		if seen.Equal(model.CursorSentinel) {
			return
		}
		if !p.filter.Match(filter.Item{Title: title, Body: text}) {
			p.log.Debug("announcement filtered", "category", cat, "title", title)
			return
		}
		out = append(out, Announcement{Category: cat, Text: text})
	}

	for _, ev := range b.Events {
		if ev.Subject == nil {
			continue
		}
		cat := classify(ev)
		consider(cat, ev.Subject.UpdatedAt, ev.Subject.Title, FormatEvent(cat, ev))
	}
	for _, c := range b.Commits {
		consider(CategoryCommit, c.UpdatedAt, c.Title, FormatCommit(c))
	}

	if changed {
		p.cursor = next
		if err := p.store.SaveCursor(ctx, next); err != nil {
			p.log.Error("save cursor", "error", err)
		}
	}
	return out
}

func classify(ev model.RepoEvent) Category {
	switch {
	case ev.Type == model.EventPullRequest:
		return CategoryPR
	case ev.Type == model.EventIssueComment && ev.Subject.PullRequest:
		return CategoryPR
	default:
		return CategoryIssue
	}
}

func field(c *model.Cursor, cat Category) *time.Time {
	switch cat {
	case CategoryPR:
		return &c.LastPR
	case CategoryCommit:
		return &c.LastCommit
	default:
		return &c.LastIssue
	}
}

// FormatEvent renders the chat line for an issue or pull request event.
func FormatEvent(cat Category, ev model.RepoEvent) string {
	noun := "issue"
	if cat == CategoryPR {
		noun = "pull request"
	}
	if ev.Subject.CreatedAt.Equal(ev.Subject.UpdatedAt) {
		return fmt.Sprintf("A new %s for '%s' has been opened by %s:\n%s", noun, ev.Repo, ev.Actor, ev.Subject.URL)
	}
	return fmt.Sprintf("An existing %s for '%s' has been updated by %s:\n%s", noun, ev.Repo, ev.Actor, ev.Subject.URL)
}

// FormatCommit renders the chat line for a commit feed entry.
func FormatCommit(c model.CommitEntry) string {
	return fmt.Sprintf("New commit to '%s' by %s:\n%s", c.Feed, c.Author, c.Link)
}
