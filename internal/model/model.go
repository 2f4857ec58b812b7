// Package model defines the domain types used across the application.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PrivateRoom is the room value used for commands received as private messages.
const PrivateRoom = "pm"

// ServerConfig describes one monitored chat server.
type ServerConfig struct {
	Name                 string        `yaml:"name"`
	Address              string        `yaml:"address"`
	Service              string        `yaml:"service"`
	Username             string        `yaml:"username"`
	Password             string        `yaml:"password"`
	Nickname             string        `yaml:"nickname"`
	AllowPrivateCommands bool          `yaml:"allowPrivateCommands"`
	Admins               []string      `yaml:"admins"`
	Rooms                []RoomConfig  `yaml:"rooms"`
	Notify               []NotifyRoute `yaml:"notify"`
	StatusCheck          bool          `yaml:"statusCheck"`
}

// RoomConfig describes one chat room on a server.
type RoomConfig struct {
	Name     string `yaml:"name"`
	Monitor  bool   `yaml:"monitor"`
	Announce bool   `yaml:"announce"`
	Motd     bool   `yaml:"motd"`
}

// NotifyRoute is one push/SMS/notification destination.
type NotifyRoute struct {
	Channel     string `yaml:"channel"`
	Destination string `yaml:"destination"`
}

// RoomJID returns the bare address of a room, e.g. "lobby@chat.example.com".
func (s *ServerConfig) RoomJID(room string) string {
	if s.Service == "" {
		return room + "@" + s.Address
	}
	return room + "@" + s.Service + "." + s.Address
}

// UserJID returns the bare address of a user on this server.
func (s *ServerConfig) UserJID(user string) string {
	if strings.Contains(user, "@") {
		return user
	}
	return user + "@" + s.Address
}

// Room returns the configured room with the given name.
func (s *ServerConfig) Room(name string) (RoomConfig, bool) {
	for _, r := range s.Rooms {
		if r.Name == name {
			return r, true
		}
	}
	return RoomConfig{}, false
}

// IsAdmin reports whether user is on the server's administrator list.
func (s *ServerConfig) IsAdmin(user string) bool {
	for _, a := range s.Admins {
		if a == user {
			return true
		}
	}
	return false
}

// PendingReceiver is a user waiting for (or recently sent) the MOTD.
type PendingReceiver struct {
	User     string
	JoinedAt time.Time
	SentAt   time.Time
}

// Delivered reports whether the MOTD was already sent to the receiver.
func (p PendingReceiver) Delivered() bool {
	return !p.SentAt.IsZero()
}

// CursorSentinel is the cursor value of a bot that has never polled.
var CursorSentinel = time.Date(2007, time.October, 1, 0, 0, 0, 0, time.UTC)

// cursorLayout matches the ISO-8601 form with milliseconds and a Z suffix.
const cursorLayout = "2006-01-02T15:04:05.000Z"

// Cursor is the last processed activity timestamp per category.
type Cursor struct {
	LastIssue  time.Time
	LastPR     time.Time
	LastCommit time.Time
}

// NewCursor returns a cursor with every category at the sentinel.
func NewCursor() Cursor {
	return Cursor{
		LastIssue:  CursorSentinel,
		LastPR:     CursorSentinel,
		LastCommit: CursorSentinel,
	}
}

type cursorJSON struct {
	LastIssue  string `json:"lastIssue"`
	LastPR     string `json:"lastPR"`
	LastCommit string `json:"lastCommit,omitempty"`
}

// FormatCursorTime renders t the way cursor files store it.
func FormatCursorTime(t time.Time) string {
	return t.UTC().Format(cursorLayout)
}

// ParseCursorTime parses an ISO-8601 cursor timestamp. Empty means sentinel.
func ParseCursorTime(s string) (time.Time, error) {
	if s == "" {
		return CursorSentinel, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cursor time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// MarshalJSON implements json.Marshaler.
func (c Cursor) MarshalJSON() ([]byte, error) {
	return json.Marshal(cursorJSON{
		LastIssue:  FormatCursorTime(c.LastIssue),
		LastPR:     FormatCursorTime(c.LastPR),
		LastCommit: FormatCursorTime(c.LastCommit),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Cursor) UnmarshalJSON(data []byte) error {
	var raw cursorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var err error
	if c.LastIssue, err = ParseCursorTime(raw.LastIssue); err != nil {
		return err
	}
	if c.LastPR, err = ParseCursorTime(raw.LastPR); err != nil {
		return err
	}
	if c.LastCommit, err = ParseCursorTime(raw.LastCommit); err != nil {
		return err
	}
	return nil
}

// EventType is the code-hosting event feed type.
type EventType string

// Event types consumed by the activity poller.
const (
	EventIssues       EventType = "IssuesEvent"
	EventPullRequest  EventType = "PullRequestEvent"
	EventIssueComment EventType = "IssueCommentEvent"
)

// RepoEvent is one entry of an organization's event feed.
type RepoEvent struct {
	Type    EventType
	Repo    string
	Actor   string
	Subject *Subject
}

// Subject is the issue or pull request an event refers to.
type Subject struct {
	URL         string
	Title       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PullRequest bool
}

// Contributor is a repository contributor.
type Contributor struct {
	Login string
}

// Item is an open issue or pull request.
type Item struct {
	Title string
	URL   string
}

// CommitEntry is one entry of a commit feed.
type CommitEntry struct {
	Feed      string
	Title     string
	Author    string
	Link      string
	UpdatedAt time.Time
}

// FilterKind defines the type of filter rule.
type FilterKind string

// Supported filter kinds.
const (
	FilterInclude   FilterKind = "include"
	FilterExclude   FilterKind = "exclude"
	FilterIncludeRe FilterKind = "include_re"
	FilterExcludeRe FilterKind = "exclude_re"
)

// FilterScope defines which part of an announcement a filter matches against.
type FilterScope string

// Supported filter scopes.
const (
	ScopeTitle   FilterScope = "title"
	ScopeContent FilterScope = "content"
	ScopeAll     FilterScope = "all"
)

// Filter is a single announcement filtering rule.
type Filter struct {
	Kind  FilterKind  `yaml:"kind"`
	Scope FilterScope `yaml:"scope"`
	Value string      `yaml:"value"`
}
