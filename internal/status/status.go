// Package status watches the game-server status API and reports servers
// coming online or going offline.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"squadbot/internal/model"
)

// Title is the notification title used for status changes.
const Title = "[CU]"

const (
	defaultInterval = time.Minute
	retryDelay      = 2 * time.Second
	maxRetries      = 2
)

// HTTPClient abstracts HTTP requests for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Broadcaster posts a line into every announce room.
type Broadcaster interface {
	Broadcast(text string)
}

// Notifier delivers a notification to a server's routes.
type Notifier interface {
	Send(ctx context.Context, routes []model.NotifyRoute, title, body string)
}

// Config holds the collaborators of a Watcher.
type Config struct {
	Client      HTTPClient
	URL         string
	Servers     []*model.ServerConfig
	Broadcaster Broadcaster
	Notifier    Notifier
}

// Watcher polls the status API for servers with status checks enabled.
type Watcher struct {
	client   HTTPClient
	url      string
	servers  []*model.ServerConfig
	bcast    Broadcaster
	notifier Notifier
	log      *slog.Logger

	interval   time.Duration
	retryDelay time.Duration
	online     map[string]bool
}

// New creates a Watcher. Only servers with StatusCheck set are watched.
func New(cfg Config, log *slog.Logger) *Watcher {
	var watched []*model.ServerConfig
	for _, s := range cfg.Servers {
		if s.StatusCheck {
			watched = append(watched, s)
		}
	}
	return &Watcher{
		client:     cfg.Client,
		url:        cfg.URL,
		servers:    watched,
		bcast:      cfg.Broadcaster,
		notifier:   cfg.Notifier,
		log:        log,
		interval:   defaultInterval,
		retryDelay: retryDelay,
		online:     make(map[string]bool),
	}
}

// Enabled reports whether there is anything to watch.
func (w *Watcher) Enabled() bool {
	return w.url != "" && len(w.servers) > 0
}

// Run checks immediately and then every interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	if !w.Enabled() {
		return
	}
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check queries the status API once and reports transitions. The first
// observation of a server only records its state. A failed query leaves
// every state unchanged.
func (w *Watcher) Check(ctx context.Context) {
	up, err := w.fetchWithRetry(ctx)
	if err != nil {
		w.log.Error("query server status", "url", w.url, "error", err)
		return
	}

	for _, s := range w.servers {
		now := up[strings.ToLower(s.Name)]
		was, seen := w.online[s.Name]
		w.online[s.Name] = now
		if !seen || was == now {
			continue
		}

		text := fmt.Sprintf("Server %s is now %s.", s.Name, stateWord(now))
		w.log.Info("server status changed", "server", s.Name, "online", now)
		w.bcast.Broadcast(text)
		w.notifier.Send(ctx, s.Notify, Title, text)
	}
}

// Online reports the last observed state of server.
func (w *Watcher) Online(server string) (online, known bool) {
	online, known = w.online[server]
	return online, known
}

func stateWord(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

func (w *Watcher) fetchWithRetry(ctx context.Context) (map[string]bool, error) {
	var up map[string]bool
	b := retry.WithMaxRetries(maxRetries, retry.NewConstant(w.retryDelay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		up, err = w.fetch(ctx)
		if err != nil {
			w.log.Debug("status query failed", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	return up, err
}

type serverEntry struct {
	Name string `json:"name"`
}

func (w *Watcher) fetch(ctx context.Context) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var entries []serverEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode servers: %w", err)
	}

	up := make(map[string]bool, len(entries))
	for _, e := range entries {
		up[strings.ToLower(e.Name)] = true
	}
	return up, nil
}
