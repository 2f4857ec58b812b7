package status

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"squadbot/internal/model"
)

type mockBroadcaster struct {
	lines []string
}

func (m *mockBroadcaster) Broadcast(text string) {
	m.lines = append(m.lines, text)
}

type notification struct {
	Routes []model.NotifyRoute
	Title  string
	Body   string
}

type mockNotifier struct {
	sent []notification
}

func (m *mockNotifier) Send(_ context.Context, routes []model.NotifyRoute, title, body string) {
	m.sent = append(m.sent, notification{routes, title, body})
}

// statusAPI serves queued responses in order, repeating the last one.
type statusAPI struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (a *statusAPI) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.calls
	if i >= len(a.responses) {
		i = len(a.responses) - 1
	}
	a.calls++
	if a.responses[i] == "" {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	_, _ = w.Write([]byte(a.responses[i]))
}

var hatcheryRoutes = []model.NotifyRoute{{Channel: "pushover", Destination: "ukey"}}

func newTestWatcher(t *testing.T, api *statusAPI) (*Watcher, *mockBroadcaster, *mockNotifier) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	bc := &mockBroadcaster{}
	n := &mockNotifier{}
	w := New(Config{
		Client: srv.Client(),
		URL:    srv.URL,
		Servers: []*model.ServerConfig{
			{Name: "Hatchery", StatusCheck: true, Notify: hatcheryRoutes},
			{Name: "Wyrmling", StatusCheck: false},
		},
		Broadcaster: bc,
		Notifier:    n,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.retryDelay = time.Millisecond
	return w, bc, n
}

func TestCheckTransitions(t *testing.T) {
	api := &statusAPI{responses: []string{
		`[{"name":"hatchery"},{"name":"Wyrmling"}]`,
		`[{"name":"Hatchery"}]`,
		`[]`,
		`[]`,
		`[{"name":"HATCHERY"}]`,
	}}
	w, bc, n := newTestWatcher(t, api)
	ctx := context.Background()

	for range 5 {
		w.Check(ctx)
	}

	wantLines := []string{
		"Server Hatchery is now offline.",
		"Server Hatchery is now online.",
	}
	if diff := cmp.Diff(wantLines, bc.lines); diff != "" {
		t.Errorf("broadcasts (-want +got):\n%s", diff)
	}
	wantSent := []notification{
		{hatcheryRoutes, "[CU]", "Server Hatchery is now offline."},
		{hatcheryRoutes, "[CU]", "Server Hatchery is now online."},
	}
	if diff := cmp.Diff(wantSent, n.sent); diff != "" {
		t.Errorf("notifications (-want +got):\n%s", diff)
	}
	if _, known := w.Online("Wyrmling"); known {
		t.Error("unwatched server has a recorded state")
	}
}

func TestCheckRetries(t *testing.T) {
	api := &statusAPI{responses: []string{`[{"name":"Hatchery"}]`, "", "", `[]`}}
	w, bc, _ := newTestWatcher(t, api)
	ctx := context.Background()

	w.Check(ctx)
	w.Check(ctx)

	if api.calls != 4 {
		t.Errorf("calls = %d, want 4", api.calls)
	}
	if diff := cmp.Diff([]string{"Server Hatchery is now offline."}, bc.lines); diff != "" {
		t.Errorf("broadcasts (-want +got):\n%s", diff)
	}
}

func TestCheckGivesUpKeepsState(t *testing.T) {
	api := &statusAPI{responses: []string{`[{"name":"Hatchery"}]`, ""}}
	w, bc, _ := newTestWatcher(t, api)
	ctx := context.Background()

	w.Check(ctx)
	w.Check(ctx)

	if api.calls != 1+1+maxRetries {
		t.Errorf("calls = %d, want %d", api.calls, 2+maxRetries)
	}
	if len(bc.lines) != 0 {
		t.Errorf("unexpected broadcasts: %v", bc.lines)
	}
	if online, known := w.Online("Hatchery"); !known || !online {
		t.Errorf("Online = %v, %v; want true, true", online, known)
	}
}

func TestEnabled(t *testing.T) {
	w := New(Config{URL: "http://status", Servers: []*model.ServerConfig{{Name: "Wyrmling"}}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if w.Enabled() {
		t.Error("watcher enabled without status-checked servers")
	}
}
