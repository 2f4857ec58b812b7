// Package notify delivers out-of-chat notifications over push, SMS and
// messaging channels.
package notify

import (
	"context"
	"log/slog"
	"sort"

	"squadbot/internal/model"
)

// Channel names used in notify routes.
const (
	ChannelPushover = "pushover"
	ChannelSNS      = "sns"
	ChannelSMS      = "sms"
	ChannelTelegram = "telegram"
)

// Notifier sends one notification to a channel-specific destination.
type Notifier interface {
	Send(ctx context.Context, destination, title, body string) error
}

// Dispatcher routes notifications to registered channels.
type Dispatcher struct {
	channels map[string]Notifier
	log      *slog.Logger
}

// NewDispatcher creates a Dispatcher with no channels.
func NewDispatcher(log *slog.Logger) *Dispatcher {
	return &Dispatcher{channels: make(map[string]Notifier), log: log}
}

// Register adds or replaces the notifier for channel.
func (d *Dispatcher) Register(channel string, n Notifier) {
	d.channels[channel] = n
}

// Channels returns the registered channel names, sorted.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Send delivers title and body to every route. Failures and routes to
// unregistered channels are logged and skipped.
func (d *Dispatcher) Send(ctx context.Context, routes []model.NotifyRoute, title, body string) {
	for _, r := range routes {
		n, ok := d.channels[r.Channel]
		if !ok {
			d.log.Warn("notify channel not configured", "channel", r.Channel, "destination", r.Destination)
			continue
		}
		if err := n.Send(ctx, r.Destination, title, body); err != nil {
			d.log.Error("send notification", "channel", r.Channel, "destination", r.Destination, "error", err)
			continue
		}
		d.log.Debug("notification sent", "channel", r.Channel, "destination", r.Destination)
	}
}
