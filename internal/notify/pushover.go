package notify

import (
	"context"
	"fmt"

	"github.com/gregdel/pushover"
)

type pushoverAPI interface {
	SendMessage(message *pushover.Message, recipient *pushover.Recipient) (*pushover.Response, error)
}

// Pushover sends notifications to Pushover user keys.
type Pushover struct {
	api pushoverAPI
}

// NewPushover creates a Pushover notifier for an application token.
func NewPushover(appToken string) *Pushover {
	return &Pushover{api: pushover.New(appToken)}
}

// Send pushes body with title to the user key in destination.
func (p *Pushover) Send(_ context.Context, destination, title, body string) error {
	msg := pushover.NewMessageWithTitle(body, title)
	if _, err := p.api.SendMessage(msg, pushover.NewRecipient(destination)); err != nil {
		return fmt.Errorf("send pushover message: %w", err)
	}
	return nil
}
