package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient abstracts HTTP requests for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SMS sends text messages through a textbelt-compatible gateway.
type SMS struct {
	client   HTTPClient
	endpoint string
}

// NewSMS creates an SMS notifier posting to endpoint.
func NewSMS(client HTTPClient, endpoint string) *SMS {
	return &SMS{client: client, endpoint: endpoint}
}

type smsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Send texts body to the phone number in destination. SMS has no title.
func (s *SMS) Send(ctx context.Context, destination, _, body string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	form := url.Values{"number": {destination}, "message": {body}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post sms: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var r smsResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !r.Success {
		msg := r.Message
		if msg == "" {
			msg = r.Error
		}
		return fmt.Errorf("gateway rejected sms: %s", msg)
	}
	return nil
}
