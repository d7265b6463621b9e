package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WebhookSender posts messages to an HTTP provider bridge (SMS gateway, WhatsApp Business relay).
type WebhookSender struct {
	name  string
	url   string
	token string
	http  *http.Client
}

func NewWebhookSender(name, url, token string) *WebhookSender {
	return &WebhookSender{
		name:  name,
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	if s.url == "" {
		return fmt.Errorf("%s webhook url not configured", s.name)
	}
	raw, err := json.Marshal(map[string]string{
		"channel": string(msg.Channel),
		"to":      msg.Recipient,
		"body":    msg.Body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return Transient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Transient(fmt.Errorf("%s webhook returned %d", s.name, resp.StatusCode))
	default:
		return errors.New(s.name + " webhook rejected message: " + resp.Status)
	}
}
