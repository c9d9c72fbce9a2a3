package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sablebot/sable-backend/internal/httputil"
)

// Sink receives domain events after they are committed. Publish is
// fire-and-forget: failures are logged and must never roll back a
// completed ledger append.
type Sink interface {
	Publish(event string, payload any)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(string, any) {}

// Sender posts events to a Discord/Slack-compatible webhook and mirrors
// them to the console. The HTTP delivery runs on its own goroutine so
// callers holding trade locks are never stalled on webhook retries.
type Sender struct {
	webhookURL string
	botName    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	inflight   sync.WaitGroup
}

func NewSender(webhookURL, botName string) *Sender {
	if botName == "" {
		botName = "SableTrader"
	}
	return &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
	}
}

func (s *Sender) Publish(event string, payload any) {
	msg := s.formatMessage(event, payload)
	fmt.Printf("[%s] [%s] %s\n", time.Now().UTC().Format(time.RFC3339), s.botName, msg)

	if s.webhookURL == "" {
		return
	}

	body, err := json.Marshal(s.formatPayload(msg))
	if err != nil {
		fmt.Printf("[NOTIFY ERROR] marshal: %v\n", err)
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.send(event, body)
	}()
}

// Flush blocks until every dispatched webhook delivery has finished.
// Called on shutdown so in-flight notifications are not dropped.
func (s *Sender) Flush() {
	s.inflight.Wait()
}

func (s *Sender) send(event string, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		fmt.Printf("[NOTIFY ERROR] Failed to send %s after retries: %v\n", event, err)
		return
	}
	resp.Body.Close()
}

func (s *Sender) formatMessage(event string, payload any) string {
	if payload == nil {
		return event
	}
	detail, err := json.Marshal(payload)
	if err != nil {
		return event
	}
	return fmt.Sprintf("%s %s", event, detail)
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.botName,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
