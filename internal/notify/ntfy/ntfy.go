// Package ntfy publishes operator alerts to a ntfy server.
package ntfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antichaos/antichaos/internal/config"
	"github.com/charmbracelet/log"
)

// Client represents a ntfy notification client.
type Client struct {
	serverURL  string
	topic      string
	username   string
	password   string
	token      string
	httpClient *http.Client
}

// Message represents a ntfy message.
type Message struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// NewClient creates a new ntfy client.
func NewClient(cfg *config.NtfyConfig) *Client {
	return &Client{
		serverURL: cfg.ServerURL,
		topic:     cfg.Topic,
		username:  cfg.Username,
		password:  cfg.Password,
		token:     cfg.Token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendMessage publishes a message to the configured topic.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	if c.topic != "" {
		msg.Topic = c.topic
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Markdown", "yes")

	// token takes precedence over basic auth
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		if len(snippet) > 0 {
			return fmt.Errorf("ntfy server returned status %d: %s", resp.StatusCode, snippet)
		}
		return fmt.Errorf("ntfy server returned status %d", resp.StatusCode)
	}

	log.Debug("Sent ntfy notification", "topic", msg.Topic, "title", msg.Title)
	return nil
}

// SendReminderFailures reports a reminder tick in which some deliveries failed.
func (c *Client) SendReminderFailures(ctx context.Context, failed, total int, errs []string) error {
	if failed == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Failed:** %d of %d reminders\n", failed, total)
	if len(errs) > 0 {
		b.WriteString("\n**Errors:**\n")
		for _, e := range errs {
			fmt.Fprintf(&b, "  • %s\n", e)
		}
	}

	return c.SendMessage(ctx, Message{
		Title:    "Reminder delivery failed",
		Message:  b.String(),
		Priority: 4,
		Tags:     []string{"warning", "antichaos", "reminder"},
	})
}
