package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/antichaos/antichaos/internal/config"
	"github.com/charmbracelet/log"
	mail "github.com/xhit/go-simple-mail/v2"
)

// Client sends operator alerts by email.
type Client struct {
	config *config.EmailConfig
	send   func(msg *mail.Email) error
}

// New creates a new email alert client.
func New(cfg *config.EmailConfig) *Client {
	c := &Client{config: cfg}
	c.send = c.deliver
	return c
}

// SendReminderFailures reports a reminder tick in which some deliveries failed.
func (c *Client) SendReminderFailures(ctx context.Context, failed, total int, errs []string) error {
	if !c.config.Enabled {
		log.Debug("Email alerts are disabled, skipping alert")
		return nil
	}
	if failed == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("[AntiChaos] %d of %d reminders failed", failed, total)

	var body strings.Builder
	fmt.Fprintf(&body, "The reminder job could not deliver %d of %d reminders.\n", failed, total)
	if len(errs) > 0 {
		body.WriteString("\nErrors:\n")
		for _, e := range errs {
			fmt.Fprintf(&body, "  - %s\n", e)
		}
	}

	msg := mail.NewMSG()
	fromName := c.config.FromName
	if fromName == "" {
		fromName = "AntiChaos"
	}
	msg.SetFrom(fmt.Sprintf("%s <%s>", fromName, c.config.FromEmail))
	msg.AddTo(c.config.To...)
	msg.SetSubject(subject)
	msg.SetBody(mail.TextPlain, body.String())
	if msg.Error != nil {
		return fmt.Errorf("failed to build email: %w", msg.Error)
	}

	if err := c.send(msg); err != nil {
		return err
	}
	log.Info("Email alert sent", "to", c.config.To, "subject", subject)
	return nil
}

func (c *Client) deliver(msg *mail.Email) error {
	server := mail.NewSMTPClient()
	server.Host = c.config.SMTPHost
	server.Port = c.config.SMTPPort
	server.Username = c.config.Username
	server.Password = c.config.Password

	switch {
	case c.config.UseSSL:
		server.Encryption = mail.EncryptionSSLTLS
	case c.config.UseTLS:
		server.Encryption = mail.EncryptionSTARTTLS
	default:
		server.Encryption = mail.EncryptionNone
	}

	if c.config.InsecureSkipVerify {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	smtpClient, err := server.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := smtpClient.Close(); closeErr != nil {
			log.Warn("Failed to close SMTP client", "error", closeErr)
		}
	}()

	if err := msg.Send(smtpClient); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
