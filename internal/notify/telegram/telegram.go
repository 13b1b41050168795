// Package telegram delivers bot messages and answers bot commands.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/antichaos/antichaos/internal/config"
	"github.com/charmbracelet/log"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	ParseModeHTML = models.ParseModeHTML

	pollTimeout = 25 * time.Second
)

// User is a Telegram account as reported by the Bot API and by web app init data.
type User = models.User

// OutgoingMessage is a text message to a single chat.
type OutgoingMessage struct {
	ChatID      int64
	Text        string
	ParseMode   models.ParseMode
	ReplyMarkup *models.InlineKeyboardMarkup
}

// WebAppButton returns a keyboard with a single button opening url in the mini app.
func WebAppButton(text, url string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: text, WebApp: &models.WebAppInfo{URL: url}}},
		},
	}
}

// Client sends messages through the Bot API.
type Client struct {
	bot   *bot.Bot
	token string
}

// NewClient creates a new Bot API client. No request is made until the first call.
func NewClient(cfg *config.TelegramConfig) (*Client, error) {
	c := &Client{token: cfg.BotToken}

	opts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(pollTimeout, &http.Client{Timeout: pollTimeout + 35*time.Second}),
		bot.WithErrorsHandler(func(err error) {
			log.WithPrefix("telegram").Error("Bot API error", "error", c.redact(err))
		}),
	}
	if cfg.APIURL != "" {
		opts = append(opts, bot.WithServerURL(cfg.APIURL))
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", c.redact(err))
	}
	c.bot = b
	return c, nil
}

// SendMessage sends a text message.
func (c *Client) SendMessage(ctx context.Context, msg OutgoingMessage) error {
	params := &bot.SendMessageParams{
		ChatID:    msg.ChatID,
		Text:      msg.Text,
		ParseMode: msg.ParseMode,
	}
	if msg.ReplyMarkup != nil {
		params.ReplyMarkup = msg.ReplyMarkup
	}

	if _, err := c.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send message: %w", c.redact(err))
	}
	log.Debug("Sent telegram message", "chat", msg.ChatID)
	return nil
}

// redactedError hides the bot token, which request errors carry in the url.
type redactedError struct {
	err   error
	token string
}

func (e *redactedError) Error() string {
	return strings.ReplaceAll(e.err.Error(), e.token, "<token>")
}

func (e *redactedError) Unwrap() error {
	return e.err
}

func (c *Client) redact(err error) error {
	if err == nil || c.token == "" || !strings.Contains(err.Error(), c.token) {
		return err
	}
	var redacted *redactedError
	if errors.As(err, &redacted) {
		return err
	}
	return &redactedError{err: err, token: c.token}
}
