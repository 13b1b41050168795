package telegram

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// CommandHandler answers the bot commands users send in a private chat.
type CommandHandler struct {
	client      *Client
	frontendURL string
}

// NewCommandHandler creates a handler that points users to the mini app at
// frontendURL and registers it with the client's update loop.
func NewCommandHandler(client *Client, frontendURL string) *CommandHandler {
	h := &CommandHandler{
		client:      client,
		frontendURL: frontendURL,
	}
	if client != nil {
		client.bot.RegisterHandlerMatchFunc(isStartCommand, h.handle)
	}
	return h
}

// Run long polls for updates until ctx is cancelled.
func (h *CommandHandler) Run(ctx context.Context) {
	logger := log.WithPrefix("telegram")
	logger.Info("Polling for bot commands")
	h.client.bot.Start(ctx)
	logger.Info("Stopped polling for bot commands")
}

func (h *CommandHandler) handle(ctx context.Context, _ *bot.Bot, u *models.Update) {
	if err := h.Handle(ctx, u); err != nil {
		log.WithPrefix("telegram").Error("Failed to handle update", "update", u.ID, "error", err)
	}
}

// Handle answers a single update. Anything but /start is ignored.
func (h *CommandHandler) Handle(ctx context.Context, u *models.Update) error {
	if !isStartCommand(u) {
		return nil
	}

	return h.client.SendMessage(ctx, OutgoingMessage{
		ChatID: u.Message.Chat.ID,
		Text: "Hi! I am AntiChaos, a bot that brings clarity with one question a day.\n\n" +
			"Tap the button below to begin:",
		ReplyMarkup: WebAppButton("Open AntiChaos", h.frontendURL),
	})
}

func isStartCommand(u *models.Update) bool {
	if u == nil || u.Message == nil {
		return false
	}
	command, _, _ := strings.Cut(strings.TrimSpace(u.Message.Text), " ")
	// commands in groups carry the bot name, /start@antichaos_bot
	command, _, _ = strings.Cut(command, "@")
	return command == "/start"
}
