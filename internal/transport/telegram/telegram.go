// Package telegram implements the chat transport on the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"correio/internal/platform/config"
	dErrors "correio/pkg/domain-errors"
)

// Transport posts channel messages and DMs through a Telegram bot. Each call
// runs under its own timeout so a slow platform never stalls the scheduler.
type Transport struct {
	api         *tgbotapi.BotAPI
	logger      *slog.Logger
	callTimeout time.Duration
}

// New authorizes the bot and returns the transport.
func New(cfg config.TelegramConfig, logger *slog.Logger) (*Transport, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Transport{api: api, logger: logger, callTimeout: timeout}, nil
}

func (t *Transport) Send(ctx context.Context, channelID, text string) (string, error) {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return "", dErrors.New(dErrors.CodeDelivery, "invalid channel id")
	}
	return t.send(ctx, chatID, text)
}

func (t *Transport) SendDM(ctx context.Context, userID, text string) (string, error) {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return "", dErrors.New(dErrors.CodeDelivery, "invalid user id")
	}
	return t.send(ctx, chatID, text)
}

// ResolveChannel resolves an @username channel reference to its numeric chat
// id. Numeric names pass through untouched.
func (t *Transport) ResolveChannel(ctx context.Context, name string) (string, error) {
	if _, err := strconv.ParseInt(name, 10, 64); err == nil {
		return name, nil
	}

	username := name
	if username != "" && username[0] != '@' {
		username = "@" + username
	}

	done := make(chan struct{})
	var chat tgbotapi.Chat
	var callErr error
	go func() {
		defer close(done)
		chat, callErr = t.api.GetChat(tgbotapi.ChatInfoConfig{
			ChatConfig: tgbotapi.ChatConfig{SuperGroupUsername: username},
		})
	}()

	select {
	case <-ctx.Done():
		return "", dErrors.Wrap(ctx.Err(), dErrors.CodeNotFound, "channel resolution canceled")
	case <-time.After(t.callTimeout):
		return "", dErrors.New(dErrors.CodeNotFound, "channel resolution timed out")
	case <-done:
	}
	if callErr != nil {
		return "", dErrors.Wrap(callErr, dErrors.CodeNotFound, "channel not resolved")
	}
	return strconv.FormatInt(chat.ID, 10), nil
}

// send performs the blocking Bot API call with the transport's timeout. The
// library offers no context support, so the call runs in a goroutine and the
// timeout abandons it; Telegram-side duplicates are acceptable (at-least-once).
func (t *Transport) send(ctx context.Context, chatID int64, text string) (string, error) {
	msg := tgbotapi.NewMessage(chatID, text)

	done := make(chan struct{})
	var sent tgbotapi.Message
	var callErr error
	go func() {
		defer close(done)
		sent, callErr = t.api.Send(msg)
	}()

	select {
	case <-ctx.Done():
		return "", dErrors.Wrap(ctx.Err(), dErrors.CodeDelivery, "telegram send canceled")
	case <-time.After(t.callTimeout):
		return "", dErrors.New(dErrors.CodeDelivery, "telegram send timed out")
	case <-done:
	}
	if callErr != nil {
		return "", dErrors.Wrap(callErr, dErrors.CodeDelivery, "telegram send failed")
	}
	return strconv.Itoa(sent.MessageID), nil
}
