package telegram

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"price-notifications/internal/types"
	"price-notifications/lib/helpers"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NewBot creates new telegram bot. It contacts the API once to verify the token.
func NewBot(c BotConfig) (*Bot, error) {
	if c.Token == "" {
		return nil, errors.New("telegram bot token is not set")
	}

	client := &http.Client{}
	if c.Timeout > 0 {
		client.Timeout = time.Duration(c.Timeout) * time.Second
	}

	bot, err := tgbotapi.NewBotAPIWithClient(c.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug
	log.Debugf("Authorized on telegram account %s", bot.Self.UserName)

	return &Bot{api: bot, Config: c}, nil
}

func (b *Bot) Name() string { return "telegram" }

var chatIDPattern = regexp.MustCompile(`^-?[0-9]+$`)

// ParseChatID accepts a numeric chat id, negative for groups. Phone numbers
// such as "+15550100" are rejected.
func ParseChatID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if !chatIDPattern.MatchString(s) {
		return 0, errors.Errorf("invalid telegram chat id %q", s)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid telegram chat id %q", s)
	}
	return id, nil
}

// Send delivers text to the chat whose id is the contact's to-number.
func (b *Bot) Send(ctx context.Context, contact types.Contact, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	chatID, err := ParseChatID(contact.To)
	if err != nil {
		return "", err
	}

	msg := tgbotapi.NewMessage(chatID, helpers.EscapeMarkdownV2(text))
	msg.DisableWebPagePreview = true
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	sent, err := b.api.Send(msg)
	if err != nil {
		return "", errors.Wrapf(err, "could not send message to chat %d", chatID)
	}
	return strconv.Itoa(sent.MessageID), nil
}
