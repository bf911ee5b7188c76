// Package telegram adapts the Bot API to the narrow gateway contract
// the publishing core depends on.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/autopost-bot/internal/models"
	"github.com/autopost-bot/pkg/logger"
	"github.com/autopost-bot/pkg/ratelimit"
)

// Gateway is the messaging surface the core consumes. All calls can
// fail with an opaque transport/permission error.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string, buttons models.ButtonSpecs) (int, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, buttons models.ButtonSpecs) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string, buttons models.ButtonSpecs) error
	ChatMemberCount(ctx context.Context, chatID int64) (int, error)
}

// Client implements Gateway on top of go-telegram-bot-api
type Client struct {
	bot     *tgbotapi.BotAPI
	limiter *ratelimit.MultiLimiter
	log     *logger.Logger
}

// NewClient authorizes the bot and wraps it
func NewClient(token string, debug bool, limiter *ratelimit.MultiLimiter, log *logger.Logger) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}
	bot.Debug = debug

	log.Info().Str("username", bot.Self.UserName).Msg("Bot authorized")

	return &Client{
		bot:     bot,
		limiter: limiter,
		log:     log.WithComponent("telegram"),
	}, nil
}

// Bot exposes the underlying API for the update loop
func (c *Client) Bot() *tgbotapi.BotAPI {
	return c.bot
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string, buttons models.ButtonSpecs) (int, error) {
	if err := c.limiter.Wait(ctx, ratelimit.LimiterTelegramSend); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if kb := Markup(buttons); kb != nil {
		msg.ReplyMarkup = kb
	}

	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *Client) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, buttons models.ButtonSpecs) (int, error) {
	if err := c.limiter.Wait(ctx, ratelimit.LimiterTelegramSend); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	if kb := Markup(buttons); kb != nil {
		msg.ReplyMarkup = kb
	}

	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := c.limiter.Wait(ctx, ratelimit.LimiterTelegramAPI); err != nil {
		return err
	}

	_, err := c.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, buttons models.ButtonSpecs) error {
	if err := c.limiter.Wait(ctx, ratelimit.LimiterTelegramAPI); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.DisableWebPagePreview = true
	if kb := Markup(buttons); kb != nil {
		edit.ReplyMarkup = kb
	}

	_, err := c.bot.Request(edit)
	return err
}

func (c *Client) ChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	if err := c.limiter.Wait(ctx, ratelimit.LimiterTelegramAPI); err != nil {
		return 0, err
	}

	return c.bot.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
}

// Markup renders a button layout as an inline keyboard, rows of two.
// Returns nil for an empty layout.
func Markup(buttons models.ButtonSpecs) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, specRow := range buttons.Rows() {
		var row []tgbotapi.InlineKeyboardButton
		for _, spec := range specRow {
			switch spec.Kind {
			case models.ButtonKindURL:
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(spec.Text, spec.URL))
			default:
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(spec.Text, spec.CallbackToken))
			}
		}
		rows = append(rows, row)
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}
