package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"summarist/internal/domain"
	"summarist/internal/ratelimiter"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram delivers finished reports to a chat.
type Telegram struct {
	api         messageSender
	rateLimiter *ratelimiter.RateLimiter
	log         *slog.Logger
}

func NewTelegram(token string, log *slog.Logger, opts ...bot.Option) (*Telegram, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}

	api, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return newTelegram(api, log), nil
}

func newTelegram(api messageSender, log *slog.Logger) *Telegram {
	return &Telegram{
		api:         api,
		rateLimiter: ratelimiter.New(log),
		log:         log,
	}
}

// SendReport posts report to chatID. Every message is attempted; failures are joined.
func (t *Telegram) SendReport(
	ctx context.Context,
	chatID int64,
	title string,
	report domain.Report,
) error {
	messages := FormatReportAsMessages(title, report)
	if len(messages) == 0 {
		return nil
	}

	var errs []error

	for i, message := range messages {
		if err := t.rateLimiter.Wait(ctx, chatID); err != nil {
			return errors.Join(append(errs, fmt.Errorf("wait for rate limiter: %w", err))...)
		}

		_, err := t.api.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      message,
			ParseMode: models.ParseModeMarkdown,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("send message (part = %d/%d): %w", i+1, len(messages), err))
		}
	}

	t.log.InfoContext(ctx, "Report is delivered to Telegram",
		"chatID", chatID,
		"messageCount", len(messages),
		"failedCount", len(errs))

	return errors.Join(errs...)
}
