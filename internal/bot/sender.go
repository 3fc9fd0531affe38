package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// NewAPI authorizes a Bot API client whose HTTP calls are bounded by timeout.
// Long polling adds its own wait on top, so the poller uses a wider client.
func NewAPI(token string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

// TelegramSender delivers HTML messages through the Bot API, throttled to
// the configured messages per second.
type TelegramSender struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

func NewTelegramSender(api *tgbotapi.BotAPI, perSecond float64) *TelegramSender {
	if perSecond <= 0 {
		perSecond = 30
	}
	return &TelegramSender{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Send waits for a rate slot and sends text, split when it exceeds one
// message.
func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := s.api.Send(msg); err != nil {
			return fmt.Errorf("send to %d: %w", chatID, err)
		}
	}
	return nil
}
