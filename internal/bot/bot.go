package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/glucose-monitor/internal/bot/handlers"
	"github.com/vladimiradmaev/glucose-monitor/internal/bot/state"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

// Bot receives Telegram updates and dispatches them to the handlers
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *handlers.UpdateHandler

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewAPI authorizes the bot token with Telegram
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Info("Bot authorized", "account", api.Self.UserName)
	return api, nil
}

func NewBot(api *tgbotapi.BotAPI, deps handlers.Dependencies, stateManager state.StateManager) *Bot {
	return &Bot{
		api:     api,
		handler: handlers.NewUpdateHandler(api, deps, stateManager),
	}
}

// Start polls for updates until ctx is cancelled or Stop is called
func (b *Bot) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	defer cancel()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	logger.Info("Bot is now listening for updates")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Bot is shutting down")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.handler.Handle(ctx, update); err != nil {
				logger.Error("Error handling update", "update_id", update.UpdateID, "error", err)
			}
		}
	}
}

// Stop ends polling and the Start loop
func (b *Bot) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.api.StopReceivingUpdates()
}
