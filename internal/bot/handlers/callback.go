package handlers

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/glucose-monitor/internal/bot/keyboards"
	"github.com/vladimiradmaev/glucose-monitor/internal/bot/menus"
	"github.com/vladimiradmaev/glucose-monitor/internal/bot/state"
	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
	"github.com/vladimiradmaev/glucose-monitor/internal/services"
)

// CallbackHandler handles callback query messages
type CallbackHandler struct {
	actions
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(api API, deps Dependencies, stateManager state.StateManager) *CallbackHandler {
	return &CallbackHandler{actions: newActions(api, deps, stateManager)}
}

// Handle processes a callback query
func (h *CallbackHandler) Handle(ctx context.Context, query *tgbotapi.CallbackQuery, user *domain.User) error {
	// Answer the callback query first to remove the loading state
	if _, err := h.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		logger.Warn("Failed to answer callback query", "error", err)
	}
	if query.Message == nil || query.Message.Chat == nil {
		return nil
	}
	chatID := query.Message.Chat.ID

	if deviceType, ok := strings.CutPrefix(query.Data, keyboards.ConnectPrefix); ok {
		return h.connect(ctx, chatID, user, deviceType, nil)
	}

	switch query.Data {
	case keyboards.EnterGlucose:
		return h.promptGlucose(chatID, user)
	case keyboards.Analyze:
		return h.analyze(ctx, chatID, user, services.DefaultAnalyzeHours)
	case keyboards.Trend:
		return h.trend(ctx, chatID, user, services.DefaultTrendDays)
	case keyboards.Devices:
		return h.showDevices(chatID, user)
	case keyboards.Disconnect:
		return h.disconnect(ctx, chatID, user)
	case keyboards.Help:
		return h.sendWithBack(chatID, menus.HelpText)
	case keyboards.MainMenuData:
		return h.mainMenu(*user.TelegramID, chatID)
	default:
		return h.send(chatID, "Unknown action. Use /start to open the menu.")
	}
}
