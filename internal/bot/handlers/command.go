package handlers

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/glucose-monitor/internal/bot/menus"
	"github.com/vladimiradmaev/glucose-monitor/internal/bot/state"
	"github.com/vladimiradmaev/glucose-monitor/internal/devices"
	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
	"github.com/vladimiradmaev/glucose-monitor/internal/services"
)

// CommandHandler handles bot commands
type CommandHandler struct {
	actions
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(api API, deps Dependencies, stateManager state.StateManager) *CommandHandler {
	return &CommandHandler{actions: newActions(api, deps, stateManager)}
}

// Handle processes a command message
func (h *CommandHandler) Handle(ctx context.Context, message *tgbotapi.Message, user *domain.User) error {
	logger.Debug("Handling command", "command", message.Command(), "user_id", user.ID)

	chatID := message.Chat.ID
	args := strings.Fields(message.CommandArguments())

	switch message.Command() {
	case "start":
		return h.mainMenu(*user.TelegramID, chatID)
	case "help":
		return h.send(chatID, menus.HelpText)
	case "analyze":
		hours, ok := intArg(args, services.DefaultAnalyzeHours)
		if !ok {
			return h.send(chatID, "Usage: /analyze [hours], for example /analyze 6")
		}
		return h.analyze(ctx, chatID, user, hours)
	case "trend":
		days, ok := intArg(args, services.DefaultTrendDays)
		if !ok {
			return h.send(chatID, "Usage: /trend [days], for example /trend 7")
		}
		return h.trend(ctx, chatID, user, days)
	case "connect":
		if len(args) == 0 {
			return h.showDevices(chatID, user)
		}
		var params map[string]any
		if args[0] == devices.TypeNightscout {
			params = nightscoutParams(args[1:])
		}
		return h.connect(ctx, chatID, user, args[0], params)
	case "disconnect":
		return h.disconnect(ctx, chatID, user)
	case "target":
		return h.handleTarget(ctx, chatID, user, args)
	default:
		return h.send(chatID, "Unknown command. Use /help to see the available commands.")
	}
}

func (h *CommandHandler) handleTarget(ctx context.Context, chatID int64, user *domain.User, args []string) error {
	if len(args) != 2 {
		return h.send(chatID, "Usage: /target <low> <high>, for example /target 4.0 8.0")
	}
	low, errLow := parseNumber(args[0])
	high, errHigh := parseNumber(args[1])
	if errLow != nil || errHigh != nil {
		return h.send(chatID, "Both bounds must be numbers, for example /target 4.0 8.0")
	}
	if err := h.deps.UserService.SetTargetRange(ctx, user.ID, low, high); err != nil {
		return h.fail(ctx, chatID, err)
	}
	return h.sendWithBack(chatID, "✅ Target range saved. Alerts now use "+args[0]+" to "+args[1]+" mmol/L.")
}

// intArg returns the first argument as a positive integer, or def when absent
func intArg(args []string, def int) (int, bool) {
	if len(args) == 0 {
		return def, true
	}
	v, err := strconv.Atoi(args[0])
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// parseNumber accepts both "5.6" and "5,6"
func parseNumber(raw string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(strings.TrimSpace(raw), ",", ".", 1), 64)
}
