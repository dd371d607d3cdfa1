package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/glucose-monitor/internal/bot/state"
	"github.com/vladimiradmaev/glucose-monitor/internal/devices"
	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
)

// TextHandler handles text messages
type TextHandler struct {
	actions
}

// NewTextHandler creates a new text handler
func NewTextHandler(api API, deps Dependencies, stateManager state.StateManager) *TextHandler {
	return &TextHandler{actions: newActions(api, deps, stateManager)}
}

// Handle processes a text message according to the user's conversation state
func (h *TextHandler) Handle(ctx context.Context, message *tgbotapi.Message, user *domain.User) error {
	switch h.stateManager.GetUserState(*user.TelegramID) {
	case state.WaitingForGlucose:
		return h.handleGlucose(ctx, message, user)
	case state.WaitingForNightscoutURL:
		return h.handleNightscoutURL(ctx, message, user)
	case state.WaitingForNightscoutSecret:
		return h.handleNightscoutSecret(ctx, message, user)
	default:
		return h.send(message.Chat.ID, "Please use the menu or /help to choose an action.")
	}
}

func (h *TextHandler) handleGlucose(ctx context.Context, message *tgbotapi.Message, user *domain.User) error {
	value, err := parseNumber(message.Text)
	if err != nil {
		return h.send(message.Chat.ID, "Please enter a number, for example 5.6")
	}
	return h.saveGlucose(ctx, message.Chat.ID, user, value)
}

func (h *TextHandler) handleNightscoutURL(ctx context.Context, message *tgbotapi.Message, user *domain.User) error {
	args := strings.Fields(message.Text)
	if len(args) == 0 || !strings.HasPrefix(args[0], "http") {
		return h.send(message.Chat.ID, "That does not look like a URL. It should start with https://")
	}
	if len(args) > 1 {
		return h.connect(ctx, message.Chat.ID, user, devices.TypeNightscout, nightscoutParams(args))
	}

	h.stateManager.SetTempData(*user.TelegramID, state.KeyNightscoutURL, args[0])
	h.stateManager.SetUserState(*user.TelegramID, state.WaitingForNightscoutSecret)
	return h.sendWithBack(message.Chat.ID, "Now send the API secret or access token, or \"-\" if your site is public.")
}

func (h *TextHandler) handleNightscoutSecret(ctx context.Context, message *tgbotapi.Message, user *domain.User) error {
	url, ok := h.stateManager.GetTempData(*user.TelegramID, state.KeyNightscoutURL)
	if !ok {
		return h.connect(ctx, message.Chat.ID, user, devices.TypeNightscout, nil)
	}
	args := []string{fmt.Sprint(url)}
	if secret := strings.TrimSpace(message.Text); secret != "" && secret != "-" {
		args = append(args, secret)
	}
	return h.connect(ctx, message.Chat.ID, user, devices.TypeNightscout, nightscoutParams(args))
}
