package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/glucose-monitor/internal/bot/keyboards"
	"github.com/vladimiradmaev/glucose-monitor/internal/bot/menus"
	"github.com/vladimiradmaev/glucose-monitor/internal/bot/state"
	"github.com/vladimiradmaev/glucose-monitor/internal/devices"
	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	"github.com/vladimiradmaev/glucose-monitor/internal/services"
)

// actions are the operations reachable both from commands and from menu buttons
type actions struct {
	replier
	deps         Dependencies
	stateManager state.StateManager
}

func newActions(api API, deps Dependencies, stateManager state.StateManager) actions {
	return actions{replier: newReplier(api), deps: deps, stateManager: stateManager}
}

func (a actions) mainMenu(telegramID, chatID int64) error {
	a.stateManager.ClearUserState(telegramID)
	a.stateManager.ClearTempData(telegramID)
	return menus.SendMainMenu(a.api, chatID)
}

func (a actions) analyze(ctx context.Context, chatID int64, user *domain.User, hours int) error {
	result, err := a.deps.MonitorSvc.Analyze(ctx, user.ID, hours)
	if err != nil {
		return a.fail(ctx, chatID, err)
	}
	return a.sendWithBack(chatID, menus.FormatAnalysis(hours, result))
}

func (a actions) trend(ctx context.Context, chatID int64, user *domain.User, days int) error {
	trend, err := a.deps.MonitorSvc.AnalyzeTrend(ctx, user.ID, days)
	if err != nil {
		return a.fail(ctx, chatID, err)
	}
	return a.sendWithBack(chatID, menus.FormatTrend(trend))
}

func (a actions) promptGlucose(chatID int64, user *domain.User) error {
	a.stateManager.SetUserState(*user.TelegramID, state.WaitingForGlucose)
	return a.sendWithBack(chatID, "Enter your blood glucose in mmol/L (for example 5.6):")
}

func (a actions) showDevices(chatID int64, user *domain.User) error {
	var current *domain.DeviceRegistration
	if reg, ok := a.deps.MonitorSvc.Registration(user.ID); ok {
		current = &reg
	}
	return menus.SendDeviceMenu(a.api, chatID, a.deps.MonitorSvc.SupportedDevices(), current)
}

// connect registers deviceType for the user. Nightscout without a URL switches
// the chat into URL entry instead.
func (a actions) connect(ctx context.Context, chatID int64, user *domain.User, deviceType string, params map[string]any) error {
	if deviceType == devices.TypeNightscout && params["url"] == nil {
		a.stateManager.SetUserState(*user.TelegramID, state.WaitingForNightscoutURL)
		return a.sendWithBack(chatID, "Send your Nightscout URL, optionally followed by the API secret:\nhttps://my.nightscout.example secret")
	}

	reg, err := a.deps.MonitorSvc.RegisterDevice(ctx, user.ID, deviceType, params, true)
	if err != nil {
		return a.fail(ctx, chatID, err)
	}
	a.stateManager.ClearUserState(*user.TelegramID)
	a.stateManager.ClearTempData(*user.TelegramID)
	return a.sendWithBack(chatID, fmt.Sprintf("✅ %s connected. I will check your readings automatically.", reg.DeviceType))
}

func (a actions) disconnect(ctx context.Context, chatID int64, user *domain.User) error {
	if err := a.deps.MonitorSvc.UnregisterDevice(ctx, user.ID); err != nil {
		return a.fail(ctx, chatID, err)
	}
	return a.sendWithBack(chatID, "Device disconnected. Automatic checks are off.")
}

func (a actions) saveGlucose(ctx context.Context, chatID int64, user *domain.User, value float64) error {
	reading, err := a.deps.BloodSugarSvc.AddRecord(ctx, user.ID, services.NewRecord{Value: value})
	if err != nil {
		return a.fail(ctx, chatID, err)
	}
	a.stateManager.ClearUserState(*user.TelegramID)

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ Saved %.1f mmol/L (%s)", reading.Value,
		strings.ReplaceAll(string(reading.Context), "_", " ")))
	msg.ReplyMarkup = keyboards.MainMenu()
	_, err = a.api.Send(msg)
	return err
}

// nightscoutParams parses "<url> [api_secret]"
func nightscoutParams(args []string) map[string]any {
	if len(args) == 0 {
		return nil
	}
	params := map[string]any{"url": args[0]}
	if len(args) > 1 {
		params["api_secret"] = args[1]
	}
	return params
}
