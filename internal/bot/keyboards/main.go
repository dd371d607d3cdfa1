package keyboards

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data values
const (
	EnterGlucose  = "enter_glucose"
	Analyze       = "analyze"
	Trend         = "trend"
	Devices       = "devices"
	Disconnect    = "disconnect"
	MainMenuData  = "main_menu"
	Help          = "help"
	ConnectPrefix = "connect:"
)

// MainMenu creates the main menu keyboard
func MainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🩸 Enter glucose", EnterGlucose),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📈 Last 24 h", Analyze),
			tgbotapi.NewInlineKeyboardButtonData("📊 3-day trend", Trend),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔌 Devices", Devices),
			tgbotapi.NewInlineKeyboardButtonData("❓ Help", Help),
		),
	)
}

// DeviceMenu lists connectable devices, plus a disconnect button when one is connected
func DeviceMenu(devices []string, connected bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, d := range devices {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ "+d, ConnectPrefix+d),
		))
	}
	if connected {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑️ Disconnect", Disconnect),
		))
	}
	rows = append(rows, BackRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// BackToMenu is a single "main menu" button
func BackToMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(BackRow())
}

func BackRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️ Main menu", MainMenuData),
	)
}
