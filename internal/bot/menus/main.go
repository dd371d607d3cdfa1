package menus

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/glucose-monitor/internal/bot/keyboards"
	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
)

// Sender is the subset of *tgbotapi.BotAPI used to send messages
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

const HelpText = `Available commands:
/start - show the main menu
/help - show this message
/analyze [hours] - analyze the last hours (default 24)
/trend [days] - patterns over the last days (default 3)
/connect <device> - connect a glucose data source
   nightscout needs a URL: /connect nightscout <url> [api_secret]
/disconnect - stop automatic syncing
/target <low> <high> - set your target range in mmol/L

You can also send a glucose value after pressing "🩸 Enter glucose".

⚠️ This is reference information. Always consult your doctor.`

// SendMainMenu sends the main menu to a chat
func SendMainMenu(api Sender, chatID int64) error {
	text := `🩸 *Glucose monitor*

I watch your readings and warn you about lows, highs and rapid changes.

Choose an action:`

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = keyboards.MainMenu()
	_, err := api.Send(msg)
	return err
}

// SendDeviceMenu shows the current registration and the devices that can be connected
func SendDeviceMenu(api Sender, chatID int64, devices []string, current *domain.DeviceRegistration) error {
	text := "No device connected. Choose one to start automatic syncing:"
	if current != nil {
		sync := "off"
		if current.AutoSync {
			sync = "on"
		}
		text = fmt.Sprintf("Connected: %s (auto sync %s)\n\nChoose another device to replace it:", current.DeviceType, sync)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboards.DeviceMenu(devices, current != nil)
	_, err := api.Send(msg)
	return err
}

// FormatAnalysis renders a window analysis as chat text
func FormatAnalysis(hours int, r *domain.AnalysisResult) string {
	if r.Status != domain.StatusOK || r.Statistics == nil {
		return fmt.Sprintf("📈 Last %d h: no readings yet.", hours)
	}

	var b strings.Builder
	st := r.Statistics
	fmt.Fprintf(&b, "📈 Last %d h (%d readings)\n", hours, st.Count)
	fmt.Fprintf(&b, "Average %.1f, min %.1f, max %.1f mmol/L\n", st.Average, st.Min, st.Max)

	if !r.HasAlerts {
		b.WriteString("\n✅ No alerts.")
		return b.String()
	}
	b.WriteString("\n")
	for _, a := range r.Alerts {
		fmt.Fprintf(&b, "%s %s\n", alertIcon(a.Severity), describeAlert(a))
	}
	if r.AlertMessage != "" {
		b.WriteString("\n")
		b.WriteString(r.AlertMessage)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatTrend renders a multi-day trend as chat text
func FormatTrend(t *domain.TrendResult) string {
	if t.Patterns == nil {
		return fmt.Sprintf("📊 Last %d days: %d readings, at least 3 are needed for a trend.", t.Days, t.RecordCount)
	}

	p := t.Patterns
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Last %d days (%d readings on %d days)\n", t.Days, t.RecordCount, p.Days)
	if t.Statistics != nil {
		fmt.Fprintf(&b, "Average %.1f mmol/L, SD %.1f\n", t.Statistics.Average, p.StandardDeviation)
	}
	fmt.Fprintf(&b, "In range %.0f%%, above %.0f%%, below %.0f%%\n", p.InRangePercent, p.HighPercent, p.LowPercent)
	fmt.Fprintf(&b, "Morning %.1f, afternoon %.1f, evening %.1f\n", p.MorningAverage, p.AfternoonAverage, p.EveningAverage)
	if t.Advice != "" {
		b.WriteString("\n💡 ")
		b.WriteString(t.Advice)
	}
	return strings.TrimRight(b.String(), "\n")
}

func alertIcon(s domain.Severity) string {
	if s == domain.SeverityHigh {
		return "🚨"
	}
	return "⚠️"
}

func describeAlert(a domain.AlertEvent) string {
	switch a.Type {
	case domain.AlertLowGlucose:
		return fmt.Sprintf("Low %.1f mmol/L at %s", a.Value, a.Timestamp.Format("15:04"))
	case domain.AlertHighGlucose:
		return fmt.Sprintf("High %.1f mmol/L at %s", a.Value, a.Timestamp.Format("15:04"))
	case domain.AlertRapidDrop:
		return fmt.Sprintf("Dropping %.1f mmol/L per hour", a.Value)
	case domain.AlertRapidRise:
		return fmt.Sprintf("Rising %.1f mmol/L per hour", a.Value)
	}
	return string(a.Type)
}
