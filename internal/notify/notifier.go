package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
	"github.com/vladimiradmaev/glucose-monitor/internal/metrics"
)

// LogNotifier writes alerts to the structured log
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n domain.Notification) error {
	logger.Warn("Glucose alert",
		"user_id", n.UserID,
		"alert_type", n.Alert.Type,
		"severity", n.Alert.Severity,
		"value", n.Alert.Value,
		"alerts", len(n.Alerts),
		"message_source", n.Source,
		"message", n.Message,
	)
	return nil
}

// MessageSender is the subset of *tgbotapi.BotAPI used for delivery
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// UserLookup resolves the chat a user is linked to
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// TelegramNotifier sends alerts to the user's linked Telegram chat.
// Users without a linked chat are skipped silently.
type TelegramNotifier struct {
	sender MessageSender
	users  UserLookup
}

func NewTelegramNotifier(sender MessageSender, users UserLookup) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, users: users}
}

func (t *TelegramNotifier) Notify(ctx context.Context, n domain.Notification) error {
	user, err := t.users.GetUser(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}
	if user.TelegramID == nil {
		return nil
	}

	msg := tgbotapi.NewMessage(*user.TelegramID, FormatAlert(n))
	if _, err := t.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// FormatAlert renders a notification as chat text
func FormatAlert(n domain.Notification) string {
	icon := "⚠️"
	if n.Alert.Severity == domain.SeverityHigh {
		icon = "🚨"
	}
	title := strings.ReplaceAll(string(n.Alert.Type), "_", " ")

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)\n\n", icon, strings.ToUpper(title[:1])+title[1:], n.Alert.Severity)
	b.WriteString(n.Message)
	if len(n.Alerts) > 1 {
		fmt.Fprintf(&b, "\n\n%d alerts in the last window.", len(n.Alerts))
	}
	return b.String()
}

// Multi fans a notification out to every notifier, collecting errors
type Multi []domain.Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Suppressing drops repeats of the same alert type for a user within the
// cooldown window. Cooldown backend errors fail open.
type Suppressing struct {
	next     domain.Notifier
	cooldown Cooldown
	metrics  *metrics.Metrics
}

func NewSuppressing(next domain.Notifier, cooldown Cooldown, m *metrics.Metrics) *Suppressing {
	return &Suppressing{next: next, cooldown: cooldown, metrics: m}
}

func (s *Suppressing) Notify(ctx context.Context, n domain.Notification) error {
	key := fmt.Sprintf("%s:%s", n.UserID, n.Alert.Type)
	allowed, err := s.cooldown.Allow(ctx, key)
	if err != nil {
		logger.Warn("Cooldown check failed, delivering anyway", "key", key, "error", err)
		allowed = true
	}
	if !allowed {
		logger.Debug("Alert suppressed by cooldown", "user_id", n.UserID, "alert_type", n.Alert.Type)
		s.metrics.Notification("suppressed")
		return nil
	}

	if err := s.next.Notify(ctx, n); err != nil {
		s.metrics.Notification("failed")
		return err
	}
	s.metrics.Notification("sent")
	return nil
}
