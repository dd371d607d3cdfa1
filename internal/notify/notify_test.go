package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
)

type recordingNotifier struct {
	got []domain.Notification
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) error {
	r.got = append(r.got, n)
	return r.err
}

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

type fakeUsers map[string]*domain.User

func (f fakeUsers) GetUser(_ context.Context, id string) (*domain.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

type failingCooldown struct{}

func (failingCooldown) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func notification(user string, t domain.AlertType) domain.Notification {
	alert := domain.AlertEvent{Type: t, Severity: domain.SeverityHigh, Value: 2.5}
	return domain.Notification{UserID: user, Alert: alert, Alerts: []domain.AlertEvent{alert}, Message: "take action"}
}

func TestMemoryCooldown(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCooldown(time.Hour)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := c.Allow(ctx, "u1:low_glucose")
	assert.True(t, ok)
	ok, _ = c.Allow(ctx, "u1:low_glucose")
	assert.False(t, ok)
	ok, _ = c.Allow(ctx, "u1:high_glucose")
	assert.True(t, ok, "different key")

	now = now.Add(time.Hour)
	ok, _ = c.Allow(ctx, "u1:low_glucose")
	assert.True(t, ok, "window elapsed")
}

func TestSuppressing_DropsRepeats(t *testing.T) {
	next := &recordingNotifier{}
	s := NewSuppressing(next, NewMemoryCooldown(time.Hour), nil)
	ctx := context.Background()

	require.NoError(t, s.Notify(ctx, notification("u1", domain.AlertLowGlucose)))
	require.NoError(t, s.Notify(ctx, notification("u1", domain.AlertLowGlucose)))
	require.NoError(t, s.Notify(ctx, notification("u2", domain.AlertLowGlucose)))

	assert.Len(t, next.got, 2)
}

func TestSuppressing_FailsOpen(t *testing.T) {
	next := &recordingNotifier{}
	s := NewSuppressing(next, failingCooldown{}, nil)

	require.NoError(t, s.Notify(context.Background(), notification("u1", domain.AlertRapidDrop)))
	assert.Len(t, next.got, 1)
}

func TestMulti_CollectsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{err: errors.New("boom")}

	err := Multi{bad, ok}.Notify(context.Background(), notification("u1", domain.AlertHighGlucose))
	assert.Error(t, err)
	assert.Len(t, ok.got, 1, "later notifiers still run")
}

func TestTelegramNotifier(t *testing.T) {
	chatID := int64(42)
	users := fakeUsers{
		"linked":   {ID: "linked", TelegramID: &chatID},
		"unlinked": {ID: "unlinked"},
	}
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, users)
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, notification("linked", domain.AlertLowGlucose)))
	require.Len(t, sender.sent, 1)
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, chatID, msg.ChatID)
	assert.Contains(t, msg.Text, "Low glucose (high)")
	assert.Contains(t, msg.Text, "take action")

	require.NoError(t, n.Notify(ctx, notification("unlinked", domain.AlertLowGlucose)))
	assert.Len(t, sender.sent, 1)

	assert.Error(t, n.Notify(ctx, notification("missing", domain.AlertLowGlucose)))
}
