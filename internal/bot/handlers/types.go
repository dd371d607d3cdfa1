package handlers

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/glucose-monitor/internal/bot/keyboards"
	"github.com/vladimiradmaev/glucose-monitor/internal/bot/menus"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/interfaces"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

// Dependencies holds all service dependencies for handlers
type Dependencies struct {
	UserService   interfaces.UserServiceInterface
	BloodSugarSvc interfaces.BloodSugarServiceInterface
	MonitorSvc    interfaces.MonitorServiceInterface
}

// API is the subset of *tgbotapi.BotAPI the handlers use
type API interface {
	menus.Sender
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// replier sends plain replies and turns service errors into user-facing text
type replier struct {
	api    API
	errors *apperrors.Handler
}

func newReplier(api API) replier {
	return replier{api: api, errors: apperrors.NewHandler(logger.WithComponent("bot"))}
}

func (r replier) send(chatID int64, text string) error {
	_, err := r.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (r replier) sendWithBack(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboards.BackToMenu()
	_, err := r.api.Send(msg)
	return err
}

// fail reports err to the user. Validation problems are shown as is,
// everything else is logged and replaced by a generic apology.
func (r replier) fail(ctx context.Context, chatID int64, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type == apperrors.ErrorTypeValidation {
		return r.send(chatID, "⚠️ "+appErr.Message)
	}
	r.errors.Handle(ctx, err, "chat_id", chatID)
	return r.send(chatID, "Something went wrong, please try again later.")
}
