// Package callbacks defines the inline button payloads of the bot and routes
// button presses to their handlers.
package callbacks

import (
	"context"
	"errors"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Action is the prefix of a callback payload. Actions ending in ':' carry an
// argument after the colon.
type Action string

const (
	AcceptBooking Action = "booking_accept:"      // booking_accept:<booking id>
	RejectBooking Action = "booking_reject:"      // booking_reject:<booking id>
	ConfirmDelete Action = "confirm_delete_user:" // confirm_delete_user:<uid>
	CancelDelete  Action = "cancel_delete_user"
)

var ErrInvalidFormat = errors.New("invalid callback format")

// With appends the argument to the action
func (a Action) With(arg string) string {
	return string(a) + arg
}

// Parse splits callback data into its action and argument
func Parse(data string) (Action, string, error) {
	for _, a := range []Action{AcceptBooking, RejectBooking, ConfirmDelete} {
		if arg, ok := strings.CutPrefix(data, string(a)); ok {
			if arg == "" {
				return "", "", ErrInvalidFormat
			}
			return a, arg, nil
		}
	}
	if data == string(CancelDelete) {
		return CancelDelete, "", nil
	}
	return "", "", ErrInvalidFormat
}

// Handler runs the action of a button press and returns the text shown to
// the user in the callback answer
type Handler interface {
	AcceptBooking(ctx context.Context, chatID int64, bookingID string) string
	RejectBooking(ctx context.Context, chatID int64, bookingID string) string
	ConfirmDelete(ctx context.Context, chatID int64, uid string) string
	CancelDelete(ctx context.Context, chatID int64) string
}

// Route dispatches a callback query and answers it
func Route(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h Handler, logger *zap.Logger) {
	logger.Info("Routing callback",
		zap.String("data", callback.Data),
		zap.Int64("user_id", callback.From.ID))

	msg := callback.Message.Message
	if msg == nil {
		answer(ctx, b, callback.ID, "❌ Message is no longer available.", logger)
		return
	}

	action, arg, err := Parse(callback.Data)
	if err != nil {
		logger.Warn("Unknown callback", zap.String("data", callback.Data))
		answer(ctx, b, callback.ID, "❌ Unknown action.", logger)
		return
	}

	var text string
	switch action {
	case AcceptBooking:
		text = h.AcceptBooking(ctx, msg.Chat.ID, arg)
	case RejectBooking:
		text = h.RejectBooking(ctx, msg.Chat.ID, arg)
	case ConfirmDelete:
		text = h.ConfirmDelete(ctx, msg.Chat.ID, arg)
	case CancelDelete:
		text = h.CancelDelete(ctx, msg.Chat.ID)
	}
	answer(ctx, b, callback.ID, text, logger)
}

func answer(ctx context.Context, b *bot.Bot, callbackID, text string, logger *zap.Logger) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       strings.HasPrefix(text, "❌"),
	})
	if err != nil {
		logger.Error("Failed to answer callback", zap.Error(err))
	}
}
