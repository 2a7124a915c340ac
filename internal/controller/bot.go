// Package controller renders dashboard views and turns chat input into
// service calls.
package controller

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/controller/callbacks"
	"github.com/ST10104037/hippocampus-site/internal/controller/formatting"
	"github.com/ST10104037/hippocampus-site/internal/controller/keyboard"
	"github.com/ST10104037/hippocampus-site/internal/controller/state"
	"github.com/ST10104037/hippocampus-site/internal/fifo"
	"github.com/ST10104037/hippocampus-site/internal/service"
	"github.com/ST10104037/hippocampus-site/internal/session"
	"github.com/ST10104037/hippocampus-site/internal/subscription"
	"github.com/ST10104037/hippocampus-site/internal/view"
)

// Views reads the current state of a purpose
type Views interface {
	Current(purpose subscription.Purpose) view.Update
}

// Sessions returns the signed-in session, nil when signed out
type Sessions interface {
	Session() *session.Context
}

// outgoing is a message waiting to be sent to the dashboard chat
type outgoing struct {
	text   string
	markup *models.InlineKeyboardMarkup
}

// BotController posts view updates to one Telegram chat and acts on the
// commands and buttons used in that chat.
type BotController struct {
	bot      *bot.Bot
	chatID   int64
	views    Views
	sessions Sessions
	admin    *service.AdminService
	bookings *service.BookingService
	state    *state.Manager
	outbox   *fifo.Queue[outgoing]
	logger   *zap.Logger

	send func(ctx context.Context, msg outgoing) error
}

var _ view.Sink = (*BotController)(nil)
var _ callbacks.Handler = (*BotController)(nil)

func NewBotController(
	botInstance *bot.Bot,
	chatID int64,
	admin *service.AdminService,
	bookings *service.BookingService,
	logger *zap.Logger,
) *BotController {
	c := &BotController{
		bot:      botInstance,
		chatID:   chatID,
		admin:    admin,
		bookings: bookings,
		state:    state.NewManager(),
		outbox:   fifo.New[outgoing](),
		logger:   logger.Named("bot"),
	}
	c.send = c.sendMessage
	return c
}

// Bind sets where commands read views and the session from. It must be
// called before Start.
func (c *BotController) Bind(views Views, sessions Sessions) {
	c.views = views
	c.sessions = sessions
}

// Publish queues the rendered update. It never blocks on Telegram.
func (c *BotController) Publish(u view.Update) {
	// the roster half of the lecturer dashboard repeats the bookings half
	if u.Purpose == subscription.PurposeLecturerRoster {
		return
	}
	c.outbox.Push(renderUpdate(u))
}

func (c *BotController) SessionChanged(ev view.SessionEvent) {
	if !ev.SignedIn {
		c.state.ClearState(c.chatID)
	}
	c.outbox.Push(outgoing{text: formatting.FormatSession(ev)})
}

// RegisterHandlers registers the commands and the button handler
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	only := c.onlyDashboardChat

	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.HandleHelp, only)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.HandleHelp, only)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/view", bot.MatchTypeExact, c.HandleView, only)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/lecturers", bot.MatchTypeExact, c.HandleLecturers, only)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/deleteuser", bot.MatchTypePrefix, c.HandleDeleteUser, only)

	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, c.HandleCallbackQuery)

	return c.setCommands(ctx)
}

func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "view", Description: "📊 Show the current dashboard"},
		{Command: "lecturers", Description: "👨‍🏫 Lecturers for assignment (admin)"},
		{Command: "deleteuser", Description: "🗑 Delete a user (admin)"},
		{Command: "help", Description: "❓ Command help"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start sends queued messages and polls Telegram until ctx is done
func (c *BotController) Start(ctx context.Context) error {
	if err := c.RegisterHandlers(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.runOutbox(ctx)
	}()

	c.logger.Info("Starting bot...", zap.Int64("chat_id", c.chatID))
	c.bot.Start(ctx)

	c.outbox.Close()
	<-done
	return nil
}

func (c *BotController) runOutbox(ctx context.Context) {
	for {
		msg, ok := c.outbox.Next(ctx.Done())
		if !ok {
			return
		}
		if err := c.send(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("Failed to send message",
				zap.Int64("chat_id", c.chatID),
				zap.Error(err))
		}
	}
}

func (c *BotController) sendMessage(ctx context.Context, msg outgoing) error {
	params := &bot.SendMessageParams{
		ChatID:    c.chatID,
		Text:      msg.text,
		ParseMode: models.ParseModeHTML,
	}
	if msg.markup != nil {
		params.ReplyMarkup = msg.markup
	}
	_, err := c.bot.SendMessage(ctx, params)
	return err
}

// renderUpdate renders an update with the buttons its view offers
func renderUpdate(u view.Update) outgoing {
	msg := outgoing{text: formatting.FormatUpdate(u)}
	if lv, ok := u.View.(view.LecturerView); ok && u.State == view.StateReady {
		msg.markup = keyboard.PendingBookings(lv.Bookings).Build()
	}
	return msg
}
