package controller

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/controller/callbacks"
	"github.com/ST10104037/hippocampus-site/internal/controller/formatting"
	"github.com/ST10104037/hippocampus-site/internal/controller/keyboard"
	"github.com/ST10104037/hippocampus-site/internal/controller/state"
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/service"
	"github.com/ST10104037/hippocampus-site/internal/subscription"
	"github.com/ST10104037/hippocampus-site/internal/view"
)

const helpText = "📚 Commands:\n\n" +
	"/view - Show the current dashboard\n" +
	"/lecturers - List lecturers for student assignment (admin)\n" +
	"/deleteuser &lt;uid&gt; - Delete a user (admin)\n" +
	"/help - Show this help\n\n" +
	"Pending bookings carry Accept and Reject buttons."

// rolePurposes is what /view renders per role
var rolePurposes = map[model.Role]subscription.Purpose{
	model.RoleAdmin:    subscription.PurposeAdminRoster,
	model.RoleStudent:  subscription.PurposeMyProfile,
	model.RoleLecturer: subscription.PurposeLecturerBookings,
}

func (c *BotController) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	c.outbox.Push(outgoing{text: helpText})
}

// HandleView re-renders the signed-in role's view
func (c *BotController) HandleView(ctx context.Context, b *bot.Bot, update *models.Update) {
	c.outbox.Push(c.currentView())
}

func (c *BotController) currentView() outgoing {
	sess := c.sessions.Session()
	if sess == nil {
		return outgoing{text: service.ErrorMessage(service.ErrNotSignedIn)}
	}

	purpose, ok := rolePurposes[sess.Role]
	if !ok {
		return outgoing{text: service.ErrorMessage(service.ErrForbidden)}
	}
	return renderUpdate(c.views.Current(purpose))
}

func (c *BotController) HandleLecturers(ctx context.Context, b *bot.Bot, update *models.Update) {
	c.outbox.Push(c.lecturerList())
}

func (c *BotController) lecturerList() outgoing {
	sess := c.sessions.Session()
	switch {
	case sess == nil:
		return outgoing{text: service.ErrorMessage(service.ErrNotSignedIn)}
	case !sess.Is(model.RoleAdmin):
		return outgoing{text: service.ErrorMessage(service.ErrForbidden)}
	}

	u := c.views.Current(subscription.PurposeAdminRoster)
	v, ok := u.View.(view.AdminView)
	if u.State != view.StateReady || !ok {
		return outgoing{text: formatting.FormatUpdate(u)}
	}
	return outgoing{text: formatting.FormatLecturers(c.admin.Lecturers(v))}
}

// HandleDeleteUser starts the two-step deletion: /deleteuser <uid>
func (c *BotController) HandleDeleteUser(ctx context.Context, b *bot.Bot, update *models.Update) {
	args := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/deleteuser"))
	c.outbox.Push(c.deletePrompt(update.Message.Chat.ID, args))
}

func (c *BotController) deletePrompt(chatID int64, uid string) outgoing {
	sess := c.sessions.Session()
	switch {
	case sess == nil:
		return outgoing{text: service.ErrorMessage(service.ErrNotSignedIn)}
	case !sess.Is(model.RoleAdmin):
		return outgoing{text: service.ErrorMessage(service.ErrForbidden)}
	case uid == "":
		return outgoing{text: service.ErrorMessage(service.ErrNoUserSelected)}
	case uid == sess.UID():
		return outgoing{text: service.ErrorMessage(service.ErrSelfDelete)}
	}

	target := c.rosterProfile(uid)
	if target == nil {
		return outgoing{text: service.ErrorMessage(service.ErrNoUserSelected)}
	}

	c.state.Begin(chatID, state.StateConfirmDelete, map[string]string{state.KeyDeleteUID: uid})
	return outgoing{
		text:   formatting.FormatDeleteConfirmation(target),
		markup: keyboard.DeleteConfirmation(uid).Build(),
	}
}

// rosterProfile finds uid in the admin roster as currently shown
func (c *BotController) rosterProfile(uid string) *model.UserProfile {
	u := c.views.Current(subscription.PurposeAdminRoster)
	v, ok := u.View.(view.AdminView)
	if !ok {
		return nil
	}
	for _, p := range v.Users {
		if p.UID == uid {
			return p
		}
	}
	return nil
}

func (c *BotController) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	callbacks.Route(ctx, b, update.CallbackQuery, c, c.logger)
}

func (c *BotController) AcceptBooking(ctx context.Context, chatID int64, bookingID string) string {
	return c.changeStatus(ctx, chatID, bookingID, model.BookingStatusAccepted)
}

func (c *BotController) RejectBooking(ctx context.Context, chatID int64, bookingID string) string {
	return c.changeStatus(ctx, chatID, bookingID, model.BookingStatusRejected)
}

func (c *BotController) changeStatus(ctx context.Context, chatID int64, bookingID string, status model.BookingStatus) string {
	if chatID != c.chatID {
		return service.ErrorMessage(service.ErrForbidden)
	}

	err := c.bookings.ChangeStatus(ctx, c.sessions.Session(), bookingID, string(status))
	if err != nil {
		c.logger.Warn("Booking status change failed",
			zap.String("booking", bookingID),
			zap.Error(err))
		return service.ErrorMessage(err)
	}

	display := formatting.GetBookingStatusDisplay(status)
	return display.Emoji + " Booking " + strings.ToLower(display.Text) + "."
}

// ConfirmDelete is the second click; it deletes only the uid the prompt named
func (c *BotController) ConfirmDelete(ctx context.Context, chatID int64, uid string) string {
	if chatID != c.chatID {
		return service.ErrorMessage(service.ErrForbidden)
	}

	pending, ok := c.state.Take(chatID, state.StateConfirmDelete, state.KeyDeleteUID)
	if !ok || pending != uid {
		return service.ErrorMessage(service.ErrConfirmationStale)
	}

	if err := c.admin.DeleteUser(ctx, c.sessions.Session(), uid); err != nil {
		c.logger.Warn("User deletion failed", zap.String("uid", uid), zap.Error(err))
		return service.ErrorMessage(err)
	}
	return "✅ User deleted."
}

func (c *BotController) CancelDelete(ctx context.Context, chatID int64) string {
	c.state.ClearState(chatID)
	return "↩️ Deletion cancelled."
}
