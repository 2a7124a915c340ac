package service

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/identity"
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/repository"
)

var (
	ErrNotSignedIn       = errors.New("not signed in")
	ErrForbidden         = errors.New("action not allowed for role")
	ErrSelfDelete        = errors.New("admin cannot delete own account")
	ErrInvalidStaffRole  = errors.New("staff role must be lecturer or admin")
	ErrInvalidStatus     = errors.New("invalid booking status")
	ErrNotAddressed      = errors.New("booking is addressed to another lecturer")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrPasswordTooShort  = errors.New("password too short")
	ErrMissingFields     = errors.New("required fields missing")
	ErrNoUserSelected    = errors.New("no user selected")
	ErrConfirmationStale = errors.New("confirmation does not match")
)

// ErrorMessage returns the text shown to the user for err
func ErrorMessage(err error) string {
	var (
		malformed  *model.MalformedDataError
		validation validator.ValidationErrors
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &malformed):
		return "❌ " + malformed.Error()
	case errors.Is(err, docstore.ErrPermissionDenied):
		return "❌ You do not have permission to do that."
	case errors.Is(err, ErrNotSignedIn):
		return "❌ No user data found. Please log in again."
	case errors.Is(err, ErrForbidden):
		return "❌ This action is not available for your role."
	case errors.Is(err, ErrSelfDelete):
		return "❌ You cannot delete your own account."
	case errors.Is(err, ErrInvalidStaffRole):
		return "❌ Staff role must be lecturer or admin."
	case errors.Is(err, ErrInvalidStatus):
		return "❌ Status must be accepted or rejected."
	case errors.Is(err, ErrNotAddressed):
		return "❌ This booking belongs to another lecturer."
	case errors.Is(err, ErrBookingNotFound):
		return "❌ Booking not found."
	case errors.Is(err, repository.ErrInvalidTransition):
		return "❌ This booking has already been decided."
	case errors.Is(err, ErrPasswordMismatch):
		return "❌ Passwords do not match."
	case errors.Is(err, ErrPasswordTooShort):
		return "❌ Password must be at least 6 characters long."
	case errors.Is(err, ErrNoUserSelected):
		return "❌ Please select a user first."
	case errors.Is(err, ErrConfirmationStale):
		return "❌ Nothing to confirm. Start the deletion again."
	case errors.Is(err, docstore.ErrNotFound):
		return "❌ User profile not found."
	case errors.Is(err, model.ErrMalformedDocument):
		return "❌ The stored record is damaged."
	case errors.Is(err, ErrMissingFields), errors.As(err, &validation):
		return "❌ Please fill in all required fields."
	default:
		if _, ok := identity.CodeOf(err); ok {
			return "❌ " + identity.FriendlyMessage(err, identity.DefaultLoginMessage)
		}
		return "❌ An error occurred. Please try again."
	}
}
