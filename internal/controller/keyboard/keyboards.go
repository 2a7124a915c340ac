package keyboard

import (
	"github.com/ST10104037/hippocampus-site/internal/controller/callbacks"
	"github.com/ST10104037/hippocampus-site/internal/model"
)

// PendingBookings has an Accept and a Reject button per pending booking
func PendingBookings(bookings []*model.Booking) *Builder {
	b := NewBuilder()
	for _, booking := range bookings {
		if booking.Status != model.BookingStatusPending {
			continue
		}
		b.Row(
			Button("✅ Accept "+booking.ModuleName, callbacks.AcceptBooking.With(booking.ID)),
			Button("🚫 Reject", callbacks.RejectBooking.With(booking.ID)),
		)
	}
	return b
}

// DeleteConfirmation asks for the second click of a user deletion
func DeleteConfirmation(uid string) *Builder {
	return NewBuilder().Row(
		Button("🗑 Delete", callbacks.ConfirmDelete.With(uid)),
		Button("↩️ Cancel", string(callbacks.CancelDelete)),
	)
}
