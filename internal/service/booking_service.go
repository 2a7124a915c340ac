package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/repository"
	"github.com/ST10104037/hippocampus-site/internal/session"
)

type BookingRequest struct {
	ModuleName    string `validate:"required"`
	PreferredTime string `validate:"required"`
}

type BookingService struct {
	bookingRepo *repository.BookingRepository
	logger      *zap.Logger
}

func NewBookingService(bookingRepo *repository.BookingRepository, logger *zap.Logger) *BookingService {
	return &BookingService{
		bookingRepo: bookingRepo,
		logger:      logger,
	}
}

// RequestBooking creates a pending booking for the signed-in student,
// addressed to the student's lecturer or unassigned
func (s *BookingService) RequestBooking(ctx context.Context, sess *session.Context, req BookingRequest) (*model.Booking, error) {
	if err := requireRole(sess, model.RoleStudent); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	lecturer := model.UnassignedLecturer
	if sess.Profile != nil && sess.Profile.HasLecturer() {
		lecturer = sess.Profile.LecturerUID
	}

	booking, err := s.bookingRepo.Create(ctx, sess.UID(), lecturer, req.ModuleName, req.PreferredTime)
	if err != nil {
		return nil, err
	}

	s.logger.Info("📅 Booking requested",
		zap.String("booking", booking.ID),
		zap.String("student", sess.UID()),
		zap.String("lecturer", lecturer))
	return booking, nil
}

// ChangeStatus accepts or rejects a pending booking addressed to the
// signed-in lecturer or unassigned
func (s *BookingService) ChangeStatus(ctx context.Context, sess *session.Context, bookingID, status string) error {
	if err := requireRole(sess, model.RoleLecturer); err != nil {
		return err
	}

	newStatus, err := model.ParseBookingStatus(status)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}

	booking, err := s.bookingRepo.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking == nil {
		return fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
	}
	if !booking.IsFor(sess.UID()) {
		return ErrNotAddressed
	}

	if err := s.bookingRepo.UpdateStatus(ctx, bookingID, newStatus); err != nil {
		return err
	}

	s.logger.Info("Booking status changed",
		zap.String("booking", bookingID),
		zap.String("lecturer", sess.UID()),
		zap.String("status", string(newStatus)))
	return nil
}
