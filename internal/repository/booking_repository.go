package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/model"
)

// ErrInvalidTransition is returned when a booking was already decided
var ErrInvalidTransition = errors.New("booking already decided")

type BookingRepository struct {
	store docstore.Store
	appID string
	now   func() time.Time
}

func NewBookingRepository(store docstore.Store, appID string) *BookingRepository {
	return &BookingRepository{store: store, appID: appID, now: time.Now}
}

// Create stores a new pending booking. An empty lecturer means unassigned.
func (r *BookingRepository) Create(ctx context.Context, studentUID, lecturerUID, moduleName, preferredTime string) (*model.Booking, error) {
	if lecturerUID == "" {
		lecturerUID = model.UnassignedLecturer
	}

	booking := &model.Booking{
		ID:            uuid.NewString(),
		StudentUID:    studentUID,
		LecturerUID:   lecturerUID,
		ModuleName:    moduleName,
		PreferredTime: preferredTime,
		Status:        model.BookingStatusPending,
		CreatedAt:     r.now().UTC(),
	}

	fields, err := docstore.EncodeFields(booking)
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	path := docstore.BookingsPath(r.appID).Child(booking.ID)
	if err := r.store.Set(ctx, path, fields, false); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	return booking, nil
}

// Get returns the booking, nil when absent
func (r *BookingRepository) Get(ctx context.Context, id string) (*model.Booking, error) {
	doc, err := r.store.Get(ctx, docstore.BookingsPath(r.appID).Child(id))
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if doc == nil {
		return nil, nil
	}

	booking, err := model.DecodeBooking(id, doc.Data.Bytes())
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return booking, nil
}

// UpdateStatus moves a pending booking to status and stamps updatedAt.
// The pending check and the write are one store operation, so of two
// lecturers deciding at the same moment only the first succeeds.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status model.BookingStatus) error {
	fields := docstore.Fields{}
	if err := fields.Set("status", status); err != nil {
		return err
	}
	if err := fields.Set("updatedAt", r.now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	check := func(doc *docstore.Document) error {
		booking, err := model.DecodeBooking(id, doc.Data.Bytes())
		if err != nil {
			return err
		}
		if !booking.CanTransition(status) {
			return fmt.Errorf("from %s: %w", booking.Status, ErrInvalidTransition)
		}
		return nil
	}

	if err := r.store.UpdateIf(ctx, docstore.BookingsPath(r.appID).Child(id), check, fields); err != nil {
		return fmt.Errorf("update booking %s: %w", id, err)
	}
	return nil
}

// CollectionQuery watches all bookings
func (r *BookingRepository) CollectionQuery() docstore.Query {
	return docstore.CollectionQuery(docstore.BookingsPath(r.appID))
}
