package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending  BookingStatus = "pending"  // waiting for the lecturer
	BookingStatusAccepted BookingStatus = "accepted" // accepted by the lecturer
	BookingStatusRejected BookingStatus = "rejected" // rejected by the lecturer
)

// ParseBookingStatus accepts only accepted or rejected as a lecturer decision
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case BookingStatusAccepted, BookingStatusRejected:
		return BookingStatus(s), nil
	default:
		return "", fmt.Errorf("invalid booking status %q", s)
	}
}

type Booking struct {
	ID            string        `json:"-"`
	StudentUID    string        `json:"studentUid"`
	LecturerUID   string        `json:"lecturerUid"`
	ModuleName    string        `json:"moduleName"`
	PreferredTime string        `json:"preferredTime"`
	Status        BookingStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     *time.Time    `json:"updatedAt,omitempty"`
}

type bookingDocument struct {
	StudentUID    string `json:"studentUid" validate:"required"`
	LecturerUID   string `json:"lecturerUid"`
	ModuleName    string `json:"moduleName" validate:"required"`
	PreferredTime string `json:"preferredTime"`
	Status        string `json:"status" validate:"required,oneof=pending accepted rejected"`
	CreatedAt     string `json:"createdAt" validate:"required"`
	UpdatedAt     string `json:"updatedAt"`
}

// DecodeBooking parses and validates a stored booking document
func DecodeBooking(id string, data []byte) (*Booking, error) {
	var doc bookingDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	createdAt, err := time.Parse(time.RFC3339, doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: createdAt: %v", ErrMalformedDocument, err)
	}

	booking := &Booking{
		ID:            id,
		StudentUID:    doc.StudentUID,
		LecturerUID:   doc.LecturerUID,
		ModuleName:    doc.ModuleName,
		PreferredTime: doc.PreferredTime,
		Status:        BookingStatus(doc.Status),
		CreatedAt:     createdAt,
	}
	if booking.LecturerUID == "" {
		booking.LecturerUID = UnassignedLecturer
	}

	if doc.UpdatedAt != "" {
		if t, err := time.Parse(time.RFC3339, doc.UpdatedAt); err == nil {
			booking.UpdatedAt = &t
		}
	}

	return booking, nil
}

// CanTransition reports whether the booking may move to status.
// A booking is decided exactly once.
func (b *Booking) CanTransition(status BookingStatus) bool {
	return b.Status == BookingStatusPending &&
		(status == BookingStatusAccepted || status == BookingStatusRejected)
}

// IsFor reports whether a lecturer sees this booking
func (b *Booking) IsFor(lecturerUID string) bool {
	return b.LecturerUID == lecturerUID || b.LecturerUID == UnassignedLecturer
}
