package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UnassignedLecturer is stored in lecturerUid when no lecturer is assigned.
const UnassignedLecturer = "unassigned"

// UserProfile is the role document kept per user.
type UserProfile struct {
	UID           string  `json:"uid" validate:"required"`
	Role          Role    `json:"role"`
	Name          string  `json:"name"`
	Surname       string  `json:"surname"`
	Phone         string  `json:"phone"`
	Email         string  `json:"email" validate:"omitempty,email"`
	StudentNumber string  `json:"studentNumber,omitempty"`
	LecturerUID   string  `json:"lecturerUid,omitempty"`
	MarkingScheme Weights `json:"markingScheme,omitempty"`
	Marks         Weights `json:"marks,omitempty"`
	CreatedAt     string  `json:"createdAt,omitempty"`
}

// profileDocument mirrors UserProfile with the role kept as text so unknown
// roles can be reported instead of silently accepted.
type profileDocument struct {
	UID           string          `json:"uid" validate:"required"`
	Role          string          `json:"role" validate:"omitempty,oneof=student lecturer admin"`
	Name          string          `json:"name"`
	Surname       string          `json:"surname"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email" validate:"omitempty,email"`
	StudentNumber string          `json:"studentNumber"`
	LecturerUID   string          `json:"lecturerUid"`
	MarkingScheme Weights         `json:"markingScheme"`
	Marks         Weights         `json:"marks"`
	CreatedAt     json.RawMessage `json:"createdAt"`
}

// DecodeProfile parses and validates a stored role document.
func DecodeProfile(data []byte) (*UserProfile, error) {
	var doc profileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	role, _ := ParseRole(doc.Role)

	return &UserProfile{
		UID:           doc.UID,
		Role:          role,
		Name:          doc.Name,
		Surname:       doc.Surname,
		Phone:         doc.Phone,
		Email:         doc.Email,
		StudentNumber: doc.StudentNumber,
		LecturerUID:   doc.LecturerUID,
		MarkingScheme: doc.MarkingScheme,
		Marks:         doc.Marks,
		CreatedAt:     createdAtString(doc.CreatedAt),
	}, nil
}

// createdAtString accepts both ISO strings and store timestamps
func createdAtString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

// DefaultProfile is the profile assumed for an identity without a role document.
// It is never persisted.
func DefaultProfile(uid, email string) *UserProfile {
	name := email
	if at := strings.Index(email, "@"); at >= 0 {
		name = email[:at]
	}
	return &UserProfile{
		UID:   uid,
		Role:  RoleStudent,
		Name:  name,
		Email: email,
	}
}

// NewStaffProfile is the document written for an account created by an admin.
func NewStaffProfile(uid, email string, role Role, now time.Time) *UserProfile {
	return &UserProfile{
		UID:       uid,
		Role:      role,
		Name:      "Staff",
		Surname:   string(role),
		Email:     email,
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
	}
}

// FullName joins name and surname
func (p *UserProfile) FullName() string {
	return strings.TrimSpace(p.Name + " " + p.Surname)
}

// HasLecturer reports whether a lecturer is assigned
func (p *UserProfile) HasLecturer() bool {
	return p.LecturerUID != "" && p.LecturerUID != UnassignedLecturer
}

// ProfileUpdate holds the editable fields of a profile. Nil pointers are left
// unchanged. MarkingScheme and Marks carry the raw JSON text from the form.
type ProfileUpdate struct {
	Name          string
	Surname       string
	Phone         string
	StudentNumber *string
	MarkingScheme *string
	Marks         *string
	LecturerUID   *string
}

// HasStudentFields reports whether any student-only field is set
func (u ProfileUpdate) HasStudentFields() bool {
	return u.StudentNumber != nil || u.MarkingScheme != nil || u.Marks != nil || u.LecturerUID != nil
}
