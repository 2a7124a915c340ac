// Package view turns subscription snapshots into the role-specific views
// rendering consumes.
package view

import (
	"time"

	"github.com/ST10104037/hippocampus-site/internal/grading"
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/subscription"
)

type State int

const (
	StateNoData State = iota
	StateLoading
	StateReady
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNoData:
		return "no_data"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// View is one of AdminView, StudentView or LecturerView. Views are values
// rebuilt on every snapshot and never modified after publication.
type View interface {
	viewName() string
}

// AdminView lists every user except the admin looking at it
type AdminView struct {
	Users []*model.UserProfile
}

// StudentView is the signed-in student's profile and grade table
type StudentView struct {
	Profile   *model.UserProfile
	Grades    grading.Result
	NoProfile bool
}

type LecturerView struct {
	// Bookings addressed to the lecturer or unassigned, oldest first
	Bookings         []*model.Booking
	AssignedStudents []*model.UserProfile
	DistributionAss1 grading.Bands
	DistributionExam grading.Bands
	// StudentNames maps booking student uids to display names
	StudentNames map[string]string
}

func (AdminView) viewName() string    { return "admin" }
func (StudentView) viewName() string  { return "student" }
func (LecturerView) viewName() string { return "lecturer" }

// StudentName returns the display name of a booking's student, or the uid
func (v LecturerView) StudentName(uid string) string {
	if name, ok := v.StudentNames[uid]; ok && name != "" {
		return name
	}
	return uid
}

// Update is one state transition of a purpose
type Update struct {
	Purpose subscription.Purpose
	State   State
	View    View
	Err     error
	Gen     uint64
	At      time.Time
}

// SessionEvent tells rendering who is signed in. SignedIn false means signed
// out and leaves the other fields empty.
type SessionEvent struct {
	UID         string
	Email       string
	Role        model.Role
	Name        string
	Synthesized bool
	SignedIn    bool
}

// Sink consumes view updates. Publish runs with the reconciler locked and
// must neither block for long nor call back into the reconciler.
type Sink interface {
	Publish(u Update)
	SessionChanged(ev SessionEvent)
}

// Sinks fans updates out to several sinks
type Sinks []Sink

func (s Sinks) Publish(u Update) {
	for _, sink := range s {
		sink.Publish(u)
	}
}

func (s Sinks) SessionChanged(ev SessionEvent) {
	for _, sink := range s {
		sink.SessionChanged(ev)
	}
}
