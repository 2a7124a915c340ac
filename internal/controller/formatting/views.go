// Package formatting renders views and session events as Telegram HTML text.
// Renderers are pure; they only read the values they are given.
package formatting

import (
	"fmt"
	"html"
	"strings"

	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/subscription"
	"github.com/ST10104037/hippocampus-site/internal/view"
)

func escape(s string) string {
	return html.EscapeString(s)
}

// PurposeTitle is the heading of a purpose's message
func PurposeTitle(p subscription.Purpose) string {
	switch p {
	case subscription.PurposeAdminRoster:
		return "👥 All users"
	case subscription.PurposeMyProfile:
		return "🎓 My grades"
	case subscription.PurposeLecturerBookings, subscription.PurposeLecturerRoster:
		return "🧑‍🏫 Lecturer dashboard"
	default:
		return string(p)
	}
}

// FormatUpdate renders a view update. Non-ready states render a status line.
func FormatUpdate(u view.Update) string {
	header := "<b>" + escape(PurposeTitle(u.Purpose)) + "</b>\n\n"

	if u.State != view.StateReady || u.View == nil {
		display := GetViewStateDisplay(u.State)
		text := header + display.Emoji + " " + display.Text
		if u.State == view.StateError && u.Err != nil {
			text += "\n" + escape(u.Err.Error())
		}
		return text
	}

	switch v := u.View.(type) {
	case view.AdminView:
		return header + FormatAdminView(v)
	case view.StudentView:
		return header + FormatStudentView(v)
	case view.LecturerView:
		return header + FormatLecturerView(v)
	default:
		return header + "❓ Unknown view"
	}
}

func FormatAdminView(v view.AdminView) string {
	if len(v.Users) == 0 {
		return "📭 No other users yet."
	}

	cards := make([]string, 0, len(v.Users))
	for i, u := range v.Users {
		cards = append(cards, fmt.Sprintf("%d. %s", i+1, FormatUserCard(u)))
	}
	return strings.Join(cards, "\n\n")
}

// FormatUserCard renders a profile as a short card
func FormatUserCard(p *model.UserProfile) string {
	var sb strings.Builder

	name := p.FullName()
	if name == "" {
		name = p.Email
	}
	fmt.Fprintf(&sb, "<b>%s</b> (%s)\n", escape(name), p.Role.Title())
	fmt.Fprintf(&sb, "📧 %s\n", escape(orDash(p.Email)))
	fmt.Fprintf(&sb, "📞 %s\n", escape(orDash(p.Phone)))
	if p.Role == model.RoleStudent {
		fmt.Fprintf(&sb, "🆔 %s\n", escape(orDash(p.StudentNumber)))
		lecturer := "Not assigned"
		if p.HasLecturer() {
			lecturer = p.LecturerUID
		}
		fmt.Fprintf(&sb, "🧑‍🏫 %s\n", escape(lecturer))
	}
	fmt.Fprintf(&sb, "<code>%s</code>", escape(p.UID))
	return sb.String()
}

func FormatStudentView(v view.StudentView) string {
	if v.NoProfile || v.Profile == nil {
		return "📭 Your profile has not been set up yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👋 %s\n", escape(v.Profile.FullName()))
	if v.Profile.StudentNumber != "" {
		fmt.Fprintf(&sb, "🆔 %s\n", escape(v.Profile.StudentNumber))
	}
	sb.WriteString("\n")
	sb.WriteString(FormatGradeTable(v.Grades))
	return sb.String()
}

func FormatLecturerView(v view.LecturerView) string {
	var sb strings.Builder

	sb.WriteString(FormatBookingList(v))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "👥 <b>My students</b>: %s\n", CountStudents(len(v.AssignedStudents)))
	for _, s := range v.AssignedStudents {
		fmt.Fprintf(&sb, "• %s\n", escape(displayName(s)))
	}
	sb.WriteString("\n")
	sb.WriteString(FormatBands("Assignment 1", v.DistributionAss1))
	sb.WriteString("\n\n")
	sb.WriteString(FormatBands("Exam", v.DistributionExam))
	return sb.String()
}

// FormatBookingList renders the bookings of a lecturer view, oldest first
func FormatBookingList(v view.LecturerView) string {
	if len(v.Bookings) == 0 {
		return "📅 No booking requests."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 <b>Booking requests</b>: %s\n", CountBookings(len(v.Bookings)))
	for i, b := range v.Bookings {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, FormatBooking(b, v.StudentName(b.StudentUID)))
	}
	return sb.String()
}

// FormatBooking renders one booking with its status
func FormatBooking(b *model.Booking, studentName string) string {
	display := GetBookingStatusDisplay(b.Status)
	return fmt.Sprintf("%s <b>%s</b>\n   👤 %s\n   🕒 %s\n   📊 %s",
		display.Emoji,
		escape(b.ModuleName),
		escape(studentName),
		escape(b.PreferredTime),
		display.Text)
}

// FormatSession renders a sign-in or sign-out
func FormatSession(ev view.SessionEvent) string {
	if !ev.SignedIn {
		return "👋 Signed out."
	}

	text := fmt.Sprintf("🔐 Signed in as <b>%s</b> (%s)", escape(ev.Name), ev.Role.Title())
	if ev.Synthesized {
		text += "\nℹ️ No profile found, showing the default student profile."
	}
	return text
}

// FormatDeleteConfirmation asks to confirm the deletion of a user
// FormatLecturers lists lecturers with the uid used to assign students
func FormatLecturers(lecturers []*model.UserProfile) string {
	if len(lecturers) == 0 {
		return "👨‍🏫 No lecturers yet."
	}

	lines := make([]string, 0, len(lecturers)+1)
	lines = append(lines, "👨‍🏫 <b>Lecturers</b>")
	for _, l := range lecturers {
		lines = append(lines, fmt.Sprintf("• %s <code>%s</code>", escape(displayName(l)), escape(l.UID)))
	}
	return strings.Join(lines, "\n")
}

func FormatDeleteConfirmation(p *model.UserProfile) string {
	return fmt.Sprintf("⚠️ Delete this user?\n\n%s\n\nThe sign-in account is kept.", FormatUserCard(p))
}

func displayName(p *model.UserProfile) string {
	if name := p.FullName(); name != "" {
		return name
	}
	return p.UID
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
