package model

import "strings"

type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

// ParseRole converts a stored role value. Empty input falls back to student;
// the second result is false for values that are not a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.TrimSpace(s)) {
	case RoleStudent, "":
		return RoleStudent, true
	case RoleLecturer:
		return RoleLecturer, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return RoleStudent, false
	}
}

// IsStaff reports whether the role may be created through the staff form
func (r Role) IsStaff() bool {
	return r == RoleLecturer || r == RoleAdmin
}

// Title returns the role with an upper-case first letter ("Lecturer")
func (r Role) Title() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}
