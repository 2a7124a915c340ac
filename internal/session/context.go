// Package session drives what the dashboard shows for the signed-in user:
// it reacts to sign-in and sign-out and opens the role's subscriptions.
package session

import (
	"fmt"
	"time"

	"github.com/ST10104037/hippocampus-site/internal/identity"
	"github.com/ST10104037/hippocampus-site/internal/model"
)

// Context is the signed-in session. It is passed explicitly to whatever
// acts on behalf of the user.
type Context struct {
	Identity identity.Identity
	Profile  *model.UserProfile
	Role     model.Role
	// Synthesized is true when the user had no role document and a default
	// student profile was assumed
	Synthesized bool
	LoginAt     time.Time
}

func (c *Context) UID() string {
	return c.Identity.UID
}

func (c *Context) Is(role model.Role) bool {
	return c != nil && c.Role == role
}

func (c *Context) clone() *Context {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Profile != nil {
		p := *c.Profile
		cp.Profile = &p
	}
	return &cp
}

type State int

const (
	StateLoggedOut State = iota
	StateAuthenticating
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateAuthenticating:
		return "authenticating"
	case StateLoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

// RolePolicy decides whether a role change made while signed in takes
// effect immediately or at the next sign-in.
type RolePolicy string

const (
	// RoleFixed keeps the role read at sign-in for the whole session
	RoleFixed RolePolicy = "fixed"
	// RoleLive watches the user's own role document and re-subscribes on change
	RoleLive RolePolicy = "live"
)

func ParseRolePolicy(s string) (RolePolicy, error) {
	switch RolePolicy(s) {
	case RoleFixed, "":
		return RoleFixed, nil
	case RoleLive:
		return RoleLive, nil
	default:
		return "", fmt.Errorf("unknown role policy %q", s)
	}
}
