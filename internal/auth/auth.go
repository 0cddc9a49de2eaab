package auth

import (
	"errors"
	"strings"
)

// Role is the closed set of roles a profile record may carry.
type Role string

const (
	// RoleNone means the identity has no usable profile role.
	RoleNone     Role = ""
	RoleAdmin    Role = "admin"
	RoleVendor   Role = "vendor"
	RoleCustomer Role = "customer"

	// legacyRoleUser is written by older registration flows and means customer.
	legacyRoleUser = "user"

	MethodPassword = "password"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many failed sign-in attempts")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnknownRole        = errors.New("unknown role")
)

// Roles lists every assignable role in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleVendor, RoleCustomer}
}

// ParseRole normalizes a raw role value read from storage or a form.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleVendor):
		return RoleVendor, nil
	case string(RoleCustomer), legacyRoleUser:
		return RoleCustomer, nil
	case "":
		return RoleNone, nil
	default:
		return RoleNone, ErrUnknownRole
	}
}

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleVendor, RoleCustomer:
		return true
	default:
		return false
	}
}

// Identity is the identity provider's account as seen by the application.
// It grants no privilege on its own.
type Identity struct {
	ID    string
	Email string
}

type Principal struct {
	Identity
	Role   Role
	Method string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
