package domain

import "strings"

type Role string

const (
	RoleGuest        Role = "Guest"
	RoleUser         Role = "User"
	RoleHotelManager Role = "HotelManager"
	RoleAdmin        Role = "Admin"
)

// ParseRole accepts the canonical tags case-insensitively.
func ParseRole(s string) (Role, bool) {
	for _, r := range []Role{RoleGuest, RoleUser, RoleHotelManager, RoleAdmin} {
		if strings.EqualFold(s, string(r)) {
			return r, true
		}
	}
	return "", false
}

func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleUser, RoleHotelManager, RoleAdmin:
		return true
	}
	return false
}

// RoleSet is the capability set of an operation.
type RoleSet []Role

func Roles(rs ...Role) RoleSet { return RoleSet(rs) }

func (s RoleSet) Has(r Role) bool {
	for _, x := range s {
		if x == r {
			return true
		}
	}
	return false
}

// Authorize decides whether caller may invoke an operation gated by required.
// RoleUser in the set admits any authenticated role.
func Authorize(required RoleSet, caller Role) bool {
	if !caller.Valid() {
		return false
	}
	if required.Has(RoleUser) {
		return true
	}
	return required.Has(caller)
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   Role
}
