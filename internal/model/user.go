package model

import (
	"strings"
	"time"
)

// Role is the access level of a user inside the shop.  It is stored as
// an upper-case string in users.role and role_history.role and is also
// carried in the "role" claim of gateway tokens.
type Role string

const (
	RoleCustomer      Role = "CUSTOMER"
	RoleEmployee      Role = "EMPLOYEE"
	RoleAdministrator Role = "ADMINISTRATOR"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleEmployee, RoleAdministrator:
		return true
	}
	return false
}

// Staff reports whether r may act on behalf of the shop.
func (r Role) Staff() bool { return r == RoleEmployee || r == RoleAdministrator }

// ParseRole normalises s and returns the matching role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// User represents a row of the `users` table.  The primary key is the
// identifier assigned by the chat platform, so it is a string rather
// than an auto-increment number.  Users are never deleted.
//
// Fields:
//
//	ID               – platform user id (users.user_id).
//	Name             – display name.
//	RegistrationDate – first contact timestamp (UTC).
//	Phone            – unique mobile phone, nil until collected.
//	BirthDate        – optional birth date.
//	Role             – CUSTOMER, EMPLOYEE or ADMINISTRATOR.
type User struct {
	ID               string     `db:"user_id" json:"user_id"`
	Name             string     `db:"name" json:"name"`
	RegistrationDate time.Time  `db:"registration_date" json:"registration_date"`
	Phone            *string    `db:"mobile_phone" json:"phone,omitempty"`
	BirthDate        *time.Time `db:"birthday_date" json:"birth_date,omitempty"`
	Role             Role       `db:"role" json:"role"`
}

// PhoneOrEmpty returns the phone number or "" when it is not known.
func (u User) PhoneOrEmpty() string {
	if u.Phone == nil {
		return ""
	}
	return *u.Phone
}

// RoleHistory is an immutable audit entry written every time an
// administrator changes somebody's role.
type RoleHistory struct {
	ID           uint64    `db:"id" json:"id"`
	AdminID      string    `db:"admin_id" json:"admin_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Role         Role      `db:"role" json:"role"`
	AssignedDate time.Time `db:"assigned_date" json:"assigned_date"`
}
