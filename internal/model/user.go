package model

import (
	"strings"
	"time"
)

// User is a registered bank customer. Password is stored as supplied.
type User struct {
	ID        string
	Username  string
	Password  string
	FullName  string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// ProfileUpdate carries optional replacements; blank fields keep the current value.
type ProfileUpdate struct {
	FullName string
	Email    string
	Phone    string
}

// Apply copies every non-blank field of p onto u and reports whether
// anything changed.
func (u *User) Apply(p ProfileUpdate) bool {
	changed := false
	set := func(dst *string, v string) {
		v = strings.TrimSpace(v)
		if v != "" && v != *dst {
			*dst = v
			changed = true
		}
	}
	set(&u.FullName, p.FullName)
	set(&u.Email, p.Email)
	set(&u.Phone, p.Phone)
	return changed
}

// Session identifies the authenticated user on whose behalf ledger calls run.
type Session struct {
	UserID    string
	Username  string
	FullName  string
	StartedAt time.Time
}
