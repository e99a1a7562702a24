// Package model defines the data structures used throughout the application.
package model

import "strings"

// User represents a signed-in account.
//
// The primary key is the email address verified by the identity provider, so
// there is no separate internal ID. TimeZone is an IANA name ("US/Eastern")
// used to present due dates in the user's local time.
type User struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	TimeZone  string `json:"timeZone"`
}

// ProfileComplete reports whether both names have been filled in.
// Users with an incomplete profile are sent to their account settings first.
func (u *User) ProfileComplete() bool {
	return strings.TrimSpace(u.FirstName) != "" && strings.TrimSpace(u.LastName) != ""
}
