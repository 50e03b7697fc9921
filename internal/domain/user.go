// Package domain contains core domain types for the assistant portal.
package domain

import "unicode/utf8"

// DefaultPhotoURL is shown on profiles whose record has no photo.
const DefaultPhotoURL = "https://png.pngtree.com/svg/20170527/e4e70ac79e.svg"

// UserRecord is one entry of the user directory. It is read-only for this service.
type UserRecord struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Rank      string `json:"rank"`
	AllPerm   bool   `json:"all_perm"`
	Photo     string `json:"photo,omitempty"`
}

// DisplayName returns "Last F." as shown in page headers.
func (u *UserRecord) DisplayName() string {
	initial := ""
	if r, size := utf8.DecodeRuneInString(u.FirstName); size > 0 && r != utf8.RuneError {
		initial = string(r)
	}
	return u.LastName + " " + initial + "."
}

// PhotoURL returns the record photo or the default avatar.
func (u *UserRecord) PhotoURL() string {
	if u.Photo != "" {
		return u.Photo
	}
	return DefaultPhotoURL
}
