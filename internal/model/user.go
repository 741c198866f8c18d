// Package model defines the records shared by both persistence backends,
// the sync engine and the workflow controller.
//
// Records are flat structs whose JSON form is the exact on-disk/on-wire
// layout: the local blob and the remote hashes both store these encodings
// directly, so renaming a json tag is a breaking storage change.
package model

import "github.com/rs/xid"

// Role separates students from the single admin identity.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleBuilder Role = "BUILDER" // the admin
)

// Builder identity. The admin is derived from the credential pair at
// login and is never stored in the users collection.
const (
	BuilderID    = "builder-1"
	BuilderName  = "System Builder"
	BuilderPhone = "0000000000"
)

// User is a registered account.
//
// ID and Role are fixed at creation. FullName and PhoneNumber are copied
// onto every Request the user owns (see Request.UserName/UserPhone), so an
// edit to either must be followed by a denormalization sync.
type User struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Role        Role   `json:"role"`
}

// IsAdmin reports whether u is the Builder. A nil user is never admin.
func IsAdmin(u *User) bool {
	return u != nil && u.Role == RoleBuilder
}

// BuilderIdentity returns the synthetic admin user.
func BuilderIdentity() User {
	return User{
		ID:          BuilderID,
		FullName:    BuilderName,
		PhoneNumber: BuilderPhone,
		Role:        RoleBuilder,
	}
}

// NewID returns a new record identifier.
//
// xid values are 20 URL-safe characters and sort by creation time, which
// keeps ids stable as map keys in both stores and readable in logs.
func NewID() string {
	return xid.New().String()
}
