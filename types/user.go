package types

import "time"

// User represents an account in the catalog.
// It contains identity and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. It is unique across all users
	// and doubles as the login name.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AccessToken is the server-side record of an issued bearer token.
// A token is accepted only while its record exists; deleting the record
// revokes the token.
type AccessToken struct {
	// ID is the token identifier, carried in the JWT "jti" claim.
	ID string `json:"id" db:"id"`

	// UserID identifies the user the token was issued to.
	UserID int `json:"user_id" db:"user_id"`

	// Name is a free-form label for the token (e.g., "auth-token").
	Name string `json:"name" db:"name"`

	// CreatedAt is the timestamp when the token was issued.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// ExpiresAt is the optional expiry of the token. A nil value means the
	// token lives until it is revoked.
	ExpiresAt *time.Time `json:"expires_at" db:"expires_at"`
}
