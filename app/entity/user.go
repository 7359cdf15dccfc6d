package entity

import (
	"database/sql"
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is an account row. PasswordHash is null for federation-only
// accounts; every account has at least one of password hash / firebase uid.
type User struct {
	ID           uint64
	Email        string
	PasswordHash sql.NullString
	Role         string
	Active       bool

	FirstName string
	LastName  string
	Phone     sql.NullString

	Street       sql.NullString
	Number       sql.NullString
	City         sql.NullString
	Province     sql.NullString
	Country      sql.NullString
	PostalCode   sql.NullString

	FirebaseUID sql.NullString
	Provider    sql.NullString
	DisplayName sql.NullString

	TermsAccepted   bool
	TermsAcceptedAt sql.NullTime

	LastActivityAt sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasPassword reports whether the account can authenticate with credentials.
func (u *User) HasPassword() bool {
	return u.PasswordHash.Valid && u.PasswordHash.String != ""
}

// ResetToken is a single-use password recovery code. The code column carries
// a unique index while the row exists; expired rows are purged by the
// sweeper regardless of used.
type ResetToken struct {
	ID        uint64
	Code      string
	Email     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
