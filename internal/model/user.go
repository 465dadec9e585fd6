package model

import "time"

// User represents an application user record as stored in the
// `users` table.  Credits is a cached copy of the sum of the user's
// credit transactions; it is only ever written in the same database
// transaction as the ledger row that changes it.
//
// Fields:
//
//	ID                 – primary key identifier of the user.
//	Email              – unique email address.
//	Name               – display name shown to counterparts.
//	PasswordHash       – bcrypt hashed password.
//	Role               – USER or ADMIN.
//	Credits            – cached credit balance.
//	EmailNotifications – whether notification emails are wanted.
//	IsActive           – whether the account is active.
type User struct {
	ID                 uint64    `json:"id"`                  // users.id
	Email              string    `json:"email"`               // users.email
	Name               string    `json:"name"`                // users.name
	PasswordHash       string    `json:"-"`                   // users.password_hash
	Role               string    `json:"role"`                // users.role
	Credits            int64     `json:"credits"`             // users.credits
	EmailNotifications bool      `json:"email_notifications"` // users.email_notifications
	IsActive           bool      `json:"is_active"`           // users.is_active
	CreatedAt          time.Time `json:"created_at"`          // users.created_at
	UpdatedAt          time.Time `json:"updated_at"`          // users.updated_at
}

// Roles accepted by the role middleware.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// RefreshToken models an entry in the `refresh_tokens` table.  The
// plain token is never stored; only its SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
