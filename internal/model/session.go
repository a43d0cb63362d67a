package model

import (
	"time"

	"github.com/google/uuid"
)

// Session binds a user to its current access/refresh token pair. Tokens are
// owned by the session: deleting a session deletes both.
type Session struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// AccessToken is a short-lived request credential. Only the sha256 hash of
// the opaque token is stored; the raw value is returned once at issuance.
type AccessToken struct {
	TokenHash string    `db:"token_hash" json:"-"`
	SessionID uuid.UUID `db:"session_id" json:"sessionId"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

func (t *AccessToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// RefreshToken mints a new access/refresh pair and is rotated (replaced) on
// every use. At most one is live per session.
type RefreshToken struct {
	TokenHash string    `db:"token_hash" json:"-"`
	SessionID uuid.UUID `db:"session_id" json:"sessionId"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IssuedToken pairs a raw token value with its expiry for handing outward.
// The raw value never touches storage.
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Credentials is the bundle returned by login and refresh.
type Credentials struct {
	SessionID    uuid.UUID   `json:"sessionId"`
	User         *User       `json:"user"`
	AccessToken  IssuedToken `json:"accessToken"`
	RefreshToken IssuedToken `json:"refreshToken"`
}
