package models

import "time"

// RefreshToken is one persisted refresh credential. Only the sha256 hash of
// the token string is stored; the raw value is handed out exactly once.
type RefreshToken struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"userId"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
