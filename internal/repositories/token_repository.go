package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrTokenNotFound = errors.New("refresh token not found")

// TokenRepository is the credential store backing refresh token rotation.
type TokenRepository interface {
	Store(ctx context.Context, userID int, tokenHash string, expiresAt time.Time) error
	Redeem(ctx context.Context, tokenHash string, userID int) (models.RefreshToken, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteExpiredForUser(ctx context.Context, userID int) error
}

// TokenRepo is a sqlx implementation of TokenRepository.
type TokenRepo struct {
	db *sqlx.DB
}

// NewTokenRepo constructs a TokenRepo.
func NewTokenRepo(db *sqlx.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// Store persists a hashed refresh token with its expiry.
func (r *TokenRepo) Store(ctx context.Context, userID int, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, tokenHash, expiresAt)
	return err
}

// Redeem consumes a live token record in one statement: the conditional
// DELETE makes the token single-use even under concurrent rotation attempts,
// since only one caller can win the row.
func (r *TokenRepo) Redeem(ctx context.Context, tokenHash string, userID int) (models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.db.QueryRowxContext(ctx, `DELETE FROM refresh_tokens
        WHERE token_hash=$1 AND user_id=$2 AND expires_at > NOW()
        RETURNING id, user_id, token_hash, expires_at, created_at`, tokenHash, userID).
		StructScan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RefreshToken{}, ErrTokenNotFound
	}
	return token, err
}

// DeleteByHash removes a token record if present. Deleting a missing record
// is not an error, so logout stays idempotent.
func (r *TokenRepo) DeleteByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash=$1`, tokenHash)
	return err
}

// DeleteExpiredForUser sweeps expired records for a user. Invoked on login,
// not required for correctness.
func (r *TokenRepo) DeleteExpiredForUser(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id=$1 AND expires_at <= NOW()`, userID)
	return err
}
