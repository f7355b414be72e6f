package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

var (
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Claims is the self-contained payload of an access token. Validity is
// decided purely by signature and expiry; no store lookup happens on verify.
type Claims struct {
	UserID int    `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// refreshClaims is the signed payload of a refresh token. The jti makes
// every issued value unique so the stored hash can be a single-use key.
type refreshClaims struct {
	UserID int `json:"uid"`
	jwt.RegisteredClaims
}

// TokenPair is one issued access + refresh credential set.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenService issues, verifies and rotates the service's credentials.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	tokens        repositories.TokenRepository
	users         repositories.UserRepository
}

// NewTokenService constructs a TokenService around the credential store.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, tokens repositories.TokenRepository, users repositories.UserRepository) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		tokens:        tokens,
		users:         users,
	}
}

// IssuePair mints a fresh access token and a refresh token, recording the
// refresh token's hash in the store.
func (s *TokenService) IssuePair(ctx context.Context, user models.User) (TokenPair, error) {
	now := time.Now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
	accessToken, err := access.SignedString(s.accessSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	expiresAt := now.Add(s.refreshTTL)
	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	refreshToken, err := refresh.SignedString(s.refreshSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.tokens.Store(ctx, user.ID, hashToken(refreshToken), expiresAt); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// VerifyAccessToken checks signature and expiry and returns the claims.
func (s *TokenService) VerifyAccessToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.accessSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Rotate redeems a presented refresh token for a new pair. The presented
// value must be cryptographically valid and still present (unexpired) in the
// store; redemption deletes the record, so a replayed value always fails no
// matter how the concurrent attempts interleave.
func (s *TokenService) Rotate(ctx context.Context, presented string) (TokenPair, error) {
	claims, err := s.parseRefreshToken(presented)
	if err != nil {
		return TokenPair{}, err
	}

	if _, err := s.tokens.Redeem(ctx, hashToken(presented), claims.UserID); err != nil {
		if errors.Is(err, repositories.ErrTokenNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("redeem refresh token: %w", err)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	return s.IssuePair(ctx, user)
}

// Revoke drops the store record for a refresh token. Unknown values are
// ignored so logout is idempotent.
func (s *TokenService) Revoke(ctx context.Context, presented string) error {
	return s.tokens.DeleteByHash(ctx, hashToken(presented))
}

// SweepExpired opportunistically clears a user's expired refresh records.
func (s *TokenService) SweepExpired(ctx context.Context, userID int) error {
	return s.tokens.DeleteExpiredForUser(ctx, userID)
}

func (s *TokenService) parseRefreshToken(tokenStr string) (*refreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &refreshClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.refreshSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*refreshClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
