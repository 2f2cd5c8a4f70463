package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authcore/internal/models"
)

// refreshTokenBytes of entropy per refresh token. Refresh tokens are
// opaque; validity lives entirely in the store.
const refreshTokenBytes = 64

// AccessClaims are the claims carried by a signed access token. The
// security stamp lets the verifying boundary reject tokens issued before
// the user's last credential change.
type AccessClaims struct {
	Email         string   `json:"email"`
	Roles         []string `json:"roles,omitempty"`
	SecurityStamp string   `json:"sst,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager mints access and refresh tokens. Access tokens are signed
// HS256 JWTs; refresh tokens are random opaque strings.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// AccessTokenTTL returns the configured access token lifetime.
func (tm *TokenManager) AccessTokenTTL() time.Duration { return tm.accessTTL }

// RefreshTokenTTL returns the configured refresh token lifetime.
func (tm *TokenManager) RefreshTokenTTL() time.Duration { return tm.refreshTTL }

// GenerateAccessToken creates a short-lived signed token embedding the
// user's id, email, security stamp, and one claim entry per role.
func (tm *TokenManager) GenerateAccessToken(user *models.User, roles []string) (string, error) {
	now := tm.now().UTC()

	claims := &AccessClaims{
		Email:         user.Email,
		Roles:         roles,
		SecurityStamp: user.SecurityStamp,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// GenerateRefreshToken creates an opaque random token. Uniqueness is
// enforced by the store's unique constraint, not assumed here.
func (tm *TokenManager) GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ParseAccessToken verifies signature and time bounds and returns the
// claims. Used by the HTTP boundary, not by the auth core.
func (tm *TokenManager) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return tm.now() }))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, models.ErrUnauthorized
	}
	return claims, nil
}
