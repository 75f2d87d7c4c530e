package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer = "mcp-rbac"

	// Type discriminators keep a leaked refresh token from being replayed
	// as an access token: both kinds verify against the same secret, so the
	// claim is the only gate.
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	DefaultAccessTTL  = 60 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the signed payload carried by access and refresh tokens.
type Claims struct {
	Username  string   `json:"username,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"type"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies signed tokens. Verification is pure and safe
// for concurrent use.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption configures Tokens.
type TokenOption func(*Tokens)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.refreshTTL = ttl
		}
	}
}

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(t *Tokens) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokens constructs a token service signing with the given secret.
func NewTokens(secret string, opts ...TokenOption) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	t := &Tokens{
		secret:     []byte(secret),
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// AccessTTL returns the configured access token lifetime.
func (t *Tokens) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (t *Tokens) RefreshTTL() time.Duration { return t.refreshTTL }

// CreateAccessToken signs an access token for the user and roles.
func (t *Tokens) CreateAccessToken(userID, username string, roles []string) (string, error) {
	return t.sign(userID, username, roles, tokenTypeAccess, t.accessTTL)
}

// CreateRefreshToken signs a refresh token carrying only the subject id.
func (t *Tokens) CreateRefreshToken(userID string) (string, error) {
	return t.sign(userID, "", nil, tokenTypeRefresh, t.refreshTTL)
}

func (t *Tokens) sign(userID, username string, roles []string, tokenType string, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("userID is required")
	}
	now := t.now().UTC()
	claims := Claims{
		Username:  username,
		Roles:     roles,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies signature and expiry and returns the claims. Any
// failure collapses into ErrInvalidToken.
func (t *Tokens) Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccessToken decodes the token and requires the access type tag.
// A mismatch yields (nil, false) so callers treat it as unauthenticated,
// not as a hard error.
func (t *Tokens) VerifyAccessToken(token string) (*Claims, bool) {
	return t.verifyTyped(token, tokenTypeAccess)
}

// VerifyRefreshToken decodes the token and requires the refresh type tag.
func (t *Tokens) VerifyRefreshToken(token string) (*Claims, bool) {
	return t.verifyTyped(token, tokenTypeRefresh)
}

func (t *Tokens) verifyTyped(token, wantType string) (*Claims, bool) {
	claims, err := t.Decode(token)
	if err != nil {
		return nil, false
	}
	if claims.TokenType != wantType {
		return nil, false
	}
	return claims, true
}

// CreateTokenPair mints matching access and refresh tokens.
func (t *Tokens) CreateTokenPair(userID, username string, roles []string) (TokenPair, error) {
	access, err := t.CreateAccessToken(userID, username, roles)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.CreateRefreshToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(t.accessTTL.Seconds()),
	}, nil
}
