package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service provides authentication, authorization and account lifecycle
// operations on top of a Store. All operations are request-scoped; the
// Store is the only shared mutable state.
type Service struct {
	store  Store
	tokens *Tokens
	mode   string
	now    func() time.Time
}

// Option configures Service behavior.
type Option func(*Service) error

// WithMode sets the enforcement mode (ModeStrict or ModePermissive).
func WithMode(mode string) Option {
	return func(s *Service) error {
		switch mode {
		case "", ModeStrict:
			s.mode = ModeStrict
		case ModePermissive:
			s.mode = ModePermissive
		default:
			return fmt.Errorf("%w: unsupported enforcement mode %q", ErrInvalidInput, mode)
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service.
func NewService(store Store, tokens *Tokens, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	svc := &Service{
		store:  store,
		tokens: tokens,
		mode:   ModeStrict,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Store exposes the backing store for boundary layers (audit, IP gate).
func (s *Service) Store() Store { return s.store }

// Tokens exposes the token service.
func (s *Service) Tokens() *Tokens { return s.tokens }

// RoleNames returns the names of the user's roles.
func (s *Service) RoleNames(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.store.Roles().RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}

// Login verifies credentials and issues a token pair. Unknown username,
// wrong password and inactive account all collapse into ErrUnauthorized
// so callers cannot enumerate accounts.
func (s *Service) Login(ctx context.Context, username, password, clientIP, userAgent string) (TokenPair, *User, error) {
	user, err := s.store.Users().FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return TokenPair{}, nil, ErrUnauthorized
	}
	if err != nil {
		return TokenPair{}, nil, err
	}
	if !user.IsActive {
		return TokenPair{}, nil, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, nil, ErrUnauthorized
	}
	pair, err := s.mintPair(ctx, user, clientIP, userAgent)
	if err != nil {
		return TokenPair{}, nil, err
	}
	_ = s.store.Users().SetLastLogin(ctx, user.ID)
	return pair, user, nil
}

func (s *Service) mintPair(ctx context.Context, user *User, clientIP, userAgent string) (TokenPair, error) {
	roleNames, err := s.RoleNames(ctx, user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	pair, err := s.tokens.CreateTokenPair(user.ID, user.Username, roleNames)
	if err != nil {
		return TokenPair{}, err
	}
	rec := &RefreshToken{
		UserID:    user.ID,
		Token:     pair.RefreshToken,
		ExpiresAt: s.now().UTC().Add(s.tokens.RefreshTTL()),
		IPAddress: clientIP,
		UserAgent: userAgent,
	}
	if err := s.store.RefreshTokens().Create(ctx, rec); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Refresh redeems a refresh token for a fresh pair. The token must carry
// the refresh type tag, verify against the secret, and its persisted
// record must be neither revoked nor expired. The old record is revoked
// on success (rotation).
func (s *Service) Refresh(ctx context.Context, refreshToken, clientIP, userAgent string) (TokenPair, error) {
	claims, ok := s.tokens.VerifyRefreshToken(refreshToken)
	if !ok {
		return TokenPair{}, ErrInvalidToken
	}
	rec, err := s.store.RefreshTokens().FindByToken(ctx, refreshToken)
	if errors.Is(err, ErrNotFound) {
		return TokenPair{}, ErrInvalidToken
	}
	if err != nil {
		return TokenPair{}, err
	}
	if !rec.Valid(s.now()) {
		return TokenPair{}, ErrInvalidToken
	}
	user, err := s.store.Users().Find(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return TokenPair{}, ErrInvalidToken
	}
	if err != nil {
		return TokenPair{}, err
	}
	if !user.IsActive {
		return TokenPair{}, ErrInvalidToken
	}
	if err := s.store.RefreshTokens().Revoke(ctx, rec.ID); err != nil {
		return TokenPair{}, err
	}
	return s.mintPair(ctx, user, clientIP, userAgent)
}

// VerifyRefreshToken reports the claims of a refresh token that is
// signature-valid, type-tagged refresh, and whose persisted record is
// still live. Returns (nil, false) otherwise.
func (s *Service) VerifyRefreshToken(ctx context.Context, refreshToken string) (*Claims, bool) {
	claims, ok := s.tokens.VerifyRefreshToken(refreshToken)
	if !ok {
		return nil, false
	}
	rec, err := s.store.RefreshTokens().FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, false
	}
	if !rec.Valid(s.now()) {
		return nil, false
	}
	return claims, true
}

// Logout revokes all of the user's refresh tokens.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.store.RefreshTokens().RevokeAllForUser(ctx, userID)
}

// RotateAPIKey generates and stores a fresh API key for the user.
func (s *Service) RotateAPIKey(ctx context.Context, userID string) (string, error) {
	if _, err := s.store.Users().Find(ctx, userID); err != nil {
		return "", err
	}
	key, err := GenerateAPIKey()
	if err != nil {
		return "", err
	}
	if err := s.store.Users().SetAPIKey(ctx, userID, key); err != nil {
		return "", err
	}
	return key, nil
}

// RevokeAPIKey clears the user's API key.
func (s *Service) RevokeAPIKey(ctx context.Context, userID string) error {
	if _, err := s.store.Users().Find(ctx, userID); err != nil {
		return err
	}
	return s.store.Users().SetAPIKey(ctx, userID, "")
}

// CreateUser hashes the password and persists a new account.
func (s *Service) CreateUser(ctx context.Context, username, email, password, fullName string) (*User, error) {
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		FullName:     fullName,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes the account. Refresh tokens cascade; audit records
// survive with the user reference nulled.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.store.Users().Delete(ctx, userID)
}

// AssignRole links the user to a role by name.
func (s *Service) AssignRole(ctx context.Context, userID, roleName string) error {
	if _, err := s.store.Users().Find(ctx, userID); err != nil {
		return err
	}
	role, err := s.store.Roles().FindByName(ctx, roleName)
	if err != nil {
		return err
	}
	return s.store.Roles().Assign(ctx, userID, role.ID)
}

// RateLimitFor returns the most generous requests-per-minute budget among
// the user's roles. Anonymous callers and users without roles get the
// viewer budget.
func (s *Service) RateLimitFor(ctx context.Context, user *User) (int, error) {
	fallback := defaultRateLimit(RoleViewer)
	if user == nil {
		return fallback, nil
	}
	roles, err := s.store.Roles().RolesForUser(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	limit := 0
	for _, role := range roles {
		if role.RateLimit > limit {
			limit = role.RateLimit
		}
	}
	if limit == 0 {
		limit = fallback
	}
	if user.IsSuperuser {
		admin := defaultRateLimit(RoleAdmin)
		if admin > limit {
			limit = admin
		}
	}
	return limit, nil
}

// Audit appends one record to the append-only log.
func (s *Service) Audit(ctx context.Context, rec *AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	return s.store.Audit().Append(ctx, rec)
}
