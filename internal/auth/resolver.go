package auth

import (
	"context"
	"errors"
	"strings"
)

// Enforcement modes. In strict mode unauthenticated requests must be
// rejected by the caller; in permissive mode the caller may admit
// anonymous access to non-sensitive operations.
const (
	ModeStrict     = "strict"
	ModePermissive = "permissive"
)

// Credentials carries the raw header values the HTTP layer extracted.
type Credentials struct {
	BearerToken string
	APIKey      string
}

// UserFromBearer resolves the bearer channel. Any verification failure,
// unknown subject or inactive user yields (nil, nil): no identity, not an
// error.
func (s *Service) UserFromBearer(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	claims, ok := s.tokens.VerifyAccessToken(token)
	if !ok {
		return nil, nil
	}
	user, err := s.store.Users().Find(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}
	return user, nil
}

// UserFromAPIKey resolves the API key channel: an exact match on an
// active user's stored key, no identity otherwise.
func (s *Service) UserFromAPIKey(ctx context.Context, apiKey string) (*User, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, nil
	}
	user, err := s.store.Users().FindByAPIKey(ctx, apiKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Resolve composes both channels in fixed priority order: a valid bearer
// identity wins over a valid API key identity. A nil user with nil error
// means the request is anonymous; whether that is acceptable depends on
// the enforcement mode and the caller's policy.
func (s *Service) Resolve(ctx context.Context, creds Credentials) (*User, error) {
	user, err := s.UserFromBearer(ctx, creds.BearerToken)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	return s.UserFromAPIKey(ctx, creds.APIKey)
}

// Mode returns the configured enforcement mode.
func (s *Service) Mode() string { return s.mode }

// Permissive reports whether anonymous requests may reach non-sensitive
// operations.
func (s *Service) Permissive() bool { return s.mode == ModePermissive }

// RequireAuthentication resolves credentials and fails with
// ErrUnauthorized when no identity resolved, or ErrForbidden when the
// identity is inactive.
func (s *Service) RequireAuthentication(ctx context.Context, creds Credentials) (*User, error) {
	user, err := s.Resolve(ctx, creds)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	if !user.IsActive {
		return nil, ErrForbidden
	}
	return user, nil
}

// RequireAdmin requires authentication plus superuser status or a role
// literally named "admin".
func (s *Service) RequireAdmin(ctx context.Context, creds Credentials) (*User, error) {
	user, err := s.RequireAuthentication(ctx, creds)
	if err != nil {
		return nil, err
	}
	if user.IsSuperuser {
		return user, nil
	}
	roles, err := s.store.Roles().RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if role.Name == RoleAdmin {
			return user, nil
		}
	}
	return nil, ErrForbidden
}
