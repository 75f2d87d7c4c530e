package auth

import (
	"context"
	"fmt"
)

// CheckPermission decides whether the user may perform action on the
// tool. Superusers pass unconditionally; otherwise the decision is a flat
// union scan over the permissions of all the user's roles with wildcard
// semantics. Roles do not inherit from each other.
func (s *Service) CheckPermission(ctx context.Context, user *User, toolName, action string) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.IsSuperuser {
		return true, nil
	}
	roles, err := s.store.Roles().RolesForUser(ctx, user.ID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		perms, err := s.store.Permissions().PermissionsForRole(ctx, role.ID)
		if err != nil {
			return false, err
		}
		for _, perm := range perms {
			if perm.Matches(toolName, action) {
				return true, nil
			}
		}
	}
	return false, nil
}

// RequirePermission returns the user unchanged when permitted, or
// ErrForbidden. The pass-through lets callers compose it with tool
// dispatch.
func (s *Service) RequirePermission(ctx context.Context, user *User, toolName, action string) (*User, error) {
	ok, err := s.CheckPermission(ctx, user, toolName, action)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", ErrForbidden, toolName, action)
	}
	return user, nil
}
