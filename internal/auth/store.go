package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
// Implementations enforce the uniqueness invariants (username, email,
// api_key, refresh token string, permission tuple) and surface violations
// as ErrAlreadyExists.
type Store interface {
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
	RefreshTokens() RefreshTokenStore
	Audit() AuditStore
	IPAccess() IPAccessStore
}

// UserStore manages users. Delete cascades the user's refresh tokens and
// nulls the user reference on surviving audit records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*User, error)
	SetAPIKey(ctx context.Context, userID, apiKey string) error
	SetLastLogin(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
}

// RoleStore manages roles and user-role links.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Assign(ctx context.Context, userID, roleID string) error
	RolesForUser(ctx context.Context, userID string) ([]*Role, error)
}

// PermissionStore manages the permission catalog and role-permission links.
type PermissionStore interface {
	Create(ctx context.Context, perm *Permission) error
	Find(ctx context.Context, toolName, action string) (*Permission, error)
	List(ctx context.Context) ([]*Permission, error)
	Attach(ctx context.Context, roleID, permissionID string) error
	PermissionsForRole(ctx context.Context, roleID string) ([]*Permission, error)
}

// RefreshTokenStore manages refresh token lifecycle.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// AuditStore appends immutable audit records.
type AuditStore interface {
	Append(ctx context.Context, rec *AuditRecord) error
	ListRecent(ctx context.Context, limit int) ([]*AuditRecord, error)
}

// IPAccessStore manages the allow/deny list.
type IPAccessStore interface {
	Create(ctx context.Context, entry *IPAccessEntry) error
	ListActive(ctx context.Context) ([]*IPAccessEntry, error)
	Deactivate(ctx context.Context, ipAddress string) error
}
