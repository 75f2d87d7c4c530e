package auth

import (
	"context"
	"errors"
	"fmt"
)

// System role names.
const (
	RoleAdmin     = "admin"
	RoleDeveloper = "developer"
	RoleViewer    = "viewer"
)

// ToolNames lists the calculator tools guarded by this subsystem. The
// tool bodies live elsewhere; only the names matter for permissions.
var ToolNames = []string{"add", "subtract", "multiply", "divide", "percentage", "sqrt", "power"}

type permissionGrant struct {
	ToolName    string
	Action      string
	Description string
}

type roleConfig struct {
	Name        string
	Description string
	RateLimit   int
	Grants      []permissionGrant
}

// DefaultRoles is the declarative seed set. Seeding is a pure function of
// this table plus existence checks, so it is safe to re-run on every
// startup.
var DefaultRoles = []roleConfig{
	{
		Name:        RoleAdmin,
		Description: "Full system access including admin functions",
		RateLimit:   1000,
		Grants: []permissionGrant{
			{Wildcard, Wildcard, "All tools, all actions"},
		},
	},
	{
		Name:        RoleDeveloper,
		Description: "Can execute all calculator tools",
		RateLimit:   100,
		Grants: append([]permissionGrant{
			{Wildcard, ActionList, "List all tools"},
		}, executeGrants()...),
	},
	{
		Name:        RoleViewer,
		Description: "Read-only access to list tools",
		RateLimit:   10,
		Grants: []permissionGrant{
			{Wildcard, ActionList, "List all tools"},
		},
	},
}

func executeGrants() []permissionGrant {
	grants := make([]permissionGrant, 0, len(ToolNames))
	for _, name := range ToolNames {
		grants = append(grants, permissionGrant{name, ActionExecute, "Execute " + name + " tool"})
	}
	return grants
}

func defaultRateLimit(roleName string) int {
	for _, cfg := range DefaultRoles {
		if cfg.Name == roleName {
			return cfg.RateLimit
		}
	}
	return 10
}

// Seed creates the system roles, their permissions and the role-permission
// links. Every insert is guarded by an existence check and tolerates a
// concurrent duplicate insert by treating ErrAlreadyExists as already
// seeded, so repeated or racing startups converge on the same state.
func (s *Service) Seed(ctx context.Context) error {
	roles := s.store.Roles()
	perms := s.store.Permissions()

	for _, cfg := range DefaultRoles {
		role, err := roles.FindByName(ctx, cfg.Name)
		if errors.Is(err, ErrNotFound) {
			role = &Role{
				Name:         cfg.Name,
				Description:  cfg.Description,
				IsSystemRole: true,
				RateLimit:    cfg.RateLimit,
			}
			if err := roles.Create(ctx, role); err != nil {
				if !errors.Is(err, ErrAlreadyExists) {
					return fmt.Errorf("seed role %s: %w", cfg.Name, err)
				}
				if role, err = roles.FindByName(ctx, cfg.Name); err != nil {
					return fmt.Errorf("seed role %s: %w", cfg.Name, err)
				}
			}
		} else if err != nil {
			return fmt.Errorf("seed role %s: %w", cfg.Name, err)
		}

		for _, grant := range cfg.Grants {
			perm, err := perms.Find(ctx, grant.ToolName, grant.Action)
			if errors.Is(err, ErrNotFound) {
				perm = &Permission{
					ToolName:    grant.ToolName,
					Action:      grant.Action,
					Description: grant.Description,
				}
				if err := perms.Create(ctx, perm); err != nil {
					if !errors.Is(err, ErrAlreadyExists) {
						return fmt.Errorf("seed permission %s:%s: %w", grant.ToolName, grant.Action, err)
					}
					if perm, err = perms.Find(ctx, grant.ToolName, grant.Action); err != nil {
						return fmt.Errorf("seed permission %s:%s: %w", grant.ToolName, grant.Action, err)
					}
				}
			} else if err != nil {
				return fmt.Errorf("seed permission %s:%s: %w", grant.ToolName, grant.Action, err)
			}

			if err := perms.Attach(ctx, role.ID, perm.ID); err != nil {
				return fmt.Errorf("attach %s:%s to %s: %w", grant.ToolName, grant.Action, cfg.Name, err)
			}
		}
	}
	return nil
}

// SeededUser reports a freshly created account alongside the API key that
// is only available at creation time.
type SeededUser struct {
	User   *User
	APIKey string
}

// EnsureAdminUser creates the default administrator if absent. The
// initial password is meant to be rotated out of band; the generated API
// key is only reported once.
func (s *Service) EnsureAdminUser(ctx context.Context, username, password string) (*SeededUser, error) {
	users := s.store.Users()
	existing, err := users.FindByUsername(ctx, username)
	if err == nil {
		return &SeededUser{User: existing}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	adminRole, err := s.store.Roles().FindByName(ctx, RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("admin role missing, run Seed first: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	apiKey, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		APIKey:       apiKey,
		IsActive:     true,
		IsSuperuser:  true,
		FullName:     "System Administrator",
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			existing, ferr := users.FindByUsername(ctx, username)
			if ferr != nil {
				return nil, ferr
			}
			return &SeededUser{User: existing}, nil
		}
		return nil, err
	}
	if err := s.store.Roles().Assign(ctx, user.ID, adminRole.ID); err != nil {
		return nil, err
	}
	return &SeededUser{User: user, APIKey: apiKey}, nil
}

type demoUserConfig struct {
	Username string
	Email    string
	Password string
	Role     string
	FullName string
}

var demoUsers = []demoUserConfig{
	{"developer1", "developer1@example.com", "dev123", RoleDeveloper, "Demo Developer"},
	{"viewer1", "viewer1@example.com", "view123", RoleViewer, "Demo Viewer"},
}

// CreateDemoUsers creates the demo accounts, each bound to one non-admin
// role, reporting generated API keys for out-of-band distribution.
// Existing accounts are returned without a key.
func (s *Service) CreateDemoUsers(ctx context.Context) ([]*SeededUser, error) {
	users := s.store.Users()
	var created []*SeededUser

	for _, cfg := range demoUsers {
		existing, err := users.FindByUsername(ctx, cfg.Username)
		if err == nil {
			created = append(created, &SeededUser{User: existing})
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		role, err := s.store.Roles().FindByName(ctx, cfg.Role)
		if err != nil {
			return nil, fmt.Errorf("role %s missing, run Seed first: %w", cfg.Role, err)
		}
		hash, err := HashPassword(cfg.Password)
		if err != nil {
			return nil, err
		}
		apiKey, err := GenerateAPIKey()
		if err != nil {
			return nil, err
		}
		user := &User{
			Username:     cfg.Username,
			Email:        cfg.Email,
			PasswordHash: hash,
			APIKey:       apiKey,
			IsActive:     true,
			FullName:     cfg.FullName,
		}
		if err := users.Create(ctx, user); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				existing, ferr := users.FindByUsername(ctx, cfg.Username)
				if ferr != nil {
					return nil, ferr
				}
				created = append(created, &SeededUser{User: existing})
				continue
			}
			return nil, err
		}
		if err := s.store.Roles().Assign(ctx, user.ID, role.ID); err != nil {
			return nil, err
		}
		created = append(created, &SeededUser{User: user, APIKey: apiKey})
	}
	return created, nil
}
