package auth

import (
	"context"
	"testing"
)

func TestSeedIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.Seed(ctx); err != nil {
			t.Fatalf("Seed pass %d: %v", i+1, err)
		}
	}

	roles, err := store.Roles().List(ctx)
	if err != nil {
		t.Fatalf("List roles: %v", err)
	}
	if len(roles) != 3 {
		t.Fatalf("roles = %d, want 3", len(roles))
	}
	for _, role := range roles {
		if !role.IsSystemRole {
			t.Fatalf("seeded role %s not marked system", role.Name)
		}
		if role.RateLimit != defaultRateLimit(role.Name) {
			t.Fatalf("role %s rate limit = %d", role.Name, role.RateLimit)
		}
	}

	perms, err := store.Permissions().List(ctx)
	if err != nil {
		t.Fatalf("List permissions: %v", err)
	}
	// admin's (*,*), developer's seven execute grants plus (*,list); the
	// viewer reuses the developer's (*,list) row
	if len(perms) != 9 {
		t.Fatalf("permissions = %d, want 9", len(perms))
	}

	links := 0
	for _, role := range roles {
		attached, err := store.Permissions().PermissionsForRole(ctx, role.ID)
		if err != nil {
			t.Fatalf("PermissionsForRole: %v", err)
		}
		links += len(attached)
	}
	if links != 10 {
		t.Fatalf("role-permission links = %d, want 10", links)
	}
}

func TestSeededRoleCapabilities(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	mkUser := func(name, role string) *User {
		u := createActiveUser(t, store, name, "")
		if err := svc.AssignRole(ctx, u.ID, role); err != nil {
			t.Fatalf("AssignRole: %v", err)
		}
		return u
	}

	admin := mkUser("a1", RoleAdmin)
	dev := mkUser("d1", RoleDeveloper)
	viewer := mkUser("v1", RoleViewer)

	for _, tool := range ToolNames {
		if ok, _ := svc.CheckPermission(ctx, admin, tool, ActionExecute); !ok {
			t.Fatalf("admin denied %s", tool)
		}
		if ok, _ := svc.CheckPermission(ctx, dev, tool, ActionExecute); !ok {
			t.Fatalf("developer denied %s", tool)
		}
		if ok, _ := svc.CheckPermission(ctx, viewer, tool, ActionExecute); ok {
			t.Fatalf("viewer may not execute %s", tool)
		}
	}
	if ok, _ := svc.CheckPermission(ctx, viewer, "add", ActionList); !ok {
		t.Fatalf("viewer should list tools")
	}
	if ok, _ := svc.CheckPermission(ctx, dev, "add", ActionList); !ok {
		t.Fatalf("developer should list tools")
	}
}

func TestEnsureAdminUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	seeded, err := svc.EnsureAdminUser(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("EnsureAdminUser: %v", err)
	}
	if seeded.APIKey == "" {
		t.Fatalf("first bootstrap should report an api key")
	}
	if !seeded.User.IsSuperuser {
		t.Fatalf("admin must be superuser")
	}
	names, err := svc.RoleNames(ctx, seeded.User.ID)
	if err != nil {
		t.Fatalf("RoleNames: %v", err)
	}
	if len(names) != 1 || names[0] != RoleAdmin {
		t.Fatalf("admin roles = %v", names)
	}

	again, err := svc.EnsureAdminUser(ctx, "admin", "different")
	if err != nil {
		t.Fatalf("EnsureAdminUser second call: %v", err)
	}
	if again.APIKey != "" {
		t.Fatalf("existing admin must not report an api key")
	}
	if again.User.ID != seeded.User.ID {
		t.Fatalf("second call created a new account")
	}
}

func TestEnsureAdminUserNeedsSeed(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.EnsureAdminUser(context.Background(), "admin", "admin123"); err == nil {
		t.Fatalf("expected error without seeded roles")
	}
}

func TestCreateDemoUsers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	seeded, err := svc.CreateDemoUsers(ctx)
	if err != nil {
		t.Fatalf("CreateDemoUsers: %v", err)
	}
	if len(seeded) != 2 {
		t.Fatalf("demo users = %d, want 2", len(seeded))
	}
	for _, su := range seeded {
		if su.APIKey == "" {
			t.Fatalf("new demo user %s missing api key", su.User.Username)
		}
		if su.User.IsSuperuser {
			t.Fatalf("demo user %s must not be superuser", su.User.Username)
		}
	}

	if _, _, err := svc.Login(ctx, "developer1", "dev123", "", ""); err != nil {
		t.Fatalf("developer1 login: %v", err)
	}
	if _, _, err := svc.Login(ctx, "viewer1", "view123", "", ""); err != nil {
		t.Fatalf("viewer1 login: %v", err)
	}

	again, err := svc.CreateDemoUsers(ctx)
	if err != nil {
		t.Fatalf("CreateDemoUsers second call: %v", err)
	}
	for _, su := range again {
		if su.APIKey != "" {
			t.Fatalf("existing demo user reported an api key")
		}
	}
}
