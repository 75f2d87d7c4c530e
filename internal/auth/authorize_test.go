package auth

import (
	"context"
	"errors"
	"testing"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *MemStore) {
	t.Helper()
	store := NewMemStore()
	tokens, err := NewTokens("test-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	svc, err := NewService(store, tokens, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

// grantUser creates a user holding one role with the given permissions.
func grantUser(t *testing.T, store *MemStore, username, roleName string, grants [][2]string) *User {
	t.Helper()
	ctx := context.Background()

	user := &User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	if err := store.Users().Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	role := &Role{Name: roleName, RateLimit: 100}
	if err := store.Roles().Create(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := store.Roles().Assign(ctx, user.ID, role.ID); err != nil {
		t.Fatalf("assign role: %v", err)
	}

	for _, g := range grants {
		perm, err := store.Permissions().Find(ctx, g[0], g[1])
		if err != nil {
			perm = &Permission{ToolName: g[0], Action: g[1]}
			if err := store.Permissions().Create(ctx, perm); err != nil {
				t.Fatalf("create permission: %v", err)
			}
		}
		if err := store.Permissions().Attach(ctx, role.ID, perm.ID); err != nil {
			t.Fatalf("attach permission: %v", err)
		}
	}
	return user
}

func TestCheckPermissionExactMatch(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	user := grantUser(t, store, "dev", "calc-add", [][2]string{{"add", ActionExecute}})

	cases := []struct {
		tool, action string
		want         bool
	}{
		{"add", ActionExecute, true},
		{"subtract", ActionExecute, false},
		{"add", ActionList, false},
	}
	for _, c := range cases {
		got, err := svc.CheckPermission(ctx, user, c.tool, c.action)
		if err != nil {
			t.Fatalf("CheckPermission(%s,%s): %v", c.tool, c.action, err)
		}
		if got != c.want {
			t.Fatalf("CheckPermission(%s,%s) = %v, want %v", c.tool, c.action, got, c.want)
		}
	}
}

func TestCheckPermissionWildcards(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	anyTool := grantUser(t, store, "lister", "listers", [][2]string{{Wildcard, ActionList}})
	anyAction := grantUser(t, store, "adder", "adders", [][2]string{{"add", Wildcard}})
	full := grantUser(t, store, "boss", "admins", [][2]string{{Wildcard, Wildcard}})

	if ok, _ := svc.CheckPermission(ctx, anyTool, "divide", ActionList); !ok {
		t.Fatalf("wildcard tool should allow listing any tool")
	}
	if ok, _ := svc.CheckPermission(ctx, anyTool, "divide", ActionExecute); ok {
		t.Fatalf("wildcard tool must not allow a different action")
	}
	if ok, _ := svc.CheckPermission(ctx, anyAction, "add", ActionList); !ok {
		t.Fatalf("wildcard action should allow any action on the tool")
	}
	if ok, _ := svc.CheckPermission(ctx, anyAction, "subtract", ActionExecute); ok {
		t.Fatalf("wildcard action must not leak to other tools")
	}
	for _, tool := range ToolNames {
		if ok, _ := svc.CheckPermission(ctx, full, tool, ActionExecute); !ok {
			t.Fatalf("full wildcard denied %s", tool)
		}
	}
}

func TestSuperuserBypassesPermissions(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	root := &User{
		Username:     "root",
		Email:        "root@example.com",
		PasswordHash: "x",
		IsActive:     true,
		IsSuperuser:  true,
	}
	if err := store.Users().Create(ctx, root); err != nil {
		t.Fatalf("create user: %v", err)
	}

	ok, err := svc.CheckPermission(ctx, root, "divide", ActionExecute)
	if err != nil {
		t.Fatalf("CheckPermission: %v", err)
	}
	if !ok {
		t.Fatalf("superuser with no roles should pass every check")
	}
}

func TestRequirePermissionDenied(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	user := grantUser(t, store, "viewer", "viewers", [][2]string{{Wildcard, ActionList}})

	if _, err := svc.RequirePermission(ctx, user, "add", ActionExecute); err == nil {
		t.Fatalf("expected denial")
	} else if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if _, err := svc.RequirePermission(ctx, nil, "add", ActionExecute); err == nil {
		t.Fatalf("expected error for missing user")
	}
}
