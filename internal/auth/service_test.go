package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginIssuesUsablePair(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "alice", "alice@example.com", "s3cret", "Alice")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	pair, got, err := svc.Login(ctx, "alice", "s3cret", "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("login returned wrong user")
	}

	claims, ok := svc.Tokens().VerifyAccessToken(pair.AccessToken)
	if !ok {
		t.Fatalf("access token invalid")
	}
	if claims.Subject != user.ID {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if _, ok := svc.VerifyRefreshToken(ctx, pair.RefreshToken); !ok {
		t.Fatalf("refresh token should be live after login")
	}

	found, err := svc.Store().Users().Find(ctx, user.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found.LastLogin.IsZero() {
		t.Fatalf("last login not recorded")
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "bob", "bob@example.com", "right", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	for _, c := range []struct{ username, password string }{
		{"bob", "wrong"},
		{"nobody", "right"},
	} {
		_, _, err := svc.Login(ctx, c.username, c.password, "", "")
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("Login(%s) = %v, want ErrUnauthorized", c.username, err)
		}
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "carol", "carol@example.com", "pw", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	pair, _, err := svc.Login(ctx, "carol", "pw", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, err := svc.Refresh(ctx, pair.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh token not rotated")
	}

	// the redeemed token is revoked and cannot be replayed
	if _, ok := svc.VerifyRefreshToken(ctx, pair.RefreshToken); ok {
		t.Fatalf("old refresh token still live")
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken, "", ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("replayed refresh = %v, want ErrInvalidToken", err)
	}
	if _, ok := svc.VerifyRefreshToken(ctx, next.RefreshToken); !ok {
		t.Fatalf("rotated token should be live")
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "dave", "dave@example.com", "pw", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	pair, _, err := svc.Login(ctx, "dave", "pw", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := svc.Refresh(ctx, pair.AccessToken, "", ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token redeemed as refresh: %v", err)
	}
}

func TestRefreshRejectsExpiredRecord(t *testing.T) {
	now := time.Now()
	svc, _ := newTestService(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "frank", "frank@example.com", "pw", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	pair, _, err := svc.Login(ctx, "frank", "pw", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// move past the persisted record's window; the signature itself is
	// still valid at wall-clock time
	now = now.Add(svc.Tokens().RefreshTTL() + time.Minute)

	if _, ok := svc.Tokens().VerifyRefreshToken(pair.RefreshToken); !ok {
		t.Fatalf("claims check should still pass, only the record expired")
	}
	if _, ok := svc.VerifyRefreshToken(ctx, pair.RefreshToken); ok {
		t.Fatalf("expired record verified as live")
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken, "", ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired record redeemed: %v", err)
	}
}

func TestLogoutRevokesAllSessions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "erin", "erin@example.com", "pw", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	first, _, err := svc.Login(ctx, "erin", "pw", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	second, _, err := svc.Login(ctx, "erin", "pw", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		if _, ok := svc.VerifyRefreshToken(ctx, token); ok {
			t.Fatalf("refresh token survived logout")
		}
	}
}

func TestRotateAndRevokeAPIKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "frank", "frank@example.com", "pw", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	key, err := svc.RotateAPIKey(ctx, user.ID)
	if err != nil {
		t.Fatalf("RotateAPIKey: %v", err)
	}
	if key == "" {
		t.Fatalf("empty api key")
	}
	resolved, err := svc.UserFromAPIKey(ctx, key)
	if err != nil || resolved == nil || resolved.ID != user.ID {
		t.Fatalf("api key does not resolve: %v %v", resolved, err)
	}

	next, err := svc.RotateAPIKey(ctx, user.ID)
	if err != nil {
		t.Fatalf("RotateAPIKey: %v", err)
	}
	if next == key {
		t.Fatalf("rotation returned the same key")
	}
	if resolved, _ := svc.UserFromAPIKey(ctx, key); resolved != nil {
		t.Fatalf("old key still resolves")
	}

	if err := svc.RevokeAPIKey(ctx, user.ID); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}
	if resolved, _ := svc.UserFromAPIKey(ctx, next); resolved != nil {
		t.Fatalf("revoked key still resolves")
	}

	if _, err := svc.RotateAPIKey(ctx, "no-such-user"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "gone", "gone@example.com", "pw", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	pair, _, err := svc.Login(ctx, "gone", "pw", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Audit(ctx, &AuditRecord{
		UserID:   user.ID,
		Username: user.Username,
		Action:   "login",
		Endpoint: "/v1/auth/login",
		Method:   "POST",
	}); err != nil {
		t.Fatalf("Audit: %v", err)
	}

	if err := svc.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if _, err := store.Users().Find(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("user still present: %v", err)
	}
	if _, err := store.RefreshTokens().FindByToken(ctx, pair.RefreshToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("refresh token survived user delete: %v", err)
	}

	records, err := store.Audit().ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(records) == 0 {
		t.Fatalf("audit records must survive user delete")
	}
	for _, rec := range records {
		if rec.UserID != "" {
			t.Fatalf("audit user reference not nulled: %q", rec.UserID)
		}
		if rec.Username == "" {
			t.Fatalf("audit username should be preserved")
		}
	}
}

func TestAssignRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	user, err := svc.CreateUser(ctx, "henry", "henry@example.com", "pw", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := svc.AssignRole(ctx, user.ID, RoleDeveloper); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	names, err := svc.RoleNames(ctx, user.ID)
	if err != nil {
		t.Fatalf("RoleNames: %v", err)
	}
	if len(names) != 1 || names[0] != RoleDeveloper {
		t.Fatalf("roles = %v", names)
	}

	if err := svc.AssignRole(ctx, user.ID, "no-such-role"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRateLimitFor(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	limit, err := svc.RateLimitFor(ctx, nil)
	if err != nil {
		t.Fatalf("RateLimitFor: %v", err)
	}
	if limit != defaultRateLimit(RoleViewer) {
		t.Fatalf("anonymous limit = %d", limit)
	}

	user, err := svc.CreateUser(ctx, "iris", "iris@example.com", "pw", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := svc.AssignRole(ctx, user.ID, RoleViewer); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := svc.AssignRole(ctx, user.ID, RoleDeveloper); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	limit, err = svc.RateLimitFor(ctx, user)
	if err != nil {
		t.Fatalf("RateLimitFor: %v", err)
	}
	if limit != defaultRateLimit(RoleDeveloper) {
		t.Fatalf("limit = %d, want most generous role budget", limit)
	}

	root := &User{Username: "root", Email: "root@example.com", PasswordHash: "x", IsActive: true, IsSuperuser: true}
	if err := store.Users().Create(ctx, root); err != nil {
		t.Fatalf("create user: %v", err)
	}
	limit, err = svc.RateLimitFor(ctx, root)
	if err != nil {
		t.Fatalf("RateLimitFor: %v", err)
	}
	if limit != defaultRateLimit(RoleAdmin) {
		t.Fatalf("superuser limit = %d", limit)
	}
}
