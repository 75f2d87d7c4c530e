package auth

import (
	"context"
	"testing"
)

func TestGenerateAPIKeyUnique(t *testing.T) {
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		key, err := GenerateAPIKey()
		if err != nil {
			t.Fatalf("GenerateAPIKey: %v", err)
		}
		if key == "" {
			t.Fatalf("empty key")
		}
		if seen[key] {
			t.Fatalf("duplicate key after %d draws", i)
		}
		seen[key] = true
	}
}

func TestDuplicateAPIKeyRejected(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	first := &User{Username: "a", Email: "a@example.com", PasswordHash: "x", APIKey: "same", IsActive: true}
	if err := store.Users().Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := &User{Username: "b", Email: "b@example.com", PasswordHash: "x", APIKey: "same", IsActive: true}
	if err := store.Users().Create(ctx, second); err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2" {
		t.Fatalf("password stored in clear")
	}
	if err := VerifyPassword(hash, "hunter2"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatalf("wrong password accepted")
	}
}
