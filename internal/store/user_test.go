package store

import (
	"context"
	"testing"
)

func TestUserCreate(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)

	u, err := us.Create(context.Background(), "u1", "a@example.com", "Alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("id = %q, want %q", u.ID, "u1")
	}
	if u.Name != "Alice" {
		t.Errorf("name = %q, want %q", u.Name, "Alice")
	}
	if u.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestUserCreateDuplicate(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)

	if _, err := us.Create(context.Background(), "u1", "a@example.com", "Alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := us.Create(context.Background(), "u1", "a@example.com", "Alice")
	if err != ErrDuplicate {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	db := setupTestDB(t)

	u, err := NewUserStore(db).GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent user")
	}
}

func TestUserFindOrCreate(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ctx := context.Background()

	u, created, err := us.FindOrCreate(ctx, "u1", "a@example.com", "Alice")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if !created {
		t.Error("expected first call to create")
	}

	again, created, err := us.FindOrCreate(ctx, "u1", "other@example.com", "Other")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if created {
		t.Error("expected second call to find existing user")
	}
	if again.Name != u.Name {
		t.Errorf("name = %q, want %q", again.Name, u.Name)
	}
}

func TestUserUpdateName(t *testing.T) {
	db := setupTestDB(t)
	createTestUser(t, db, "u1", "Alice")

	u, err := NewUserStore(db).UpdateName(context.Background(), "u1", "Alicia")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Name != "Alicia" {
		t.Errorf("name = %q, want %q", u.Name, "Alicia")
	}
}
