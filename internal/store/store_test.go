package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/wadake/internal/database"
	"github.com/dukerupert/wadake/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sql.DB, id, name string) *model.User {
	t.Helper()
	u, err := NewUserStore(db).Create(context.Background(), id, id+"@example.com", name)
	if err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}

func categoryID(t *testing.T, db *sql.DB, typ, name string) string {
	t.Helper()
	cats, err := NewCategoryStore(db).List(context.Background(), typ)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	for _, c := range cats {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %s/%s not seeded", typ, name)
	return ""
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }
func int64Ptr(n int64) *int64 { return &n }
