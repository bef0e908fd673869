package db

import (
	"context"
	"testing"
	"time"

	"Gin_postgres_redis_tool_booking/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestRepo opens a migrated and seeded in-memory SQLite database that
// lives for the duration of the test.
func NewTestRepo(t testing.TB) *Repo {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("test db handle: %v", err)
	}
	// a second connection would see a different in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	repo := NewRepo(conn)
	if err := repo.SeedRBAC(context.Background()); err != nil {
		t.Fatalf("seed test db: %v", err)
	}
	return repo
}

// MustCreateUser inserts a user with the given role for tests.
func (r *Repo) MustCreateUser(t testing.TB, username, roleName string) *models.User {
	t.Helper()
	ctx := context.Background()
	role, err := r.FindRole(ctx, roleName)
	if err != nil {
		t.Fatalf("find role %s: %v", roleName, err)
	}
	u := &models.User{
		ID:       uuid.NewString(),
		Username: username,
		QRCode:   "U-" + username,
		RoleID:   role.ID,
	}
	if err := r.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	u.Role = role
	return u
}

// MustCreateTool inserts a tool for tests.
func (r *Repo) MustCreateTool(t testing.TB, code string) *models.Tool {
	t.Helper()
	tool := &models.Tool{Code: code, Name: "Tool " + code}
	if err := r.CreateTool(context.Background(), tool); err != nil {
		t.Fatalf("create tool %s: %v", code, err)
	}
	return tool
}
