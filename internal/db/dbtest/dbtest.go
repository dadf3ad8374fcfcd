// Package dbtest opens a migrated in-memory database for tests.
package dbtest

import (
	"testing"

	"reviewhub/internal/db"
	"reviewhub/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a fresh in-memory sqlite database. It is pinned to one connection,
// so every query made inside a transaction must go through that transaction.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// User inserts a user with the given role.
func User(t testing.TB, gdb *gorm.DB, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Password: "x", Role: role}
	if err := gdb.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// Post inserts a post. parentID may be nil for a top-level post.
func Post(t testing.TB, gdb *gorm.DB, authorID uint, parentID *uint, content string) *models.Post {
	t.Helper()
	p := &models.Post{
		ParentID: parentID,
		Content:  content,
		Category: models.CategoryGeneral,
		AuthorID: &authorID,
	}
	if err := gdb.Create(p).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}
