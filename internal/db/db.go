package db

import (
	"fmt"
	"log/slog"
	"strings"

	"reviewhub/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks the driver from the DATABASE_URL prefix.
// postgres:// and postgresql:// URLs and bare "host=... user=..." DSNs go to postgres,
// sqlite://<path> goes to the pure-Go sqlite driver.
func Dialector(dbURL string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		return postgres.Open(dbURL), nil
	case strings.HasPrefix(dbURL, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dbURL, "sqlite://")), nil
	case strings.Contains(dbURL, "host="):
		return postgres.Open(dbURL), nil
	default:
		return nil, fmt.Errorf("invalid DATABASE_URL %q: must start with postgres:// or sqlite://", dbURL)
	}
}

// Open connects without migrating.
func Open(dbURL string, debug bool) (*gorm.DB, error) {
	dialector, err := Dialector(dbURL)
	if err != nil {
		return nil, err
	}

	level := logger.Silent
	if debug {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Tag{},
		&models.Post{},
		&models.Vote{},
		&models.RateLimitEntry{},
		&models.AuditLog{},
	)
}

// Init opens, migrates and seeds the database.
func Init(dbURL string, debug bool) (*gorm.DB, error) {
	db, err := Open(dbURL, debug)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("Database connection established")

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	slog.Info("Database migration completed")

	SeedTags(db)
	return db, nil
}

// DefaultTags 预设标签
var DefaultTags = []models.Tag{
	{Name: "review", Description: "Product and service reviews"},
	{Name: "help", Description: "Questions looking for answers"},
	{Name: "meta", Description: "About the community itself"},
	{Name: "showcase", Description: "Things people made"},
}

// SeedTags 仅在标签表为空时写入预设标签
func SeedTags(db *gorm.DB) {
	var count int64
	db.Model(&models.Tag{}).Count(&count)
	if count > 0 {
		slog.Debug("Tags already seeded, skipping")
		return
	}

	for _, tag := range DefaultTags {
		tag := tag
		if err := db.Create(&tag).Error; err != nil {
			slog.Warn("Failed to create tag", "name", tag.Name, "error", err)
		}
	}
	slog.Info("Initial tags created successfully")
}
