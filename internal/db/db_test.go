package db

import (
	"path/filepath"
	"testing"

	"reviewhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	tests := []struct {
		url     string
		name    string
		wantErr bool
	}{
		{"postgres://u:p@localhost:5432/app", "postgres", false},
		{"postgresql://u:p@localhost/app", "postgres", false},
		{"host=localhost user=postgres dbname=app", "postgres", false},
		{"sqlite://reviewhub.db", "sqlite", false},
		{"mysql://nope", "", true},
	}

	for _, tt := range tests {
		d, err := Dialector(tt.url)
		if tt.wantErr {
			assert.Error(t, err, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.name, d.Name(), tt.url)
	}
}

func TestInitSeedsTagsOnce(t *testing.T) {
	gdb, err := Init("sqlite://"+filepath.Join(t.TempDir(), "seed.db"), false)
	require.NoError(t, err)
	sqlDB, _ := gdb.DB()
	defer sqlDB.Close()

	SeedTags(gdb)

	var count int64
	gdb.Model(&models.Tag{}).Count(&count)
	assert.EqualValues(t, len(DefaultTags), count)
}
