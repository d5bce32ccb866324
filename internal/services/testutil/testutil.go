// Package testutil provides shared test utilities for service tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bbernstein/lacylights-orchestrator/internal/database/models"
	"github.com/bbernstein/lacylights-orchestrator/internal/database/repositories"
	"github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
)

// TestDB holds the test database and repositories.
type TestDB struct {
	DB         *gorm.DB
	PresetRepo *repositories.PresetRepository
}

// SetupTestDB creates an in-memory SQLite database for testing.
// It returns a TestDB with all repositories initialized and a cleanup function.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// Every pooled connection to :memory: is its own database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	testDB := &TestDB{
		DB:         db,
		PresetRepo: repositories.NewPresetRepository(db),
	}

	cleanup := func() {
		_ = sqlDB.Close()
	}

	return testDB, cleanup
}

// UniquePresetName generates a unique preset name for testing.
func UniquePresetName(prefix string) string {
	return prefix + "-" + cuid.New()[:8]
}

// Catalog returns a small catalog shared by service tests.
func Catalog() orchestration.Catalog {
	return orchestration.Catalog{
		Effects:       []string{"Solid", "Blink", "Rainbow"},
		Palettes:      []string{"Default", "Party", "Ocean"},
		SequenceFiles: []string{"show.fseq"},
		Patterns:      []string{"plasma"},
		Presets:       []orchestration.PresetRef{{ID: 1, Name: "Warm"}},
	}
}

// BlackoutPlaylist returns a valid one-step local playlist.
func BlackoutPlaylist(name string) *orchestration.Playlist {
	return &orchestration.Playlist{
		Name:  name,
		Scope: orchestration.ScopeLocal,
		Steps: []orchestration.BuilderStep{orchestration.NewStep(orchestration.KindBlackout)},
	}
}
