package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/makudoku/backend/internal/puzzles"
)

func openTestDatabase(testContext *testing.T) *gorm.DB {
	testContext.Helper()
	databasePath := filepath.Join(testContext.TempDir(), "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&puzzles.Puzzle{}, &puzzles.PuzzleStats{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}
	return database
}

func TestApplyMigrationsBackfillsVariantTags(testContext *testing.T) {
	database := openTestDatabase(testContext)

	record := puzzles.Puzzle{
		DateUTC:      "2024-01-01",
		Status:       puzzles.StatusDraft,
		PuzzleJSON:   "{}",
		VariantsJSON: "",
	}
	if err := database.Create(&record).Error; err != nil {
		testContext.Fatalf("failed to insert puzzle: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored puzzles.Puzzle
	if err := database.Where("date_utc = ?", record.DateUTC).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload puzzle: %v", err)
	}
	if stored.VariantsJSON != "[]" {
		testContext.Fatalf("expected empty variants to be normalized, got %q", stored.VariantsJSON)
	}

	var ledger migrationRecord
	if err := database.Where("name = ?", migrationBackfillVariantTags).Take(&ledger).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if ledger.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsSeedsStatsForPublished(testContext *testing.T) {
	database := openTestDatabase(testContext)

	published := puzzles.Puzzle{
		DateUTC:      "2024-02-01",
		Status:       puzzles.StatusPublished,
		PuzzleJSON:   "{}",
		VariantsJSON: "[]",
	}
	draft := puzzles.Puzzle{
		DateUTC:      "2024-02-02",
		Status:       puzzles.StatusDraft,
		PuzzleJSON:   "{}",
		VariantsJSON: "[]",
	}
	if err := database.Create(&published).Error; err != nil {
		testContext.Fatalf("failed to insert puzzle: %v", err)
	}
	if err := database.Create(&draft).Error; err != nil {
		testContext.Fatalf("failed to insert puzzle: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var seeded puzzles.PuzzleStats
	if err := database.Where("date_utc = ?", published.DateUTC).Take(&seeded).Error; err != nil {
		testContext.Fatalf("expected seeded stats row: %v", err)
	}
	if seeded.Views != 0 || seeded.Checks != 0 || seeded.Solves != 0 {
		testContext.Fatalf("seeded stats must be zero-valued: %+v", seeded)
	}

	err := database.Where("date_utc = ?", draft.DateUTC).Take(&puzzles.PuzzleStats{}).Error
	if err == nil {
		testContext.Fatalf("draft puzzles must not receive stats rows")
	}
}

func TestApplyMigrationsIsIdempotent(testContext *testing.T) {
	database := openTestDatabase(testContext)

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed first migration pass: %v", err)
	}
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed second migration pass: %v", err)
	}

	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count migration records: %v", err)
	}
	if count != 2 {
		testContext.Fatalf("expected 2 migration records, got %d", count)
	}
}
