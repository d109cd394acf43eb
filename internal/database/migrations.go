package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/makudoku/backend/internal/puzzles"
)

const (
	migrationBackfillVariantTags = "2026-06-10_backfill_variant_tags"
	migrationSeedStatsRows       = "2026-07-02_seed_stats_for_published"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillVariantTags, apply: backfillVariantTags},
		{name: migrationSeedStatsRows, apply: seedStatsForPublished},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows written before tag extraction existed carry NULL or empty variant
// lists; normalize them to the canonical empty array.
func backfillVariantTags(db *gorm.DB) error {
	return db.Model(&puzzles.Puzzle{}).
		Where("variants IS NULL OR variants = ''").
		Update("variants", "[]").Error
}

// Published puzzles should always have a stats row so dashboards see zeros
// instead of gaps.
func seedStatsForPublished(db *gorm.DB) error {
	const insert = `
INSERT INTO puzzle_stats (date_utc, views, checks, solves, last_seen_utc)
SELECT p.date_utc, 0, 0, 0, ?
FROM puzzles p
WHERE p.status = 'published'
  AND NOT EXISTS (SELECT 1 FROM puzzle_stats s WHERE s.date_utc = p.date_utc);`
	return db.Exec(insert, time.Now().UTC()).Error
}
