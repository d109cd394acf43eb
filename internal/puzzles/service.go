// Package puzzles owns the date-keyed puzzle records, their publication
// lifecycle, per-date usage counters, and solve verification.
package puzzles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/makudoku/backend/internal/variant"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingRenderer = errors.New("renderer is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError carries a dotted operation code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "puzzles.service.new"
	opCreate      = "puzzles.create"
	opPublish     = "puzzles.publish"
	opArchive     = "puzzles.archive"
	opGet         = "puzzles.get"
	opList        = "puzzles.list"
	opStats       = "puzzles.stats"
	opRecordEvent = "puzzles.record_event"
	opVerifySolve = "puzzles.verify_solve"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// Renderer produces the stored image for a puzzle and its variant set.
type Renderer func(puzzleText string, specs []variant.Spec) (string, error)

// ServiceConfig describes the dependencies of the puzzle service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Renderer Renderer
	Logger   *zap.Logger
}

// Service implements the lifecycle and stats operations.
type Service struct {
	db       *gorm.DB
	clock    func() time.Time
	renderer Renderer
	logger   *zap.Logger
}

// NewService validates dependencies and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Renderer == nil {
		return nil, newServiceError(opServiceNew, "missing_renderer", errMissingRenderer)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, renderer: cfg.Renderer, logger: logger}, nil
}

// CreateRequest is the input for creating or replacing a dated puzzle.
type CreateRequest struct {
	Date       string
	PuzzleJSON string
	SVG        *string
	Variants   []string
	Status     *string
	Title      *string
	Author     *string
	Difficulty *int64
	Overwrite  *bool
}

// Create inserts or replaces the record for the requested date. With the
// overwrite guard set, an existing record makes the call fail with
// ErrConflict and nothing is mutated.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Puzzle, error) {
	date, err := ParseDate(req.Date)
	if err != nil {
		return Puzzle{}, newServiceError(opCreate, "invalid_date", err)
	}

	overwrite := true
	if req.Overwrite != nil {
		overwrite = *req.Overwrite
	}
	if !overwrite {
		var existing Puzzle
		err := s.db.WithContext(ctx).Where("date_utc = ?", date).Take(&existing).Error
		if err == nil {
			return Puzzle{}, newServiceError(opCreate, "conflict", ErrConflict)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logError(opCreate, "select_failed", err, zap.String("date", date))
			return Puzzle{}, newServiceError(opCreate, "select_failed", err)
		}
	}

	payload, err := ParsePayload(req.PuzzleJSON)
	if err != nil {
		return Puzzle{}, newServiceError(opCreate, "invalid_payload", err)
	}

	constraintsJSON, err := encodeRawList(payload.Constraints)
	if err != nil {
		return Puzzle{}, newServiceError(opCreate, "invalid_payload", err)
	}
	specs, err := variant.Parse(constraintsJSON)
	if err != nil {
		return Puzzle{}, newServiceError(opCreate, "invalid_constraints", err)
	}

	tags := req.Variants
	if tags != nil {
		tags = variant.DedupeTags(tags)
	} else {
		tags = variant.KindTags(specs)
	}
	tagsJSON, err := encodeTags(tags)
	if err != nil {
		return Puzzle{}, newServiceError(opCreate, "encode_variants", err)
	}

	svg := ""
	if req.SVG != nil {
		svg = *req.SVG
	} else {
		rendered, err := s.renderer(payload.Puzzle, specs)
		if err != nil {
			return Puzzle{}, newServiceError(opCreate, "render_failed", err)
		}
		svg = rendered
	}

	status := StatusDraft
	if req.Status != nil {
		status, err = ParseStatus(*req.Status)
		if err != nil {
			return Puzzle{}, newServiceError(opCreate, "invalid_status", err)
		}
	}
	var publishedAt *time.Time
	if status == StatusPublished {
		now := s.clock().UTC()
		publishedAt = &now
	}

	record := Puzzle{
		DateUTC:       date,
		Status:        status,
		PuzzleJSON:    req.PuzzleJSON,
		SVG:           svg,
		RenderVersion: 1,
		Title:         req.Title,
		Author:        req.Author,
		Difficulty:    req.Difficulty,
		VariantsJSON:  tagsJSON,
		PublishedAt:   publishedAt,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date_utc"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "puzzle_json", "svg", "render_version", "title",
			"author", "difficulty", "variants", "published_at_utc",
			"updated_at_utc",
		}),
	}).Create(&record).Error
	if err != nil {
		s.logError(opCreate, "upsert_failed", err, zap.String("date", date))
		return Puzzle{}, newServiceError(opCreate, "upsert_failed", err)
	}

	return s.Get(ctx, date)
}

// Publish marks the record published and refreshes the publication
// timestamp; republishing is allowed and refreshes it again.
func (s *Service) Publish(ctx context.Context, date string) (Puzzle, error) {
	return s.transition(ctx, opPublish, date, map[string]interface{}{
		"status":           StatusPublished,
		"published_at_utc": s.clock().UTC(),
	})
}

// Archive marks the record archived. The publication timestamp is left
// untouched.
func (s *Service) Archive(ctx context.Context, date string) (Puzzle, error) {
	return s.transition(ctx, opArchive, date, map[string]interface{}{
		"status": StatusArchived,
	})
}

func (s *Service) transition(ctx context.Context, operation, rawDate string, updates map[string]interface{}) (Puzzle, error) {
	date, err := ParseDate(rawDate)
	if err != nil {
		return Puzzle{}, newServiceError(operation, "invalid_date", err)
	}
	result := s.db.WithContext(ctx).Model(&Puzzle{}).Where("date_utc = ?", date).Updates(updates)
	if result.Error != nil {
		s.logError(operation, "update_failed", result.Error, zap.String("date", date))
		return Puzzle{}, newServiceError(operation, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return Puzzle{}, newServiceError(operation, "not_found", ErrNotFound)
	}
	return s.Get(ctx, date)
}

// Get returns the record for the date, regardless of status.
func (s *Service) Get(ctx context.Context, rawDate string) (Puzzle, error) {
	date, err := ParseDate(rawDate)
	if err != nil {
		return Puzzle{}, newServiceError(opGet, "invalid_date", err)
	}
	var record Puzzle
	err = s.db.WithContext(ctx).Where("date_utc = ?", date).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Puzzle{}, newServiceError(opGet, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opGet, "select_failed", err, zap.String("date", date))
		return Puzzle{}, newServiceError(opGet, "select_failed", err)
	}
	return record, nil
}

// GetPublished returns the record for the date only if it is published.
func (s *Service) GetPublished(ctx context.Context, rawDate string) (Puzzle, error) {
	date, err := ParseDate(rawDate)
	if err != nil {
		return Puzzle{}, newServiceError(opGet, "invalid_date", err)
	}
	var record Puzzle
	err = s.db.WithContext(ctx).
		Where("date_utc = ? AND status = ?", date, StatusPublished).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Puzzle{}, newServiceError(opGet, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opGet, "select_failed", err, zap.String("date", date))
		return Puzzle{}, newServiceError(opGet, "select_failed", err)
	}
	return record, nil
}

// List returns records ordered by date descending, optionally filtered to
// one status.
func (s *Service) List(ctx context.Context, status *Status) ([]Puzzle, error) {
	query := s.db.WithContext(ctx).Order("date_utc DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var records []Puzzle
	if err := query.Find(&records).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, newServiceError(opList, "query_failed", err)
	}
	return records, nil
}

// Stats returns the counters for a date; absent rows synthesize a
// zero-valued record rather than an error.
func (s *Service) Stats(ctx context.Context, rawDate string) (PuzzleStats, error) {
	date, err := ParseDate(rawDate)
	if err != nil {
		return PuzzleStats{}, newServiceError(opStats, "invalid_date", err)
	}
	var stats PuzzleStats
	err = s.db.WithContext(ctx).Where("date_utc = ?", date).Take(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PuzzleStats{DateUTC: date}, nil
	}
	if err != nil {
		s.logError(opStats, "select_failed", err, zap.String("date", date))
		return PuzzleStats{}, newServiceError(opStats, "select_failed", err)
	}
	return stats, nil
}

// RecordEvent bumps exactly one counter for the date. The increment is a
// single upsert statement so concurrent events for the same date cannot
// lose updates.
func (s *Service) RecordEvent(ctx context.Context, rawDate string, kind EventKind) error {
	date, err := ParseDate(rawDate)
	if err != nil {
		return newServiceError(opRecordEvent, "invalid_date", err)
	}

	var column string
	row := PuzzleStats{DateUTC: date, LastSeenAt: s.clock().UTC()}
	switch kind {
	case EventView:
		column = "views"
		row.Views = 1
	case EventCheck:
		column = "checks"
		row.Checks = 1
	case EventSolve:
		column = "solves"
		row.Solves = 1
	default:
		return newServiceError(opRecordEvent, "unknown_event", fmt.Errorf("%w: %q", ErrUnknownEvent, kind))
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date_utc"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column:          gorm.Expr(column + " + 1"),
			"last_seen_utc": row.LastSeenAt,
		}),
	}).Create(&row).Error
	if err != nil {
		s.logError(opRecordEvent, "upsert_failed", err, zap.String("date", date), zap.String("event", string(kind)))
		return newServiceError(opRecordEvent, "upsert_failed", err)
	}
	return nil
}

// VerifySolve judges a submitted grid against the stored solution for the
// date's published puzzle. Format errors touch no counters; every judged
// submission bumps checks, and a complete one additionally bumps solves.
// A missing or malformed stored solution degrades to CheckUnavailable
// while still recording the check.
func (s *Service) VerifySolve(ctx context.Context, rawDate, submitted string) (CheckStatus, error) {
	grid := strings.TrimSpace(submitted)
	if len(grid) != 81 {
		return "", newServiceError(opVerifySolve, "invalid_grid", fmt.Errorf("%w: must be exactly 81 characters", ErrInvalidGrid))
	}
	for i := 0; i < len(grid); i++ {
		ch := grid[i]
		if ch != '.' && (ch < '0' || ch > '9') {
			return "", newServiceError(opVerifySolve, "invalid_grid", fmt.Errorf("%w: must contain digits 1-9, '0' or '.'", ErrInvalidGrid))
		}
	}

	record, err := s.GetPublished(ctx, rawDate)
	if err != nil {
		return "", err
	}

	solution, solutionErr := storedSolution(record.PuzzleJSON)
	if solutionErr != nil {
		// Checking is still recorded even when correctness cannot be judged.
		if err := s.RecordEvent(ctx, record.DateUTC, EventCheck); err != nil {
			return "", err
		}
		s.logger.Warn("stored solution unavailable",
			zap.String("date", record.DateUTC), zap.Error(solutionErr))
		return CheckUnavailable, nil
	}

	if err := s.RecordEvent(ctx, record.DateUTC, EventCheck); err != nil {
		return "", err
	}

	incomplete := false
	for i := 0; i < len(grid); i++ {
		ch := grid[i]
		if ch == '.' || ch == '0' {
			incomplete = true
			continue
		}
		if ch-'0' != solution[i] {
			return CheckIncorrect, nil
		}
	}
	if incomplete {
		return CheckPartial, nil
	}
	if err := s.RecordEvent(ctx, record.DateUTC, EventSolve); err != nil {
		return "", err
	}
	return CheckComplete, nil
}

func storedSolution(puzzleJSON string) ([]uint8, error) {
	payload, err := ParsePayload(puzzleJSON)
	if err != nil {
		return nil, err
	}
	return payload.solutionDigits()
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("puzzles service error", attrs...)
}
