package puzzles

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status tracks a puzzle through its publication lifecycle.
type Status string

const (
	// StatusDraft is the initial state of a created puzzle.
	StatusDraft Status = "draft"
	// StatusPublished makes the puzzle visible on the public endpoints.
	StatusPublished Status = "published"
	// StatusArchived is terminal; no transition leads out of it.
	StatusArchived Status = "archived"
)

const dateLayout = "2006-01-02"

var (
	// ErrInvalidDate indicates a date key that is not a calendar date.
	ErrInvalidDate = errors.New("puzzles: invalid date")
	// ErrInvalidStatus indicates an unrecognized lifecycle status.
	ErrInvalidStatus = errors.New("puzzles: invalid status")
	// ErrInvalidPayload indicates a puzzle payload that cannot be parsed.
	ErrInvalidPayload = errors.New("puzzles: invalid puzzle payload")
	// ErrInvalidGrid indicates a submitted grid with the wrong shape.
	ErrInvalidGrid = errors.New("puzzles: invalid grid")
	// ErrUnknownEvent indicates an unrecognized stats event name.
	ErrUnknownEvent = errors.New("puzzles: unknown event")
	// ErrNotFound indicates no record exists for the requested date.
	ErrNotFound = errors.New("puzzles: not found")
	// ErrConflict indicates an existing record guarded against overwrite.
	ErrConflict = errors.New("puzzles: already exists")
)

// ParseDate validates a YYYY-MM-DD date key.
func ParseDate(raw string) (string, error) {
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return parsed.Format(dateLayout), nil
}

// ParseStatus validates a lifecycle status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusDraft, StatusPublished, StatusArchived:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Puzzle is the persisted record for one calendar date.
type Puzzle struct {
	DateUTC       string     `gorm:"column:date_utc;primaryKey;size:10;not null"`
	Status        Status     `gorm:"column:status;size:16;not null;index"`
	PuzzleJSON    string     `gorm:"column:puzzle_json;type:text;not null"`
	SVG           string     `gorm:"column:svg;type:text"`
	RenderVersion int        `gorm:"column:render_version;not null;default:1"`
	Title         *string    `gorm:"column:title;size:190"`
	Author        *string    `gorm:"column:author;size:190"`
	Difficulty    *int64     `gorm:"column:difficulty"`
	VariantsJSON  string     `gorm:"column:variants;type:text;not null;default:'[]'"`
	CreatedAt     time.Time  `gorm:"column:created_at_utc;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at_utc;autoUpdateTime"`
	PublishedAt   *time.Time `gorm:"column:published_at_utc"`
}

// TableName provides the explicit table binding for GORM.
func (Puzzle) TableName() string {
	return "puzzles"
}

// Variants decodes the stored variant tag list.
func (p Puzzle) Variants() []string {
	var tags []string
	if err := json.Unmarshal([]byte(p.VariantsJSON), &tags); err != nil {
		return nil
	}
	return tags
}

// PuzzleStats is the per-date usage counter row. It has its own lifecycle:
// rows appear on the first event for a date and counters only increase.
type PuzzleStats struct {
	DateUTC    string    `gorm:"column:date_utc;primaryKey;size:10;not null"`
	Views      int64     `gorm:"column:views;not null;default:0"`
	Checks     int64     `gorm:"column:checks;not null;default:0"`
	Solves     int64     `gorm:"column:solves;not null;default:0"`
	LastSeenAt time.Time `gorm:"column:last_seen_utc;not null"`
}

// TableName provides the explicit table binding for GORM.
func (PuzzleStats) TableName() string {
	return "puzzle_stats"
}

// Payload is the puzzle_json blob stored with every record.
type Payload struct {
	Puzzle      string            `json:"puzzle"`
	Solution    []int             `json:"solution"`
	Constraints []json.RawMessage `json:"constraints"`
	Seed        uint64            `json:"seed"`
	ClueCount   int               `json:"clue_count"`
	Symmetry    *string           `json:"symmetry"`
}

// ParsePayload decodes and shape-checks the persisted payload blob. The
// constraint list is allowed to be absent.
func ParsePayload(raw string) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.Puzzle == "" {
		return Payload{}, fmt.Errorf("%w: missing puzzle string", ErrInvalidPayload)
	}
	return payload, nil
}

// solutionDigits extracts the 81 stored solution digits, reporting an
// error when the solution is missing or malformed.
func (p Payload) solutionDigits() ([]uint8, error) {
	if len(p.Solution) != 81 {
		return nil, fmt.Errorf("%w: solution must have 81 digits", ErrInvalidPayload)
	}
	digits := make([]uint8, len(p.Solution))
	for i, value := range p.Solution {
		if value < 1 || value > 9 {
			return nil, fmt.Errorf("%w: solution digits must be 1-9", ErrInvalidPayload)
		}
		digits[i] = uint8(value)
	}
	return digits, nil
}

func encodeRawList(list []json.RawMessage) ([]byte, error) {
	if list == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(list)
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// EventKind enumerates trackable usage events.
type EventKind string

const (
	EventView  EventKind = "view"
	EventCheck EventKind = "check"
	EventSolve EventKind = "solve"
)

// ParseEventKind validates a stats event name.
func ParseEventKind(raw string) (EventKind, error) {
	switch EventKind(raw) {
	case EventView, EventCheck, EventSolve:
		return EventKind(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, raw)
	}
}

// CheckStatus is the outcome of a solve verification.
type CheckStatus string

const (
	// CheckIncorrect means at least one filled cell disagrees.
	CheckIncorrect CheckStatus = "incorrect"
	// CheckPartial means no disagreement but blanks remain.
	CheckPartial CheckStatus = "partial"
	// CheckComplete means every cell matches the stored solution.
	CheckComplete CheckStatus = "complete"
	// CheckUnavailable means the stored solution cannot be used to judge.
	CheckUnavailable CheckStatus = "unavailable"
)
