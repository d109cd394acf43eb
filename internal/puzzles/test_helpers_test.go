package puzzles

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/makudoku/backend/internal/variant"
)

const solvedGrid = "123456789" +
	"456789123" +
	"789123456" +
	"231564897" +
	"564897231" +
	"897231564" +
	"312645978" +
	"645978312" +
	"978312645"

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:puzzles_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Puzzle{}, &PuzzleStats{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    func() time.Time { return time.Unix(1700000600, 0).UTC() },
		Renderer: func(string, []variant.Spec) (string, error) { return "<svg/>", nil },
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, db
}

func testPayload(t *testing.T, puzzle, solution string) string {
	t.Helper()
	digits := make([]int, 0, 81)
	for i := 0; i < len(solution); i++ {
		digits = append(digits, int(solution[i]-'0'))
	}
	payload := map[string]interface{}{
		"puzzle":      puzzle,
		"solution":    digits,
		"constraints": []interface{}{},
		"seed":        1,
		"clue_count":  81,
		"symmetry":    nil,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to encode payload: %v", err)
	}
	return string(encoded)
}

func mustCreate(t *testing.T, service *Service, req CreateRequest) Puzzle {
	t.Helper()
	record, err := service.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	return record
}

func strPtr(value string) *string {
	return &value
}

func boolPtr(value bool) *bool {
	return &value
}
