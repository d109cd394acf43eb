package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/makudoku/backend/internal/auth"
	"github.com/makudoku/backend/internal/engine"
	"github.com/makudoku/backend/internal/generator"
	"github.com/makudoku/backend/internal/puzzles"
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

// The fixed clock pins "today" for the public endpoints.
var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

const fixedToday = "2024-06-15"

type stubGenerator struct {
	result generator.Result
	err    error
	// Custom arguments captured for assertions.
	gotSpecs      []variant.Spec
	gotClueTarget int
	gotSeed       *uint64
}

func (s *stubGenerator) Random() (generator.Result, error) {
	return s.result, s.err
}

func (s *stubGenerator) Custom(specs []variant.Spec, clueTarget int, seed *uint64) (generator.Result, error) {
	s.gotSpecs = specs
	s.gotClueTarget = clueTarget
	s.gotSeed = seed
	return s.result, s.err
}

func stubResult() generator.Result {
	var solution engine.Grid
	for i := 0; i < engine.NN; i++ {
		solution[i] = solvedGrid[i] - '0'
	}
	return generator.Result{
		Puzzle:    solvedGrid[:40] + strings.Repeat(".", 41),
		Solution:  solution,
		Specs:     []variant.Spec{variant.King{}},
		Seed:      42,
		ClueCount: 40,
	}
}

type testServer struct {
	handler   http.Handler
	service   *puzzles.Service
	generator *stubGenerator
	issuer    *auth.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&puzzles.Puzzle{}, &puzzles.PuzzleStats{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	renderer := func(string, []variant.Spec) (string, error) { return "<svg/>", nil }
	service, err := puzzles.NewService(puzzles.ServiceConfig{
		Database: db,
		Clock:    func() time.Time { return fixedNow },
		Renderer: renderer,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("signing-secret"),
		AdminSecret:   "admin-secret",
		Issuer:        "daily-auth",
		Audience:      "daily-api",
		TokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to build token issuer: %v", err)
	}

	stub := &stubGenerator{result: stubResult()}
	handler, err := NewHTTPHandler(Dependencies{
		Puzzles:   service,
		Generator: stub,
		Tokens:    issuer,
		Renderer:  renderer,
		Clock:     func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return &testServer{handler: handler, service: service, generator: stub, issuer: issuer}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	ts.handler.ServeHTTP(recorder, request)
	return recorder
}

func (ts *testServer) adminHeaders(t *testing.T) map[string]string {
	t.Helper()
	token, _, err := ts.issuer.Login("admin-secret")
	if err != nil {
		t.Fatalf("failed to login: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func (ts *testServer) createPuzzle(t *testing.T, date string, status string) {
	t.Helper()
	statusValue := status
	_, err := ts.service.Create(context.Background(), puzzles.CreateRequest{
		Date:       date,
		PuzzleJSON: testPayload(t),
		Status:     &statusValue,
	})
	if err != nil {
		t.Fatalf("failed to seed puzzle: %v", err)
	}
}

func testPayload(t *testing.T) string {
	t.Helper()
	digits := make([]int, 0, 81)
	for i := 0; i < len(solvedGrid); i++ {
		digits = append(digits, int(solvedGrid[i]-'0'))
	}
	payload := map[string]interface{}{
		"puzzle":      solvedGrid,
		"solution":    digits,
		"constraints": []interface{}{map[string]interface{}{"type": "king"}},
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

func mustQuote(value string) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	return string(encoded)
}

func mustDecodeList(t *testing.T, data []byte, target *[]map[string]interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to decode list %q: %v", string(data), err)
	}
}

func decodeJSON(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}
