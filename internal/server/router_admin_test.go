package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/makudoku/backend/internal/generator"
	"github.com/makudoku/backend/internal/puzzles"
	"github.com/makudoku/backend/internal/variant"
)

func TestAdminLogin(t *testing.T) {
	ts := newTestServer(t)

	recorder := ts.do(t, http.MethodPost, "/api/admin/login", `{"secret":"admin-secret"}`, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d, body %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeJSON(t, recorder)
	if payload["access_token"] == "" || payload["access_token"] == nil {
		t.Fatalf("expected an access token: %v", payload)
	}
	if payload["token_type"] != "Bearer" {
		t.Fatalf("unexpected token type: %v", payload["token_type"])
	}

	recorder = ts.do(t, http.MethodPost, "/api/admin/login", `{"secret":"guess"}`, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status for bad secret: %d", recorder.Code)
	}
	recorder = ts.do(t, http.MethodPost, "/api/admin/login", `{}`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status for empty secret: %d", recorder.Code)
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	ts := newTestServer(t)

	recorder := ts.do(t, http.MethodGet, "/api/admin/puzzles", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status without token: %d", recorder.Code)
	}
	recorder = ts.do(t, http.MethodGet, "/api/admin/puzzles", "", map[string]string{
		"Authorization": "Bearer forged.token",
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status with forged token: %d", recorder.Code)
	}
}

func TestAdminGenerate(t *testing.T) {
	ts := newTestServer(t)

	recorder := ts.do(t, http.MethodPost, "/api/admin/puzzles/generate", "", ts.adminHeaders(t))
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d, body %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeJSON(t, recorder)
	if payload["svg"] != "<svg/>" {
		t.Fatalf("unexpected svg: %v", payload["svg"])
	}

	puzzleJSON, ok := payload["puzzle_json"].(string)
	if !ok {
		t.Fatalf("expected a puzzle_json string: %v", payload["puzzle_json"])
	}
	parsed, err := puzzles.ParsePayload(puzzleJSON)
	if err != nil {
		t.Fatalf("payload must round-trip: %v", err)
	}
	if parsed.Seed != 42 || parsed.ClueCount != 40 {
		t.Fatalf("unexpected payload bookkeeping: %+v", parsed)
	}
	if len(parsed.Solution) != 81 {
		t.Fatalf("expected full solution in payload, got %d digits", len(parsed.Solution))
	}
	encoded, err := json.Marshal(parsed.Constraints)
	if err != nil {
		t.Fatalf("failed to re-encode constraints: %v", err)
	}
	specs, err := variant.Parse(encoded)
	if err != nil {
		t.Fatalf("constraints must round-trip: %v", err)
	}
	if len(specs) != 1 || specs[0].Kind() != variant.KindKing {
		t.Fatalf("unexpected constraints: %v", specs)
	}
}

func TestAdminGenerateCustomForwardsArguments(t *testing.T) {
	ts := newTestServer(t)

	body := `{"constraints":[{"type":"knight"}],"clue_target":28,"seed":7}`
	recorder := ts.do(t, http.MethodPost, "/api/admin/puzzles/generate/custom", body, ts.adminHeaders(t))
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d, body %s", recorder.Code, recorder.Body.String())
	}

	if len(ts.generator.gotSpecs) != 1 || ts.generator.gotSpecs[0].Kind() != variant.KindKnight {
		t.Fatalf("unexpected forwarded specs: %v", ts.generator.gotSpecs)
	}
	if ts.generator.gotClueTarget != 28 {
		t.Fatalf("unexpected forwarded clue target: %d", ts.generator.gotClueTarget)
	}
	if ts.generator.gotSeed == nil || *ts.generator.gotSeed != 7 {
		t.Fatalf("unexpected forwarded seed: %v", ts.generator.gotSeed)
	}
}

func TestAdminGenerateCustomDefaultsClueTarget(t *testing.T) {
	ts := newTestServer(t)

	recorder := ts.do(t, http.MethodPost, "/api/admin/puzzles/generate/custom", `{}`, ts.adminHeaders(t))
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d, body %s", recorder.Code, recorder.Body.String())
	}
	if ts.generator.gotClueTarget != generator.DefaultClueTarget {
		t.Fatalf("expected default clue target, got %d", ts.generator.gotClueTarget)
	}
	if ts.generator.gotSeed != nil {
		t.Fatalf("expected nil seed, got %v", ts.generator.gotSeed)
	}
}

func TestAdminGenerateCustomRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	recorder := ts.do(t, http.MethodPost, "/api/admin/puzzles/generate/custom",
		`{"constraints":[{"type":"zigzag"}]}`, ts.adminHeaders(t))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status for unknown kind: %d", recorder.Code)
	}

	ts.generator.err = generator.ErrClueTarget
	recorder = ts.do(t, http.MethodPost, "/api/admin/puzzles/generate/custom",
		`{"clue_target":95}`, ts.adminHeaders(t))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status for bad clue target: %d", recorder.Code)
	}
}

func TestAdminCreateAndConflict(t *testing.T) {
	ts := newTestServer(t)
	headers := ts.adminHeaders(t)

	body := `{"date_utc":"2024-06-20","puzzle_json":` + mustQuote(testPayload(t)) + `,"status":"published","title":"launch"}`
	recorder := ts.do(t, http.MethodPost, "/api/admin/puzzles", body, headers)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d, body %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeJSON(t, recorder)
	if payload["status"] != "published" || payload["title"] != "launch" {
		t.Fatalf("unexpected record: %v", payload)
	}
	if payload["published_at_utc"] == nil {
		t.Fatalf("expected a publication timestamp")
	}

	guarded := `{"date_utc":"2024-06-20","puzzle_json":` + mustQuote(testPayload(t)) + `,"overwrite":false}`
	recorder = ts.do(t, http.MethodPost, "/api/admin/puzzles", guarded, headers)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("unexpected status for guarded create: %d", recorder.Code)
	}

	bad := `{"date_utc":"june","puzzle_json":"{}"}`
	recorder = ts.do(t, http.MethodPost, "/api/admin/puzzles", bad, headers)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status for bad date: %d", recorder.Code)
	}
}

func TestAdminListAndGet(t *testing.T) {
	ts := newTestServer(t)
	headers := ts.adminHeaders(t)
	ts.createPuzzle(t, "2024-06-01", "draft")
	ts.createPuzzle(t, "2024-06-02", "published")

	recorder := ts.do(t, http.MethodGet, "/api/admin/puzzles", "", headers)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	var summaries []map[string]interface{}
	mustDecodeList(t, recorder.Body.Bytes(), &summaries)
	if len(summaries) != 2 || summaries[0]["date_utc"] != "2024-06-02" {
		t.Fatalf("unexpected list order: %v", summaries)
	}

	recorder = ts.do(t, http.MethodGet, "/api/admin/puzzles?status=published", "", headers)
	mustDecodeList(t, recorder.Body.Bytes(), &summaries)
	if len(summaries) != 1 || summaries[0]["date_utc"] != "2024-06-02" {
		t.Fatalf("unexpected filtered list: %v", summaries)
	}

	recorder = ts.do(t, http.MethodGet, "/api/admin/puzzles?status=retracted", "", headers)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status for bad filter: %d", recorder.Code)
	}

	recorder = ts.do(t, http.MethodGet, "/api/admin/puzzles/2024-06-01", "", headers)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	record := decodeJSON(t, recorder)
	if record["puzzle_json"] == nil || record["svg"] != "<svg/>" {
		t.Fatalf("unexpected record: %v", record)
	}

	recorder = ts.do(t, http.MethodGet, "/api/admin/puzzles/2030-01-01", "", headers)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unexpected status for missing record: %d", recorder.Code)
	}
}

func TestAdminStatsSynthesizesZeroes(t *testing.T) {
	ts := newTestServer(t)

	recorder := ts.do(t, http.MethodGet, "/api/admin/stats/2024-06-01", "", ts.adminHeaders(t))
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	payload := decodeJSON(t, recorder)
	if payload["views"] != float64(0) || payload["checks"] != float64(0) || payload["solves"] != float64(0) {
		t.Fatalf("unexpected stats: %v", payload)
	}
}

func TestAdminPublishAndArchive(t *testing.T) {
	ts := newTestServer(t)
	headers := ts.adminHeaders(t)
	ts.createPuzzle(t, "2024-06-03", "draft")

	recorder := ts.do(t, http.MethodPost, "/api/admin/puzzles/2024-06-03/publish", "", headers)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	payload := decodeJSON(t, recorder)
	if payload["status"] != "published" || payload["published_at_utc"] == nil {
		t.Fatalf("unexpected record after publish: %v", payload)
	}

	recorder = ts.do(t, http.MethodPost, "/api/admin/puzzles/2024-06-03/archive", "", headers)
	payload = decodeJSON(t, recorder)
	if payload["status"] != "archived" {
		t.Fatalf("unexpected record after archive: %v", payload)
	}
	if payload["published_at_utc"] == nil {
		t.Fatalf("archive must keep the publication timestamp")
	}

	recorder = ts.do(t, http.MethodPost, "/api/admin/puzzles/2030-01-01/publish", "", headers)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unexpected status for missing record: %d", recorder.Code)
	}
}
