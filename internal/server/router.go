// Package server exposes the HTTP surface: the public puzzle endpoints and
// the token-protected admin endpoints.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/makudoku/backend/internal/generator"
	"github.com/makudoku/backend/internal/puzzles"
	"github.com/makudoku/backend/internal/variant"
)

const (
	adminSubjectContextKey = "makudoku_admin_subject"
	requestIDContextKey    = "makudoku_request_id"
	requestIDHeader        = "X-Request-ID"
	dateLayout             = "2006-01-02"
)

var (
	errMissingPuzzlesService = errors.New("puzzles service dependency required")
	errMissingGenerator      = errors.New("generator dependency required")
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingRenderer       = errors.New("renderer dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TokenManager guards the admin endpoints.
type TokenManager interface {
	Login(secret string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// PuzzleGenerator produces puzzles for the random and generate endpoints.
type PuzzleGenerator interface {
	Random() (generator.Result, error)
	Custom(specs []variant.Spec, clueTarget int, seed *uint64) (generator.Result, error)
}

// Dependencies wires the HTTP handler to the rest of the application.
type Dependencies struct {
	Puzzles        *puzzles.Service
	Generator      PuzzleGenerator
	Tokens         TokenManager
	Renderer       puzzles.Renderer
	Clock          func() time.Time
	ClueTarget     int
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router for the configured dependencies.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Puzzles == nil {
		return nil, errMissingPuzzlesService
	}
	if deps.Generator == nil {
		return nil, errMissingGenerator
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Renderer == nil {
		return nil, errMissingRenderer
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	clueTarget := deps.ClueTarget
	if clueTarget <= 0 {
		clueTarget = generator.DefaultClueTarget
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		puzzles:    deps.Puzzles,
		generator:  deps.Generator,
		tokens:     deps.Tokens,
		renderer:   deps.Renderer,
		clock:      clock,
		clueTarget: clueTarget,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)

	api := router.Group("/api")
	api.GET("/puzzle/today", handler.handleToday)
	api.GET("/puzzle/random", handler.handleRandom)
	api.POST("/puzzle/check", handler.handleCheck)
	api.POST("/puzzle/track", handler.handleTrack)

	api.POST("/admin/login", handler.handleAdminLogin)

	admin := api.Group("/admin")
	admin.Use(handler.authorizeRequest)
	admin.POST("/puzzles/generate", handler.handleAdminGenerate)
	admin.POST("/puzzles/generate/custom", handler.handleAdminGenerateCustom)
	admin.POST("/puzzles", handler.handleAdminCreate)
	admin.GET("/puzzles", handler.handleAdminList)
	admin.GET("/puzzles/:date", handler.handleAdminGet)
	admin.GET("/stats/:date", handler.handleAdminStats)
	admin.POST("/puzzles/:date/publish", handler.handleAdminPublish)
	admin.POST("/puzzles/:date/archive", handler.handleAdminArchive)

	return router, nil
}

type httpHandler struct {
	puzzles    *puzzles.Service
	generator  PuzzleGenerator
	tokens     TokenManager
	renderer   puzzles.Renderer
	clock      func() time.Time
	clueTarget int
	logger     *zap.Logger
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, id)
		c.Set(requestIDContextKey, id)
		c.Next()
	}
}

func (h *httpHandler) today() string {
	return h.clock().UTC().Format(dateLayout)
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type puzzleResponsePayload struct {
	SVG      *string  `json:"svg"`
	Variants []string `json:"variants"`
	Title    *string  `json:"title"`
	DateUTC  *string  `json:"date_utc"`
}

func (h *httpHandler) handleToday(c *gin.Context) {
	date := h.today()
	record, err := h.puzzles.GetPublished(c.Request.Context(), date)
	if errors.Is(err, puzzles.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_published"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load today's puzzle", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	variants := record.Variants()
	if variants == nil {
		variants = []string{}
	}
	svg := record.SVG
	c.JSON(http.StatusOK, puzzleResponsePayload{
		SVG:      &svg,
		Variants: variants,
		Title:    record.Title,
		DateUTC:  &record.DateUTC,
	})
}

func (h *httpHandler) handleRandom(c *gin.Context) {
	result, err := h.generator.Random()
	if err != nil {
		h.logger.Error("random generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generation_failed"})
		return
	}
	svg, err := h.renderer(result.Puzzle, result.Specs)
	if err != nil {
		h.logger.Error("render failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render_failed"})
		return
	}
	c.JSON(http.StatusOK, puzzleResponsePayload{
		SVG:      &svg,
		Variants: variant.KindTags(result.Specs),
	})
}

type checkRequestPayload struct {
	Grid string `json:"grid"`
}

func (h *httpHandler) handleCheck(c *gin.Context) {
	var request checkRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	status, err := h.puzzles.VerifySolve(c.Request.Context(), h.today(), request.Grid)
	switch {
	case errors.Is(err, puzzles.ErrInvalidGrid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_grid"})
		return
	case errors.Is(err, puzzles.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_published"})
		return
	case err != nil:
		h.logger.Error("solve verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

type trackRequestPayload struct {
	Event string `json:"event"`
}

func (h *httpHandler) handleTrack(c *gin.Context) {
	var request trackRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	kind, err := puzzles.ParseEventKind(request.Event)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_event"})
		return
	}
	if err := h.puzzles.RecordEvent(c.Request.Context(), h.today(), kind); err != nil {
		h.logger.Error("event tracking failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

type loginRequestPayload struct {
	Secret string `json:"secret"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleAdminLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Secret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	token, expiresIn, err := h.tokens.Login(request.Secret)
	if err != nil {
		h.logger.Warn("admin login rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		// Expired tokens are routine; only unexpected failures warrant a warning.
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(adminSubjectContextKey, subject)
	c.Next()
}

type generateResponsePayload struct {
	PuzzleJSON string   `json:"puzzle_json"`
	SVG        string   `json:"svg"`
	Variants   []string `json:"variants"`
}

func (h *httpHandler) respondGenerated(c *gin.Context, result generator.Result) {
	payloadJSON, err := payloadFromResult(result)
	if err != nil {
		h.logger.Error("payload encoding failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	svg, err := h.renderer(result.Puzzle, result.Specs)
	if err != nil {
		h.logger.Error("render failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render_failed"})
		return
	}
	c.JSON(http.StatusOK, generateResponsePayload{
		PuzzleJSON: payloadJSON,
		SVG:        svg,
		Variants:   variant.KindTags(result.Specs),
	})
}

func (h *httpHandler) handleAdminGenerate(c *gin.Context) {
	result, err := h.generator.Random()
	if err != nil {
		h.logger.Error("generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generation_failed"})
		return
	}
	h.respondGenerated(c, result)
}

type generateCustomRequestPayload struct {
	Constraints json.RawMessage `json:"constraints"`
	ClueTarget  *int            `json:"clue_target"`
	Seed        *uint64         `json:"seed"`
}

func (h *httpHandler) handleAdminGenerateCustom(c *gin.Context) {
	var request generateCustomRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	specs := []variant.Spec{}
	if len(request.Constraints) > 0 {
		parsed, err := variant.Parse(request.Constraints)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_constraints", "detail": err.Error()})
			return
		}
		specs = parsed
	}

	clueTarget := h.clueTarget
	if request.ClueTarget != nil {
		clueTarget = *request.ClueTarget
	}

	result, err := h.generator.Custom(specs, clueTarget, request.Seed)
	switch {
	case errors.Is(err, generator.ErrClueTarget):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_clue_target"})
		return
	case err != nil:
		h.logger.Error("custom generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generation_failed"})
		return
	}
	h.respondGenerated(c, result)
}

type adminCreateRequestPayload struct {
	DateUTC    string   `json:"date_utc"`
	PuzzleJSON string   `json:"puzzle_json"`
	SVG        *string  `json:"svg"`
	Variants   []string `json:"variants"`
	Status     *string  `json:"status"`
	Title      *string  `json:"title"`
	Author     *string  `json:"author"`
	Difficulty *int64   `json:"difficulty"`
	Overwrite  *bool    `json:"overwrite"`
}

func (h *httpHandler) handleAdminCreate(c *gin.Context) {
	var request adminCreateRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	record, err := h.puzzles.Create(c.Request.Context(), puzzles.CreateRequest{
		Date:       request.DateUTC,
		PuzzleJSON: request.PuzzleJSON,
		SVG:        request.SVG,
		Variants:   request.Variants,
		Status:     request.Status,
		Title:      request.Title,
		Author:     request.Author,
		Difficulty: request.Difficulty,
		Overwrite:  request.Overwrite,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, adminPuzzleResponse(record))
}

func (h *httpHandler) handleAdminList(c *gin.Context) {
	var status *puzzles.Status
	if raw, ok := c.GetQuery("status"); ok && raw != "" {
		parsed, err := puzzles.ParseStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
			return
		}
		status = &parsed
	}

	records, err := h.puzzles.List(c.Request.Context(), status)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	summaries := make([]adminPuzzleSummaryPayload, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, adminPuzzleSummary(record))
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *httpHandler) handleAdminGet(c *gin.Context) {
	record, err := h.puzzles.Get(c.Request.Context(), c.Param("date"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, adminPuzzleResponse(record))
}

func (h *httpHandler) handleAdminStats(c *gin.Context) {
	stats, err := h.puzzles.Stats(c.Request.Context(), c.Param("date"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date_utc": stats.DateUTC,
		"views":    stats.Views,
		"checks":   stats.Checks,
		"solves":   stats.Solves,
	})
}

func (h *httpHandler) handleAdminPublish(c *gin.Context) {
	record, err := h.puzzles.Publish(c.Request.Context(), c.Param("date"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, adminPuzzleResponse(record))
}

func (h *httpHandler) handleAdminArchive(c *gin.Context) {
	record, err := h.puzzles.Archive(c.Request.Context(), c.Param("date"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, adminPuzzleResponse(record))
}

func (h *httpHandler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, puzzles.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, puzzles.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, puzzles.ErrInvalidDate),
		errors.Is(err, puzzles.ErrInvalidStatus),
		errors.Is(err, puzzles.ErrInvalidPayload),
		errors.Is(err, puzzles.ErrInvalidGrid),
		errors.Is(err, puzzles.ErrUnknownEvent),
		errors.Is(err, variant.ErrInvalidConstraint),
		errors.Is(err, variant.ErrUnknownKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
	default:
		h.logger.Error("admin request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

type adminPuzzleSummaryPayload struct {
	DateUTC     string   `json:"date_utc"`
	Status      string   `json:"status"`
	Title       *string  `json:"title"`
	Author      *string  `json:"author"`
	Variants    []string `json:"variants"`
	Difficulty  *int64   `json:"difficulty"`
	CreatedAt   string   `json:"created_at_utc"`
	PublishedAt *string  `json:"published_at_utc"`
}

type adminPuzzleResponsePayload struct {
	DateUTC     string   `json:"date_utc"`
	Status      string   `json:"status"`
	Title       *string  `json:"title"`
	Author      *string  `json:"author"`
	PuzzleJSON  string   `json:"puzzle_json"`
	SVG         string   `json:"svg"`
	Variants    []string `json:"variants"`
	Difficulty  *int64   `json:"difficulty"`
	CreatedAt   string   `json:"created_at_utc"`
	UpdatedAt   string   `json:"updated_at_utc"`
	PublishedAt *string  `json:"published_at_utc"`
}

func adminPuzzleSummary(record puzzles.Puzzle) adminPuzzleSummaryPayload {
	return adminPuzzleSummaryPayload{
		DateUTC:     record.DateUTC,
		Status:      string(record.Status),
		Title:       record.Title,
		Author:      record.Author,
		Variants:    variantsOrEmpty(record),
		Difficulty:  record.Difficulty,
		CreatedAt:   formatTimestamp(record.CreatedAt),
		PublishedAt: formatOptionalTimestamp(record.PublishedAt),
	}
}

func adminPuzzleResponse(record puzzles.Puzzle) adminPuzzleResponsePayload {
	return adminPuzzleResponsePayload{
		DateUTC:     record.DateUTC,
		Status:      string(record.Status),
		Title:       record.Title,
		Author:      record.Author,
		PuzzleJSON:  record.PuzzleJSON,
		SVG:         record.SVG,
		Variants:    variantsOrEmpty(record),
		Difficulty:  record.Difficulty,
		CreatedAt:   formatTimestamp(record.CreatedAt),
		UpdatedAt:   formatTimestamp(record.UpdatedAt),
		PublishedAt: formatOptionalTimestamp(record.PublishedAt),
	}
}

func variantsOrEmpty(record puzzles.Puzzle) []string {
	if tags := record.Variants(); tags != nil {
		return tags
	}
	return []string{}
}

func formatTimestamp(value time.Time) string {
	return value.UTC().Format(time.RFC3339)
}

func formatOptionalTimestamp(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := formatTimestamp(*value)
	return &formatted
}

// payloadFromResult encodes a generation result as the persisted payload
// blob, with constraints in their canonical wire form.
func payloadFromResult(result generator.Result) (string, error) {
	wire, err := variant.Wire(result.Specs)
	if err != nil {
		return "", err
	}
	var constraints []json.RawMessage
	if err := json.Unmarshal(wire, &constraints); err != nil {
		return "", err
	}

	solution := make([]int, len(result.Solution))
	for i, digit := range result.Solution {
		solution[i] = int(digit)
	}

	payload := puzzles.Payload{
		Puzzle:      result.Puzzle,
		Solution:    solution,
		Constraints: constraints,
		Seed:        result.Seed,
		ClueCount:   result.ClueCount,
		Symmetry:    result.Symmetry,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
