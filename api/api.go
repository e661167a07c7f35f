// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package api serves offense matching and cross-referencing over HTTP.
//
// Every response uses the same envelope: {"success": true, "data": ...} on
// success and {"success": false, "error": {"code": ..., "message": ...}} on
// failure.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/poiesic/lexmap/complaint"
	"github.com/poiesic/lexmap/core"
	"github.com/poiesic/lexmap/corpus"
	"github.com/poiesic/lexmap/search"
)

const (
	// SessionHeader carries the caller's session ID. Requests without one
	// get a new ID, returned in the same header.
	SessionHeader = "X-Session-ID"

	// DefaultHistoryLimit is used when /v1/history has no limit parameter.
	DefaultHistoryLimit = 10
	// MaxTopK caps the candidates a single request may ask for.
	MaxTopK = 50
)

var ErrInvalidRequest = errors.New("invalid request")

// Service is the matching backend behind the handlers. *lexmap.Assistant
// satisfies it. Search records each successful match in search history.
type Service interface {
	Search(ctx context.Context, sessionID, query string, k int) (*core.MatchResult, error)
	CrossReference(section string) (*core.SuccessorRecord, string, bool, error)
	RecentHistory(ctx context.Context, limit int) ([]*core.HistoryEntry, error)
	SessionHistory(ctx context.Context, sessionID string) ([]*core.HistoryEntry, error)
}

// Handler serves the HTTP API.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler) error

// WithLogger sets the logger. Nil falls back to the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) error {
		if logger == nil {
			logger = slog.Default()
		}
		h.logger = logger.With("component", "api")
		return nil
	}
}

// NewHandler creates a handler backed by svc.
func NewHandler(svc Service, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}
	h := &Handler{
		svc:    svc,
		logger: slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// NewRouter returns an engine with recovery, request logging and all routes.
func NewRouter(svc Service, opts ...Option) (*gin.Engine, error) {
	h, err := NewHandler(svc, opts...)
	if err != nil {
		return nil, err
	}
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())
	h.Register(r)
	return r, nil
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	v1 := r.Group("/v1")
	{
		v1.POST("/match", h.Match)
		v1.GET("/xref/:section", h.CrossReference)
		v1.POST("/draft", h.Draft)
		v1.GET("/history", h.History)
	}
}

// MatchRequest is the body of POST /v1/match.
type MatchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// DraftRequest is the body of POST /v1/draft. Details defaults to the query.
type DraftRequest struct {
	Query   string `json:"query"`
	Details string `json:"details"`
}

type offenseView struct {
	Section     string `json:"section"`
	Offense     string `json:"offense"`
	Description string `json:"description"`
	Punishment  string `json:"punishment"`
}

type candidateView struct {
	Rank    int     `json:"rank"`
	Section string  `json:"section"`
	Offense string  `json:"offense"`
	Score   float32 `json:"score"`
}

type successorView struct {
	Ref         string `json:"ref"`
	Section     string `json:"section,omitempty"`
	Description string `json:"description,omitempty"`
	Fallback    bool   `json:"fallback"`
}

// MatchResponse is the data of a successful match.
type MatchResponse struct {
	Query      string          `json:"query"`
	Label      string          `json:"label"`
	Offense    offenseView     `json:"offense"`
	Score      float32         `json:"score"`
	Successor  successorView   `json:"successor"`
	Summary    []complaint.Row `json:"summary"`
	Candidates []candidateView `json:"candidates"`
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Match handles POST /v1/match.
func (h *Handler) Match(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	k := req.TopK
	if k == 0 {
		k = 1
	}
	if k < 1 || k > MaxTopK {
		h.fail(c, http.StatusBadRequest, "INVALID_TOP_K", search.ErrInvalidTopK)
		return
	}

	result, err := h.svc.Search(c.Request.Context(), sessionID(c), req.Query, k)
	if err != nil {
		h.failWith(c, err)
		return
	}
	resp, err := newMatchResponse(result)
	if err != nil {
		h.failWith(c, err)
		return
	}
	ok(c, resp)
}

// CrossReference handles GET /v1/xref/:section.
func (h *Handler) CrossReference(c *gin.Context) {
	section := strings.TrimSpace(c.Param("section"))
	if section == "" {
		h.fail(c, http.StatusBadRequest, "EMPTY_SECTION", core.ErrEmptySection)
		return
	}
	successor, ref, fallback, err := h.svc.CrossReference(section)
	if err != nil {
		h.failWith(c, err)
		return
	}
	ok(c, gin.H{
		"section":   section,
		"successor": newSuccessorView(successor, ref, fallback),
	})
}

// Draft handles POST /v1/draft.
func (h *Handler) Draft(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	result, err := h.svc.Search(c.Request.Context(), sessionID(c), req.Query, 1)
	if err != nil {
		h.failWith(c, err)
		return
	}
	text, err := complaint.Draft(result, req.Details)
	if err != nil {
		h.failWith(c, err)
		return
	}
	ok(c, gin.H{
		"label": result.Label(),
		"draft": text,
	})
}

// History handles GET /v1/history?limit=N. With ?session=ID it returns
// that session's searches, oldest first, instead of the most recent ones.
func (h *Handler) History(c *gin.Context) {
	limit := DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.fail(c, http.StatusBadRequest, "INVALID_LIMIT", ErrInvalidRequest)
			return
		}
		limit = n
	}

	var (
		entries []*core.HistoryEntry
		err     error
	)
	if session := strings.TrimSpace(c.Query("session")); session != "" {
		entries, err = h.svc.SessionHistory(c.Request.Context(), session)
	} else {
		entries, err = h.svc.RecentHistory(c.Request.Context(), limit)
	}
	if err != nil {
		h.failWith(c, err)
		return
	}

	type entryView struct {
		SessionID    string    `json:"session_id"`
		Query        string    `json:"query"`
		Section      string    `json:"section"`
		Offense      string    `json:"offense"`
		SuccessorRef string    `json:"successor_ref"`
		Score        float32   `json:"score"`
		Timestamp    time.Time `json:"timestamp"`
	}
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{
			SessionID:    e.SessionID,
			Query:        e.Query,
			Section:      e.Section,
			Offense:      e.Offense,
			SuccessorRef: e.SuccessorRef,
			Score:        e.Score,
			Timestamp:    e.Timestamp,
		})
	}
	ok(c, views)
}

// sessionID returns the request's session ID, assigning one when the
// header is absent.
func sessionID(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(SessionHeader))
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(SessionHeader, id)
	return id
}

func newMatchResponse(result *core.MatchResult) (*MatchResponse, error) {
	summary, err := complaint.Summary(result)
	if err != nil {
		return nil, err
	}
	resp := &MatchResponse{
		Query: result.Query,
		Label: result.Label(),
		Offense: offenseView{
			Section:     result.Offense.Section,
			Offense:     result.Offense.Offense,
			Description: result.Offense.Description,
			Punishment:  result.Offense.Punishment,
		},
		Score:      result.Score,
		Successor:  newSuccessorView(result.Successor, result.SuccessorRef, result.Fallback),
		Summary:    summary,
		Candidates: make([]candidateView, 0, len(result.Alternatives)),
	}
	for _, cand := range result.Alternatives {
		resp.Candidates = append(resp.Candidates, candidateView{
			Rank:    cand.Rank,
			Section: cand.Offense.Section,
			Offense: cand.Offense.Offense,
			Score:   cand.Score,
		})
	}
	return resp, nil
}

func newSuccessorView(successor *core.SuccessorRecord, ref string, fallback bool) successorView {
	view := successorView{Ref: ref, Fallback: fallback}
	if successor != nil && !fallback {
		view.Section = successor.Section
		view.Description = successor.Description
	}
	return view
}

// statusFor maps a domain error onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrEmptyQuery):
		return http.StatusBadRequest, "EMPTY_QUERY"
	case errors.Is(err, search.ErrInvalidTopK):
		return http.StatusBadRequest, "INVALID_TOP_K"
	case errors.Is(err, core.ErrEmptyCorpus), errors.Is(err, corpus.ErrNotEmbedded):
		return http.StatusServiceUnavailable, "CORPUS_UNAVAILABLE"
	case errors.Is(err, core.ErrEmbedding):
		return http.StatusBadGateway, "EMBEDDING_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func (h *Handler) failWith(c *gin.Context, err error) {
	status, code := statusFor(err)
	h.fail(c, status, code, err)
}

func (h *Handler) fail(c *gin.Context, status int, code string, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "code", code, "err", err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": err.Error(),
		},
	})
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}
