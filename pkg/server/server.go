// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the HTTP surface of the service: a chat endpoint
// backed by either the tool-calling agent or the direct retrieval flow, a
// feedback endpoint writing to the run store, and health reporting. An
// optional guardrail chain screens queries and masks answers. CORS is
// wide open so browser frontends can call the API directly.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/gnosis/pkg/agent"
	"github.com/jllopis/gnosis/pkg/core"
	"github.com/jllopis/gnosis/pkg/errors"
	"github.com/jllopis/gnosis/pkg/guardrails"
	"github.com/jllopis/gnosis/pkg/rag"
	"github.com/jllopis/gnosis/pkg/runstore"
)

// Answer modes for the chat endpoint.
const (
	ModeAgent  = "agent"
	ModeDirect = "direct"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Query string `json:"query"`
}

// ChatResponse is the reply of POST /chat. ToolCalls is set in agent
// mode, RetrievedDocs in direct mode.
type ChatResponse struct {
	Query         string   `json:"query"`
	Answer        string   `json:"answer"`
	ToolCalls     []string `json:"tool_calls,omitempty"`
	RetrievedDocs []string `json:"retrieved_docs,omitempty"`
	RunID         string   `json:"run_id"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	RunID   string  `json:"run_id"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment,omitempty"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type rootResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Tools   []string `json:"tools"`
}

type healthComponent struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components []healthComponent `json:"components,omitempty"`
}

// Server wires the agent runner, the direct answerer and the run store
// behind the HTTP endpoints.
type Server struct {
	runner   *agent.Runner
	answerer *rag.Answerer
	store    runstore.Store
	health   core.HealthCheckProvider
	guard    *guardrails.Guardrails
	emitter  core.EventEmitter
	mode     string
	tracer   trace.Tracer
}

// Option configures the server.
type Option func(*Server)

// WithMode selects agent or direct answering for the chat endpoint.
func WithMode(mode string) Option {
	return func(s *Server) {
		if mode == ModeAgent || mode == ModeDirect {
			s.mode = mode
		}
	}
}

// WithHealthProvider exposes the given provider on the health endpoint.
func WithHealthProvider(p core.HealthCheckProvider) Option {
	return func(s *Server) {
		s.health = p
	}
}

// WithGuardrails screens chat queries and filters answers through the
// given chain. Nil disables screening.
func WithGuardrails(g *guardrails.Guardrails) Option {
	return func(s *Server) {
		s.guard = g
	}
}

// WithEventEmitter routes feedback lifecycle events to emitter.
func WithEventEmitter(emitter core.EventEmitter) Option {
	return func(s *Server) {
		s.emitter = emitter
	}
}

// New creates the HTTP server around its collaborators. A nil store
// falls back to the in-memory run store.
func New(runner *agent.Runner, answerer *rag.Answerer, store runstore.Store, opts ...Option) *Server {
	s := &Server{
		runner:   runner,
		answerer: answerer,
		store:    store,
		emitter:  core.NoopEventEmitter{},
		mode:     ModeAgent,
		tracer:   otel.Tracer("gnosis/server"),
	}
	if s.store == nil {
		s.store = runstore.NewMemoryStore()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/feedback", s.handleFeedback)
	mux.HandleFunc("/health", s.handleHealth)
	return withCORS(mux)
}

// ListenAndServe runs the HTTP server on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("server.listening", slog.String("addr", addr), slog.String("mode", s.mode))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	tools := []string{}
	if s.runner != nil {
		tools = s.runner.ToolNames()
	}
	writeJSON(w, http.StatusOK, rootResponse{
		Status:  "ok",
		Message: "RAG Agent API is running",
		Tools:   tools,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, errors.New(errors.CodeInvalidInput, "query is required", nil))
		return
	}

	ctx, span := s.tracer.Start(r.Context(), "HTTP.Chat")
	defer span.End()
	ctx, runID := core.EnsureRunID(ctx)

	run := core.NewRun(req.Query, s.mode)
	run.ID = runID

	if s.guard != nil {
		if check := s.guard.CheckInput(ctx, req.Query); check.Blocked {
			run.Fail("blocked: " + check.Reason)
			s.saveRun(ctx, run)
			slog.Warn("server.chat.blocked",
				slog.String("run_id", runID),
				slog.String("guardrail", check.GuardrailID),
				slog.String("reason", check.Reason))
			writeError(w, errors.New(errors.CodeInvalidInput, check.Reason, nil))
			return
		}
	}

	resp := ChatResponse{Query: req.Query, RunID: runID}
	switch s.mode {
	case ModeDirect:
		result, err := s.answerer.Answer(ctx, req.Query)
		if err != nil {
			run.Fail(err.Error())
			s.saveRun(ctx, run)
			writeError(w, err)
			return
		}
		run.RetrievedDocs = result.RetrievedDocs
		resp.Answer = result.Answer
		resp.RetrievedDocs = result.RetrievedDocs
	default:
		result, err := s.runner.Run(ctx, req.Query)
		if err != nil {
			run.Fail(err.Error())
			s.saveRun(ctx, run)
			writeError(w, err)
			return
		}
		run.ToolCalls = result.ToolCallNames()
		resp.Answer = result.Answer
		resp.ToolCalls = run.ToolCalls
	}

	// The stored run keeps the filtered answer so feedback review sees
	// exactly what the user saw.
	resp.Answer = s.filterAnswer(ctx, runID, resp.Answer)
	run.Complete(resp.Answer)

	s.saveRun(ctx, run)
	writeJSON(w, http.StatusOK, resp)
}

// filterAnswer applies the output guardrail chain to an answer.
func (s *Server) filterAnswer(ctx context.Context, runID, answer string) string {
	if s.guard == nil {
		return answer
	}
	filtered := s.guard.FilterOutput(ctx, answer)
	if filtered.Modified {
		slog.Info("server.chat.redacted",
			slog.String("run_id", runID),
			slog.Int("redactions", len(filtered.Redactions)))
	}
	return filtered.Content
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req FeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.RunID == "" {
		writeError(w, errors.New(errors.CodeInvalidInput, "run_id is required", nil))
		return
	}
	if req.Score != 0.0 && req.Score != 1.0 {
		writeError(w, errors.New(errors.CodeInvalidInput, "score must be 1.0 (positive) or 0.0 (negative)", nil))
		return
	}

	fb := &core.Feedback{RunID: req.RunID, Score: req.Score, Comment: req.Comment}
	if err := s.store.SaveFeedback(r.Context(), fb); err != nil {
		writeError(w, err)
		return
	}
	s.emitter.Emit(r.Context(), core.NewEvent(core.EventFeedbackStored, req.RunID, map[string]any{
		"score": req.Score,
	}))
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Feedback submitted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if s.health == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: string(core.HealthHealthy)})
		return
	}

	results, overall := s.health.CheckAll(r.Context())
	resp := healthResponse{Status: string(overall)}
	for _, result := range results {
		resp.Components = append(resp.Components, healthComponent{
			Component: result.Component,
			Status:    string(result.Status),
			Message:   result.Message,
		})
	}
	status := http.StatusOK
	if overall == core.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// saveRun persists the run record. Persistence is advisory: the answer is
// already computed, so a storage failure only costs later feedback lookup.
func (s *Server) saveRun(ctx context.Context, run *core.Run) {
	if err := s.store.SaveRun(ctx, run); err != nil {
		slog.Warn("server.run.save_failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()))
	}
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.New(errors.CodeInvalidInput, "invalid body", err)
	}
	if len(body) == 0 {
		return errors.New(errors.CodeInvalidInput, "empty body", nil)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New(errors.CodeInvalidInput, "malformed JSON: "+err.Error(), nil)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	ge := errors.AsGnosisError(err)
	status := ge.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	body := map[string]any{
		"error": ge.Error(),
		"code":  ge.Code,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// withCORS allows any origin, answering preflight requests directly.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
