// Package api implements the HTTP API for video analysis and Q&A.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/yuin/goldmark"

	"github.com/clipqa/clipqa/internal/buildinfo"
	"github.com/clipqa/clipqa/internal/chat"
	"github.com/clipqa/clipqa/internal/events"
	"github.com/clipqa/clipqa/internal/extract"
	"github.com/clipqa/clipqa/internal/llm"
	"github.com/clipqa/clipqa/internal/prompts"
	"github.com/clipqa/clipqa/internal/store"
	"github.com/clipqa/clipqa/internal/web"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address   string
	port      int
	session   *chat.Session
	extractor *extract.Extractor
	llmClient llm.Client
	archive   *store.Store
	bus       *events.Bus
	logger    *slog.Logger
	server    *http.Server

	// mu guards analysis, the archived record the next exchange is
	// attributed to.
	mu       sync.Mutex
	analysis string
}

// NewServer creates a new API server. archive may be nil when
// persistence is disabled.
func NewServer(address string, port int, session *chat.Session, extractor *extract.Extractor, llmClient llm.Client, archive *store.Store, bus *events.Bus, logger *slog.Logger) *Server {
	return &Server{
		address:   address,
		port:      port,
		session:   session,
		extractor: extractor,
		llmClient: llmClient,
		archive:   archive,
		bus:       bus,
		logger:    logger,
	}
}

// Handler builds the route table. Exposed separately from Start so
// tests can drive the mux through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Analysis and conversation endpoints
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("GET /api/presets", s.handlePresets)
	mux.HandleFunc("GET /api/session", s.handleSession)

	// Archive endpoints
	mux.HandleFunc("GET /api/archive", s.handleArchiveList)
	mux.HandleFunc("GET /api/archive/{id}/exchanges", s.handleArchiveExchanges)

	// Health endpoints
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Live event feed
	mux.HandleFunc("GET /ws/events", s.handleEvents)

	// Web UI
	web.RegisterRoutes(mux)

	return s.withLogging(mux)
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: answer streams and the event socket stay
		// open indefinitely.
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	URL string `json:"url"`
}

// AnalyzeResponse reports a completed extraction and priming. Preview
// carries the head of the extracted content; the full text stays
// server-side in the session.
type AnalyzeResponse struct {
	Video        *extract.Result `json:"video"`
	ContentChars int             `json:"content_chars"`
	Preview      string          `json:"preview"`
	Truncated    bool            `json:"truncated"`
	Model        string          `json:"model"`
}

const previewChars = 500

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.URL == "" {
		s.errorResponse(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := s.extractor.Extract(r.Context(), req.URL)
	if err != nil {
		s.logger.Error("extraction failed", "url", req.URL, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "extraction failed: "+err.Error())
		return
	}

	if err := s.session.Prime(r.Context(), result.Content); err != nil {
		s.logger.Error("priming failed", "url", req.URL, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "priming failed: "+err.Error())
		return
	}

	// Archive the analysis. Best effort: a persistence failure never
	// fails a primed session.
	s.setAnalysisID("")
	if s.archive != nil {
		id, err := s.archive.RecordAnalysis(result.URL, result.Title, result.Source, result.FromCaptions, result.ContentChars)
		if err != nil {
			s.logger.Warn("archive analysis failed", "error", err)
		} else {
			s.setAnalysisID(id)
		}
	}

	preview := result.Content
	if len(preview) > previewChars {
		preview = preview[:previewChars] + "..."
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AnalyzeResponse{
		Video:        result,
		ContentChars: result.ContentChars,
		Preview:      preview,
		Truncated:    result.Truncated,
		Model:        s.session.Model(),
	}, s.logger)
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskChunk is the SSE payload for answer streaming. Delta chunks carry
// incremental text; the final chunk has Done set.
type AskChunk struct {
	Delta string `json:"delta,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Question == "" {
		s.errorResponse(w, http.StatusBadRequest, "question is required")
		return
	}
	if s.session.State() != chat.StateReady {
		s.errorResponse(w, http.StatusConflict, chat.ErrNotPrimed.Error())
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorResponse(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	answer, err := s.session.Ask(r.Context(), req.Question, func(delta string) {
		s.writeSSE(w, AskChunk{Delta: delta})
		flusher.Flush()
	})
	if err != nil {
		// Headers are gone; report the failure in-band. The fallback
		// answer already streamed nothing, so send it as a delta first.
		s.writeSSE(w, AskChunk{Delta: answer})
		s.writeSSE(w, AskChunk{Done: true, Error: err.Error()})
		flusher.Flush()
		return
	}

	if s.archive != nil {
		if id := s.analysisID(); id != "" {
			if _, err := s.archive.RecordExchange(id, req.Question, answer); err != nil {
				s.logger.Warn("archive exchange failed", "error", err)
			}
		}
	}

	s.writeSSE(w, AskChunk{Done: true})
	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// HistoryEntry is one exchange in GET /api/history, with the answer
// rendered to HTML for direct display.
type HistoryEntry struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	AnswerHTML string    `json:"answer_html"`
	Asked      time.Time `json:"asked"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.session.History()

	entries := make([]HistoryEntry, 0, len(history))
	for _, ex := range history {
		entries = append(entries, HistoryEntry{
			Question:   ex.Question,
			Answer:     ex.Answer,
			AnswerHTML: renderMarkdown(ex.Answer, s.logger),
			Asked:      ex.Asked,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"state":   s.session.State(),
		"history": entries,
	}, s.logger)
}

// renderMarkdown converts model output to HTML. On failure the raw
// text is returned so the entry is never lost.
func renderMarkdown(md string, logger *slog.Logger) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		logger.Debug("markdown render failed", "error", err)
		return md
	}
	return buf.String()
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.session.Clear()
	s.setAnalysisID("")

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "cleared"}, s.logger)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"presets": prompts.Presets()}, s.logger)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"state":         s.session.State(),
		"content_chars": s.session.ContentChars(),
		"questions":     len(s.session.History()),
		"model":         s.session.Model(),
	}, s.logger)
}

func (s *Server) handleArchiveList(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.errorResponse(w, http.StatusNotFound, "archive disabled")
		return
	}

	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	analyses, err := s.archive.RecentAnalyses(limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"analyses": analyses}, s.logger)
}

func (s *Server) handleArchiveExchanges(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.errorResponse(w, http.StatusNotFound, "archive disabled")
		return
	}

	exchanges, err := s.archive.ExchangesFor(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"exchanges": exchanges}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	model := "ok"
	if s.llmClient != nil {
		ctx, cancel := context.WithTimeout(r.Context(), llm.HealthCheckTimeout)
		defer cancel()
		if err := s.llmClient.Ping(ctx); err != nil {
			model = "unreachable"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"status":  "healthy",
		"model":   model,
		"session": s.session.State(),
	}, s.logger)
}

func (s *Server) writeSSE(w http.ResponseWriter, chunk AskChunk) {
	data, err := json.Marshal(chunk)
	if err != nil {
		s.logger.Debug("failed to marshal SSE chunk", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		s.logger.Debug("failed to write SSE chunk", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

func (s *Server) setAnalysisID(id string) {
	s.mu.Lock()
	s.analysis = id
	s.mu.Unlock()
}

func (s *Server) analysisID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis
}
