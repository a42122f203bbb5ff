// Package http exposes the conversation orchestrator to the web layer as a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/orchestrator"
	"github.com/aretw0/teller/pkg/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// MaxBodyBytes bounds request bodies; the message itself is limited separately.
const MaxBodyBytes = 1 << 20

// Service is the part of the orchestrator the API needs.
type Service interface {
	Handle(ctx context.Context, req orchestrator.TurnRequest) orchestrator.TurnResponse
	Cancel(ctx context.Context, identity string) error
	Pending(ctx context.Context, identity string) (*domain.PendingSlotState, error)
	Registry() *schema.Registry
}

// Server holds the API handlers.
type Server struct {
	svc     Service
	metrics http.Handler
	health  func(context.Context) error
	origins []string
	logger  *slog.Logger

	perMinute int
	burst     int
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter // identity -> limiter
	pruned    time.Time
	now       func() time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithHealthCheck makes /healthz report 503 while check fails.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(s *Server) { s.health = check }
}

// WithAllowedOrigins restricts CORS origins (default "*").
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithRateLimit caps chat messages per identity at perMinute, allowing
// bursts of burst. Zero disables the limit.
func WithRateLimit(perMinute, burst int) Option {
	return func(s *Server) {
		s.perMinute = perMinute
		s.burst = max(burst, 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewHandler creates the HTTP handler.
func NewHandler(svc Service, opts ...Option) http.Handler {
	s := &Server{
		svc:      svc,
		origins:  []string{"*"},
		logger:   logging.NewNop(),
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestSize(MaxBodyBytes))

	r.Get("/healthz", s.Health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.Chat)
		r.Get("/operations", s.Operations)
		r.Get("/sessions/{identity}/pending", s.GetPending)
		r.Delete("/sessions/{identity}/pending", s.CancelPending)
	})
	return r
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Profile  domain.Profile  `json:"profile"`
	Message  string          `json:"message"`
	History  []domain.Turn   `json:"history,omitempty"`
	Language domain.Language `json:"language,omitempty"`
}

// OperationInfo is one entry of GET /v1/operations.
type OperationInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Chat handles POST /v1/chat. Turn failures are answered with 200 and a
// localized message; only malformed requests get an error status.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var body ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("Chat: invalid request body", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if body.Profile.ID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "profile.id is required"})
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	if !s.allow(body.Profile.Identity()) {
		s.logger.Warn("Chat: rate limited", "identity", body.Profile.Identity())
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many messages"})
		return
	}

	resp := s.svc.Handle(r.Context(), orchestrator.TurnRequest{
		Profile:  body.Profile,
		Message:  body.Message,
		History:  body.History,
		Language: body.Language,
	})
	if resp.RequestID != "" {
		w.Header().Set("X-Dispatch-Id", resp.RequestID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) allow(identity string) bool {
	if s.perMinute <= 0 {
		return true
	}
	now := s.now()
	s.mu.Lock()
	if now.Sub(s.pruned) >= time.Minute {
		s.pruneLimiters(now)
	}
	limiter, ok := s.limiters[identity]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(s.perMinute)/60), s.burst)
		s.limiters[identity] = limiter
	}
	s.mu.Unlock()
	return limiter.AllowN(now, 1)
}

// pruneLimiters drops limiters whose bucket has refilled; a new limiter
// starts full, so nothing is lost. The caller holds s.mu.
func (s *Server) pruneLimiters(now time.Time) {
	for id, l := range s.limiters {
		if l.TokensAt(now) >= float64(s.burst) {
			delete(s.limiters, id)
		}
	}
	s.pruned = now
}

// Operations handles GET /v1/operations.
func (s *Server) Operations(w http.ResponseWriter, r *http.Request) {
	specs := s.svc.Registry().ToolSpecs()
	out := make([]OperationInfo, len(specs))
	for i, spec := range specs {
		out[i] = OperationInfo{Name: spec.Name, Description: spec.Description, Parameters: spec.Parameters}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPending handles GET /v1/sessions/{identity}/pending.
func (s *Server) GetPending(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	state, err := s.svc.Pending(r.Context(), identity)
	if errors.Is(err, domain.ErrNoPendingCall) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no pending call"})
		return
	}
	if err != nil {
		s.logger.Error("Loading pending state failed", "identity", identity, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// CancelPending handles DELETE /v1/sessions/{identity}/pending.
func (s *Server) CancelPending(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if err := s.svc.Cancel(r.Context(), identity); err != nil {
		s.logger.Error("Cancelling pending call failed", "identity", identity, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":  "ok",
		"version": strings.TrimSpace(teller.Version),
	}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			status["status"] = "unavailable"
			status["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
