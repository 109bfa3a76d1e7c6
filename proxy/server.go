// Package proxy serves the conversational agent over HTTP: one chat
// endpoint wrapping an LLM with a market-data tool and web search.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neuroverse/icpay/logger"
	"github.com/neuroverse/icpay/metrics"
)

type ctxKey int

const requestIDKey ctxKey = 0

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the success body.
type ChatResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId"`
}

// Server is the agent proxy HTTP service.
type Server struct {
	agent   *Agent
	log     logger.Logger
	metrics metrics.Recorder
	http    *http.Server
}

// NewServer builds the service on the given listen address. Nil logger
// and metrics fall back to noops.
func NewServer(addr string, agent *Agent, log logger.Logger, rec metrics.Recorder) *Server {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	s := &Server{agent: agent, log: log, metrics: rec}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Post("/api/v1/chat", s.handleChat)
	r.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// requestID tags every response, matched and unmatched routes alike,
// with a correlation header.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// handleChat runs one agent turn. Any failure, malformed body included,
// is a 500 carrying a generic message and the request id; the raw error
// goes to the log only.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := requestIDFrom(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, id, "invalid request body", err)
		return
	}
	if req.Message == "" {
		s.fail(w, id, "message is required", errors.New("empty message"))
		return
	}

	text, err := s.agent.Respond(r.Context(), req.Message)
	if err != nil {
		s.fail(w, id, "agent error", err)
		return
	}

	s.metrics.IncCounter("chat_success", map[string]string{"token": ""})
	s.metrics.ObserveLatency("chat", time.Since(started), map[string]string{"token": ""})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ChatResponse{Text: text})
}

func (s *Server) fail(w http.ResponseWriter, id, msg string, err error) {
	s.log.Error("chat request failed", map[string]any{"request_id": id, "error": err.Error()})
	s.metrics.IncCounter("chat_error", map[string]string{"token": ""})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, RequestID: id})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.Info("agent proxy listening", map[string]any{"addr": s.http.Addr})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
