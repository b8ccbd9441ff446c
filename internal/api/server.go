// Package api exposes the shopping assistant over HTTP: session CRUD,
// message ingestion, an SSE event stream with replay, and approval
// resolution for gated tool calls.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pricewise-labs/pricewise/internal/approval"
	"github.com/pricewise-labs/pricewise/internal/config"
	"github.com/pricewise-labs/pricewise/internal/events"
	"github.com/pricewise-labs/pricewise/internal/store"
)

type Server struct {
	store   store.Store
	broker  Broker
	runtime TurnRunner
	gate    *approval.Gate
	cfg     config.Config
}

type Broker interface {
	Publish(event events.SessionEvent)
	Subscribe(ctx context.Context, sessionID string) <-chan events.SessionEvent
}

// TurnRunner processes one user message asynchronously; the server returns
// 202 and the caller follows progress on the event stream.
type TurnRunner interface {
	RunTurn(ctx context.Context, sessionID string, content string) error
}

func NewServer(store store.Store, broker Broker, runtime TurnRunner, gate *approval.Gate, cfg config.Config) *Server {
	return &Server{
		store:   store,
		broker:  broker,
		runtime: runtime,
		gate:    gate,
		cfg:     cfg,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Post("/chat/sessions", s.createSession)
	r.Get("/chat/sessions", s.listSessions)
	r.Get("/chat/sessions/{id}", s.getSession)
	r.Delete("/chat/sessions/{id}", s.deleteSession)
	r.Post("/chat/sessions/{id}/messages", s.addMessage)
	r.Get("/chat/sessions/{id}/messages", s.listMessages)
	r.Get("/chat/sessions/{id}/events", s.streamEvents)
	r.Post("/chat/sessions/{id}/approvals", s.resolveApprovals)
	r.Get("/chat/sessions/{id}/approvals", s.listApprovals)
	r.Get("/chat/sessions/{id}/wishlist", s.listWishlist)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if method == http.MethodGet && strings.HasSuffix(cleanPath, "/events") {
		return true
	}
	if method == http.MethodGet && cleanPath == "/chat/sessions" {
		return true
	}
	if method == http.MethodOptions {
		return true
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if _, err := s.store.ListSessions(ctx); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	if strings.TrimSpace(s.cfg.TavilyAPIKey) == "" {
		subsystems["search"] = subsystemStatus{Status: "skipped"}
	} else {
		subsystems["search"] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

type createSessionRequest struct {
	Message string `json:"message"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	req := createSessionRequest{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
	}

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	session := store.Session{ID: id, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateSession(r.Context(), session); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if message := strings.TrimSpace(req.Message); message != "" {
		go s.runTurn(id, message)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session_id": id,
		"created_at": now,
	})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"sessions": sessions})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.GetSession(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(session)
}

// deleteSession tears the session down: history, wishlist, and the event
// log all go with it.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if err := s.store.DeleteSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) addMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req addMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		http.Error(w, "message content required", http.StatusBadRequest)
		return
	}

	if _, err := s.store.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	go s.runTurn(sessionID, content)

	w.WriteHeader(http.StatusAccepted)
}

// runTurn detaches the turn from the request's lifetime. Approval waits can
// outlive the POST by minutes; only process shutdown should cancel them.
func (s *Server) runTurn(sessionID string, content string) {
	_ = s.runtime.RunTurn(context.Background(), sessionID, content)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.ListMessages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": messages})
}

func (s *Server) listWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListWishlist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
}

type resolveApprovalsRequest struct {
	Approved  *bool           `json:"approved"`
	Decisions map[string]bool `json:"decisions"`
}

// resolveApprovals accepts either shape: a single boolean applied to every
// call suspended for this session, or per-call decisions keyed by approval
// id. Other sessions' calls are out of reach either way.
func (s *Server) resolveApprovals(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req resolveApprovalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	switch {
	case len(req.Decisions) > 0:
		if err := s.gate.ResolveBatch(sessionID, req.Decisions); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"resolved": len(req.Decisions)})
	case req.Approved != nil:
		resolved := s.gate.ResolveAll(sessionID, *req.Approved)
		if resolved == 0 {
			http.Error(w, "no pending approvals", http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"resolved": resolved})
	default:
		http.Error(w, "approved or decisions required", http.StatusBadRequest)
	}
}

func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"pending": s.gate.Pending(chi.URLParam(r, "id"))})
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	afterSeq := parseAfterSeq(sessionID, r)
	stored, err := s.store.ListEvents(ctx, sessionID, afterSeq)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, event := range stored {
		sendSSE(w, toEvent(event))
		flusher.Flush()
	}

	eventsChan := s.broker.Subscribe(ctx, sessionID)
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			sendSSE(w, event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, event events.SessionEvent) {
	payload, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s:%d\n", event.SessionID, event.Seq)
	fmt.Fprint(w, "event: session_event\n")
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func toEvent(event store.SessionEvent) events.SessionEvent {
	return events.SessionEvent{
		SessionID: event.SessionID,
		Seq:       event.Seq,
		Type:      events.NormalizeType(event.Type),
		Ts:        event.Timestamp,
		Payload:   event.Payload,
	}
}

func parseAfterSeq(sessionID string, r *http.Request) int64 {
	afterParam := strings.TrimSpace(r.URL.Query().Get("after_seq"))
	if afterParam != "" {
		if parsed, err := strconv.ParseInt(afterParam, 10, 64); err == nil {
			return parsed
		}
	}
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		return 0
	}
	parts := strings.Split(lastEventID, ":")
	if len(parts) != 2 {
		return 0
	}
	if parts[0] != sessionID {
		return 0
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0
	}
	return seq
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := s.cfg.AllowOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	return server.ListenAndServe()
}
