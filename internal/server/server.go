package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"imobot-backend/internal/config"
	"imobot-backend/internal/dialogue"
	"imobot-backend/internal/domain"
	"imobot-backend/internal/types"
)

const (
	emptyMessageReply = "Please provide a message."
	genericErrorReply = "Sorry, I encountered an error. Please try again."

	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// ChatService runs one conversation turn.
type ChatService interface {
	Turn(ctx context.Context, req dialogue.TurnRequest) (dialogue.TurnResult, error)
}

// HistoryStore serves the audit log and the database health probe.
type HistoryStore interface {
	GetChatHistory(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
	Ping(ctx context.Context) error
}

type Server struct {
	router *chi.Mux
	chat   ChatService
	store  HistoryStore
	cfg    config.Config
	logger *slog.Logger
}

// NewServer builds the HTTP surface. store may be nil, in which case the
// history endpoint is unavailable and health omits the database probe.
// Credentialed CORS is only allowed for explicit origins.
func NewServer(cfg config.Config, chat ChatService, store HistoryStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	s := &Server{
		router: r,
		chat:   chat,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", "X-Session-Id"},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: !slices.Contains(cfg.AllowedOrigins, "*"),
		MaxAge:           300,
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/chat", s.handleChat)
	s.router.Get("/api/chat", s.handleChat)
	// history exposes customer contact details, so it is a debug-only route
	if s.cfg.Debug {
		s.router.Get("/api/sessions/{sessionID}/history", s.handleHistory)
	}
	if s.cfg.FrontendDir != "" {
		if info, err := os.Stat(s.cfg.FrontendDir); err == nil && info.IsDir() {
			s.router.Handle("/*", staticHandler(s.cfg.FrontendDir))
		} else {
			s.logger.Warn("frontend directory not found, static files disabled", "dir", s.cfg.FrontendDir)
		}
	}
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp.Database = "ok"
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("database ping failed", "error", err)
			resp.Database = "unavailable"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(w, r)
	if err != nil || strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, textResponse(emptyMessageReply))
		return
	}
	sid := resolveSessionID(r, req.SessionID)

	res, err := s.chat.Turn(r.Context(), dialogue.TurnRequest{
		SessionID: sid,
		Message:   req.Message,
		UserIP:    clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if errors.Is(err, dialogue.ErrEmptyMessage) {
		writeJSON(w, http.StatusBadRequest, textResponse(emptyMessageReply))
		return
	}
	if err != nil {
		s.logger.Error("chat turn failed", "session_id", sid, "error", err)
		writeJSON(w, http.StatusInternalServerError, textResponse(genericErrorReply))
		return
	}

	SetSessionCookie(w, r, res.SessionID)
	w.Header().Set("X-Session-Id", res.SessionID)
	writeJSON(w, http.StatusOK, chatResponse(res))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "chat history is not available")
		return
	}
	sid := chi.URLParam(r, "sessionID")
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	msgs, err := s.store.GetChatHistory(r.Context(), sid, limit)
	if err != nil {
		s.logger.Error("failed to load chat history", "session_id", sid, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load chat history")
		return
	}
	out := types.HistoryResponse{SessionID: sid, Messages: make([]types.HistoryMessage, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, types.HistoryMessage{
			Role:      m.Role,
			Message:   m.Message,
			Metadata:  m.Metadata,
			Timestamp: m.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeChatRequest reads a JSON body for POST and query parameters for GET.
func decodeChatRequest(w http.ResponseWriter, r *http.Request) (types.ChatRequest, error) {
	var req types.ChatRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req.Message = q.Get("message")
		req.SessionID = q.Get("sessionId")
		return req, nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req)
	return req, err
}

func chatResponse(res dialogue.TurnResult) types.ChatResponse {
	out := types.ChatResponse{
		Type:        res.Reply.Type,
		Reply:       res.Reply.Text,
		Suggestions: res.Reply.Suggestions,
		SessionID:   res.SessionID,
		State:       res.State.String(),
	}
	if out.Suggestions == nil {
		out.Suggestions = []string{}
	}
	for _, p := range res.Reply.Parts {
		out.Data = append(out.Data, types.PartData{
			PartNo:      p.InternalReference,
			Description: p.ProductName,
			Qty:         p.QuantityOnHand,
			UnitPrice:   p.SalesPrice,
		})
	}
	return out
}

func textResponse(reply string) types.ChatResponse {
	return types.ChatResponse{Type: dialogue.ReplyText, Reply: reply, Suggestions: []string{}}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorResponse{Error: msg})
}

// staticHandler serves the chat widget, falling back to index.html for
// paths that are not files.
func staticHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err != nil || info.IsDir() && !hasIndex(name) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
}

func hasIndex(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "index.html"))
	return err == nil
}
