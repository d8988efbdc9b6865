package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"imobot-backend/internal/domain"
	"imobot-backend/internal/intent"
	"imobot-backend/internal/store"
)

// ErrEmptyMessage is returned for a blank message.
var ErrEmptyMessage = errors.New("message is empty")

// Recorder persists the chat audit trail.
type Recorder interface {
	SaveChatSession(ctx context.Context, sessionID, userIP, userAgent string) error
	SaveMessage(ctx context.Context, sessionID, role, message string, metadata map[string]any) error
}

// TurnRequest is one incoming customer message.
type TurnRequest struct {
	SessionID string
	Message   string
	UserIP    string
	UserAgent string
}

// TurnResult is the outcome of a turn.
type TurnResult struct {
	SessionID string
	State     domain.State
	Reply     Reply
}

// Service runs turns: it owns session lookup, the audit trail and the
// classifier call around each engine step.
type Service struct {
	sessions   *store.SessionStore
	recorder   Recorder
	classifier intent.Extractor
	engine     *Engine
	logger     *slog.Logger
}

// NewService wires a turn service.
func NewService(sessions *store.SessionStore, recorder Recorder, classifier intent.Extractor, engine *Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions:   sessions,
		recorder:   recorder,
		classifier: classifier,
		engine:     engine,
		logger:     logger,
	}
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return "s_" + uuid.NewString()
}

// Turn handles one message. Turns on the same session run one at a time.
// Persistence failures are logged and never fail the turn.
func (s *Service) Turn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return TurnResult{}, ErrEmptyMessage
	}
	id := req.SessionID
	if id == "" {
		id = NewSessionID()
	}

	session, created := s.sessions.GetOrCreate(id)
	session.Lock()
	defer session.Unlock()

	log := s.logger.With("session_id", id)
	if created {
		log.Debug("session started")
	}

	if err := s.recorder.SaveChatSession(ctx, id, req.UserIP, req.UserAgent); err != nil {
		log.Error("failed to save chat session", "error", err)
	}
	if err := s.recorder.SaveMessage(ctx, id, domain.RoleUser, message, nil); err != nil {
		log.Error("failed to save user message", "error", err)
	}

	guess := s.classify(ctx, log, message, session)
	from := session.State
	reply := s.engine.Step(ctx, session, message, guess)
	session.Turns++

	log.Info("turn handled",
		"from", from,
		"to", session.State,
		"intent", guess.Intent,
		"source", guess.Source,
		"reply_type", reply.Type,
		"turn", session.Turns,
	)

	meta := map[string]any{"state": session.State.String()}
	if err := s.recorder.SaveMessage(ctx, id, domain.RoleAssistant, reply.Text, meta); err != nil {
		log.Error("failed to save assistant message", "error", err)
	}

	return TurnResult{SessionID: id, State: session.State, Reply: reply}, nil
}

func (s *Service) classify(ctx context.Context, log *slog.Logger, message string, session *domain.Session) *intent.Result {
	if s.classifier == nil {
		return &intent.Result{}
	}
	guess, err := s.classifier.Extract(ctx, message, session)
	if err != nil || guess == nil {
		log.Warn("intent classification failed", "error", err)
		return &intent.Result{}
	}
	return guess
}
