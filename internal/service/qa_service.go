package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/docqa/internal/domain"
	"github.com/liliang-cn/docqa/internal/metrics"
	"github.com/liliang-cn/docqa/internal/session"
	"go.uber.org/zap"
)

// QAService answers questions against live sessions
type QAService struct {
	sessions *session.Manager
	history  HistoryStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewQAService creates a new QA service. history may be nil.
func NewQAService(sessions *session.Manager, history HistoryStore, m *metrics.Metrics, logger *zap.Logger) *QAService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QAService{
		sessions: sessions,
		history:  history,
		metrics:  m,
		logger:   logger,
	}
}

// Ask answers question from the document bound to sessionID
func (s *QAService) Ask(ctx context.Context, sessionID, question string) (ans *domain.Answer, err error) {
	sessionID = strings.TrimSpace(sessionID)
	question = strings.TrimSpace(question)
	if sessionID == "" || question == "" {
		return nil, fmt.Errorf("%w: session_id and question are required", domain.ErrInvalidRequest)
	}

	entry, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrUnknownSession
	}

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.Questions.WithLabelValues(metrics.Outcome(err)).Inc()
		}
	}()

	ans, err = entry.Pipeline.Answer(ctx, question)
	if err != nil {
		return nil, err
	}

	s.record(sessionID, question, ans)
	s.logger.Info("Question answered",
		zap.String("session_id", sessionID),
		zap.Int("answer_len", len(ans.Answer)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ans, nil
}

// record appends the exchange to history; failures are logged only
func (s *QAService) record(sessionID, question string, ans *domain.Answer) {
	if s.history == nil {
		return
	}
	for _, m := range []*domain.Message{
		{SessionID: sessionID, Role: domain.RoleUser, Content: question},
		{SessionID: sessionID, Role: domain.RoleAssistant, Content: ans.Answer, Context: ans.Context},
	} {
		if err := s.history.CreateMessage(m); err != nil {
			s.logger.Warn("Failed to record message", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
	}
}

// Session returns the live session for id
func (s *QAService) Session(id string) (*domain.Session, error) {
	entry, ok := s.sessions.Get(id)
	if !ok {
		return nil, domain.ErrUnknownSession
	}
	sess := entry.Session
	return &sess, nil
}

// Delete drops a live session; its history is kept
func (s *QAService) Delete(id string) error {
	if !s.sessions.Delete(id) {
		return domain.ErrUnknownSession
	}
	s.logger.Info("Session deleted", zap.String("session_id", id))
	return nil
}

// History returns the recorded messages of a live or recorded session
func (s *QAService) History(id string) ([]*domain.Message, error) {
	if s.history == nil {
		if _, ok := s.sessions.Get(id); !ok {
			return nil, domain.ErrUnknownSession
		}
		return []*domain.Message{}, nil
	}

	if _, ok := s.sessions.Get(id); !ok {
		recorded, err := s.history.Get(id)
		if err != nil {
			return nil, fmt.Errorf("failed to look up session: %w", err)
		}
		if recorded == nil {
			return nil, domain.ErrUnknownSession
		}
	}
	messages, err := s.history.GetMessages(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return messages, nil
}
