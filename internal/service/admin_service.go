package service

import (
	"context"

	"github.com/liliang-cn/docqa/internal/domain"
	"github.com/liliang-cn/docqa/internal/session"
	"go.uber.org/zap"
)

// AdminService handles admin operations
type AdminService struct {
	sessions *session.Manager
	history  HistoryStore
	logger   *zap.Logger
}

// NewAdminService creates a new admin service. history may be nil.
func NewAdminService(sessions *session.Manager, history HistoryStore, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		sessions: sessions,
		history:  history,
		logger:   logger,
	}
}

// GetStats reports live occupancy and recorded totals
func (s *AdminService) GetStats(ctx context.Context) (*domain.Stats, error) {
	live := s.sessions.Stats()
	stats := &domain.Stats{
		LiveSessions: live.Live,
		MaxSessions:  live.Capacity,
	}
	if s.history == nil {
		return stats, nil
	}

	var err error
	if stats.RecordedSessions, err = s.history.CountSessions(); err != nil {
		s.logger.Warn("Failed to count sessions", zap.Error(err))
	}
	if stats.TotalQuestions, err = s.history.CountQuestions(); err != nil {
		s.logger.Warn("Failed to count questions", zap.Error(err))
	}
	return stats, nil
}
