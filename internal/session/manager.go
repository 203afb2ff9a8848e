package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/liliang-cn/docqa/internal/config"
	"github.com/liliang-cn/docqa/internal/domain"
	"github.com/liliang-cn/docqa/internal/metrics"
	"go.uber.org/zap"
)

// Answerer answers questions against one session's document
type Answerer interface {
	Answer(ctx context.Context, question string) (*domain.Answer, error)
}

// Entry is what a live session holds
type Entry struct {
	Session  domain.Session
	Pipeline Answerer
}

// Stats describes the registry occupancy
type Stats struct {
	Live     int           `json:"live"`
	Capacity int           `json:"capacity"`
	TTL      time.Duration `json:"ttl"`
}

// Manager is a bounded registry of live sessions. Entries expire a fixed TTL
// after they are added; when full, the least recently used entry is evicted.
// It is safe for concurrent use.
type Manager struct {
	cache    *expirable.LRU[string, *Entry]
	capacity int
	ttl      time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics

	// ids being removed through Delete, so onEvict can tell them apart
	deleting sync.Map
}

// NewManager creates a manager sized by cfg
func NewManager(cfg config.SessionConfig, logger *zap.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	mgr := &Manager{
		capacity: cfg.MaxSessions,
		ttl:      cfg.TTL,
		logger:   logger,
		metrics:  m,
	}
	// The callback runs under the cache lock and must not call back into it.
	mgr.cache = expirable.NewLRU[string, *Entry](cfg.MaxSessions, mgr.onEvict, cfg.TTL)
	return mgr
}

func (m *Manager) onEvict(id string, e *Entry) {
	reason := m.evictReason(id, e)
	fields := []zap.Field{
		zap.String("session_id", id),
		zap.String("filename", e.Session.Filename),
		zap.Duration("age", time.Since(e.Session.CreatedAt)),
	}
	if reason == metrics.ReasonDeleted {
		m.logger.Info("session deleted", fields...)
	} else {
		m.logger.Info("session evicted", append(fields, zap.String("reason", reason))...)
	}
	if m.metrics != nil {
		m.metrics.Evictions.WithLabelValues(reason).Inc()
	}
}

func (m *Manager) evictReason(id string, e *Entry) string {
	if _, ok := m.deleting.Load(id); ok {
		return metrics.ReasonDeleted
	}
	if !e.Session.ExpiresAt.IsZero() && !time.Now().Before(e.Session.ExpiresAt) {
		return metrics.ReasonExpired
	}
	return metrics.ReasonCapacity
}

// Put registers e under id, stamping its expiry
func (m *Manager) Put(id string, e *Entry) {
	if m.ttl > 0 {
		e.Session.ExpiresAt = time.Now().Add(m.ttl)
	}
	m.cache.Add(id, e)
	m.syncGauge()
}

// Get returns the live entry for id
func (m *Manager) Get(id string) (*Entry, bool) {
	return m.cache.Get(id)
}

// Delete drops id, reporting whether it was live
func (m *Manager) Delete(id string) bool {
	m.deleting.Store(id, struct{}{})
	ok := m.cache.Remove(id)
	m.deleting.Delete(id)
	m.syncGauge()
	return ok
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Stats returns current occupancy
func (m *Manager) Stats() Stats {
	m.syncGauge()
	return Stats{
		Live:     m.cache.Len(),
		Capacity: m.capacity,
		TTL:      m.ttl,
	}
}

func (m *Manager) syncGauge() {
	if m.metrics != nil {
		m.metrics.LiveSessions.Set(float64(m.cache.Len()))
	}
}
