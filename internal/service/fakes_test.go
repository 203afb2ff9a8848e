package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/liliang-cn/docqa/internal/chunker"
	"github.com/liliang-cn/docqa/internal/config"
	"github.com/liliang-cn/docqa/internal/domain"
	"github.com/liliang-cn/docqa/internal/loader"
	"github.com/liliang-cn/docqa/internal/metrics"
	"github.com/liliang-cn/docqa/internal/provider"
	"github.com/liliang-cn/docqa/internal/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var errBatch = errors.New("embedding backend exploded")

// fakeClient embeds by keyword features so retrieval is predictable
type fakeClient struct {
	mu         sync.Mutex
	batchSizes []int
	prompts    [][]domain.ChatMessage
	failOnCall int // 1-based; 0 never fails
	shortBy    int // drop this many vectors from every batch
	calls      int
}

func (c *fakeClient) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.batchSizes = append(c.batchSizes, len(texts))
	c.mu.Unlock()

	if c.failOnCall != 0 && call == c.failOnCall {
		return nil, errBatch
	}
	n := len(texts) - c.shortBy
	if n < 0 {
		n = 0
	}
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = keywordVector(texts[i])
	}
	return vecs, nil
}

func (c *fakeClient) Complete(_ context.Context, messages []domain.ChatMessage) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, messages)
	c.mu.Unlock()

	user := messages[len(messages)-1].Content
	if strings.Contains(user, "ZX-492") {
		return "  The secret code is ZX-492.\n", nil
	}
	return "I don't know.", nil
}

func (c *fakeClient) embedCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := []float32{0, 0, 0.1}
	if strings.Contains(lower, "secret") {
		v[0] = 1
	}
	if strings.Contains(lower, "code") {
		v[1] = 1
	}
	return v
}

type fakeFactory struct {
	client *fakeClient
	mu     sync.Mutex
	keys   []string
}

func (f *fakeFactory) NewClient(apiKey string) (provider.Client, error) {
	if apiKey == "" {
		return nil, domain.ErrMissingCredential
	}
	f.mu.Lock()
	f.keys = append(f.keys, apiKey)
	f.mu.Unlock()
	return f.client, nil
}

// memoryHistory is an in-memory HistoryStore
type memoryHistory struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	messages []*domain.Message
	fail     bool
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{sessions: map[string]*domain.Session{}}
}

func (h *memoryHistory) Create(s *domain.Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := *s
	h.sessions[s.ID] = &cp
	return nil
}

func (h *memoryHistory) Get(id string) (*domain.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[id], nil
}

func (h *memoryHistory) CreateMessage(m *domain.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return errors.New("disk full")
	}
	m.CreatedAt = time.Now()
	h.messages = append(h.messages, m)
	return nil
}

func (h *memoryHistory) GetMessages(sessionID string) ([]*domain.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []*domain.Message{}
	for _, m := range h.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (h *memoryHistory) CountSessions() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions), nil
}

func (h *memoryHistory) CountQuestions() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.messages {
		if m.Role == domain.RoleUser {
			n++
		}
	}
	return n, nil
}

type harness struct {
	cfg      *config.Config
	client   *fakeClient
	factory  *fakeFactory
	sessions *session.Manager
	history  *memoryHistory
	ingest   *IngestService
	qa       *QAService
	admin    *AdminService
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.APIKey = ""
	if mutate != nil {
		mutate(cfg)
	}

	splitter, err := chunker.NewRecursive(chunker.Config{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
	})
	if err != nil {
		t.Fatalf("NewRecursive: %v", err)
	}

	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New()
	h := &harness{
		cfg:     cfg,
		client:  &fakeClient{},
		history: newMemoryHistory(),
		logs:    logs,
	}
	h.factory = &fakeFactory{client: h.client}
	h.sessions = session.NewManager(cfg.Session, nil, m)
	h.ingest = NewIngestService(cfg, loader.New(t.TempDir(), nil), splitter, h.factory, h.sessions, h.history, m, zap.New(core))
	h.qa = NewQAService(h.sessions, h.history, m, nil)
	h.admin = NewAdminService(h.sessions, h.history, nil)
	return h
}
