package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/docqa/internal/chunker"
	"github.com/liliang-cn/docqa/internal/config"
	"github.com/liliang-cn/docqa/internal/domain"
	"github.com/liliang-cn/docqa/internal/index"
	"github.com/liliang-cn/docqa/internal/loader"
	"github.com/liliang-cn/docqa/internal/metrics"
	"github.com/liliang-cn/docqa/internal/provider"
	"github.com/liliang-cn/docqa/internal/session"
	"go.uber.org/zap"
)

// credentialPlaceholder is what generated API clients send for an unset string field
const credentialPlaceholder = "string"

// UploadMessage is reported for a successful upload
const UploadMessage = "File uploaded successfully"

// HistoryStore records sessions and Q&A for audit
type HistoryStore interface {
	Create(session *domain.Session) error
	Get(id string) (*domain.Session, error)
	CreateMessage(message *domain.Message) error
	GetMessages(sessionID string) ([]*domain.Message, error)
	CountSessions() (int, error)
	CountQuestions() (int, error)
}

// UploadRequest carries one uploaded document
type UploadRequest struct {
	Filename string
	Content  []byte
	// APIKey is the caller-supplied credential; blank falls back to configuration
	APIKey string
}

// IngestService turns uploaded documents into live sessions
type IngestService struct {
	cfg      *config.Config
	loader   *loader.Loader
	splitter chunker.Chunker
	factory  provider.Factory
	sessions *session.Manager
	history  HistoryStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewIngestService creates a new ingest service. history may be nil.
func NewIngestService(
	cfg *config.Config,
	ld *loader.Loader,
	splitter chunker.Chunker,
	factory provider.Factory,
	sessions *session.Manager,
	history HistoryStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		cfg:      cfg,
		loader:   ld,
		splitter: splitter,
		factory:  factory,
		sessions: sessions,
		history:  history,
		metrics:  m,
		logger:   logger,
	}
}

// ResolveAPIKey picks the per-request credential over the configured one.
// The placeholder value "string" counts as absent.
func (s *IngestService) ResolveAPIKey(formKey string) (string, error) {
	key := strings.TrimSpace(formKey)
	if key == "" || strings.EqualFold(key, credentialPlaceholder) {
		key = strings.TrimSpace(s.cfg.LLM.APIKey)
	}
	if key == "" || strings.EqualFold(key, credentialPlaceholder) {
		return "", domain.ErrMissingCredential
	}
	return key, nil
}

// Upload indexes a document and registers a new session for it.
// Nothing is registered unless every stage succeeds.
func (s *IngestService) Upload(ctx context.Context, req UploadRequest) (sess *domain.Session, err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.Uploads.WithLabelValues(metrics.Outcome(err)).Inc()
		}
	}()

	filename := filepath.Base(strings.TrimSpace(req.Filename))
	if filename == "." || filename == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: missing filename", domain.ErrInvalidRequest)
	}

	apiKey, err := s.ResolveAPIKey(req.APIKey)
	if err != nil {
		return nil, err
	}
	client, err := s.factory.NewClient(apiKey)
	if err != nil {
		return nil, err
	}

	doc, err := s.loader.Load(ctx, filename, req.Content)
	if err != nil {
		return nil, err
	}

	chunks, err := s.split(doc)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s produced no chunks", domain.ErrEmptyDocument, filename)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedAll(ctx, client, texts)
	if err != nil {
		return nil, err
	}

	idx, err := index.Build(ctx, chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	sess = &domain.Session{
		ID:         uuid.New().String(),
		Filename:   filename,
		ChunkCount: len(chunks),
		CreatedAt:  time.Now(),
	}
	entry := &session.Entry{
		Session:  *sess,
		Pipeline: NewPipeline(client, idx, s.cfg.RAG),
	}
	s.sessions.Put(sess.ID, entry)
	sess.ExpiresAt = entry.Session.ExpiresAt

	if s.history != nil {
		if err := s.history.Create(sess); err != nil {
			s.logger.Warn("Failed to record session", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}

	s.logger.Info("Document indexed",
		zap.String("session_id", sess.ID),
		zap.String("filename", filename),
		zap.String("format", doc.Format),
		zap.Int("pages", len(doc.Pages)),
		zap.String("splitter", s.splitter.Name()),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimension", idx.Dimension()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return sess, nil
}

func (s *IngestService) split(doc *domain.Document) ([]domain.Chunk, error) {
	pieces, err := s.splitter.Split(doc.Text())
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, 0, len(pieces))
	for _, p := range pieces {
		i := len(chunks)
		chunks = append(chunks, domain.Chunk{
			Index: i,
			Text:  p,
			Metadata: map[string]string{
				domain.MetadataKeySource: doc.Filename,
				domain.MetadataKeyChunk:  strconv.Itoa(i),
			},
		})
	}
	return chunks, nil
}

// embedAll embeds texts in sequential batches of at most rag.embed_batch_size,
// returning vectors in input order. Any failed batch fails the whole call.
func (s *IngestService) embedAll(ctx context.Context, client provider.Client, texts []string) ([][]float32, error) {
	batchSize := s.cfg.RAG.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		batch, err := client.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d failed: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding batch %d-%d returned %d vectors", start, end, len(batch))
		}
		vectors = append(vectors, batch...)

		if s.metrics != nil {
			s.metrics.EmbeddingBatches.Inc()
			s.metrics.ChunksIndexed.Add(float64(len(batch)))
		}
		s.logger.Debug("Embedded batch", zap.Int("start", start), zap.Int("end", end), zap.Int("total", len(texts)))
	}
	return vectors, nil
}
