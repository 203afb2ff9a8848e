package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/liliang-cn/docqa/internal/config"
	"github.com/liliang-cn/docqa/internal/domain"
	"github.com/liliang-cn/docqa/internal/index"
	"github.com/liliang-cn/docqa/internal/provider"
)

// SystemPrompt constrains the model to the retrieved context
const SystemPrompt = "You are a helpful assistant. Use only the provided context to answer."

const contextSeparator = "\n---\n"

// Pipeline answers questions against one indexed document
type Pipeline struct {
	client       provider.Client
	index        *index.Index
	topK         int
	contextChars int
}

// NewPipeline binds an index to the client that embedded it
func NewPipeline(client provider.Client, idx *index.Index, cfg config.RAGConfig) *Pipeline {
	return &Pipeline{
		client:       client,
		index:        idx,
		topK:         cfg.TopK,
		contextChars: cfg.ContextChars,
	}
}

// Answer retrieves the closest chunks to question and asks the chat model
// to answer from them alone. Prior questions are never included.
func (p *Pipeline) Answer(ctx context.Context, question string) (*domain.Answer, error) {
	vecs, err := p.client.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("question embedding returned %d vectors", len(vecs))
	}

	hits, err := p.index.Query(ctx, vecs[0], p.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	reply, err := p.client.Complete(ctx, BuildPrompt(question, hits))
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &domain.Answer{
		Answer:  strings.TrimSpace(reply),
		Context: BuildContext(hits, p.contextChars),
	}, nil
}

// BuildPrompt renders the system and user messages for question
func BuildPrompt(question string, hits []domain.RetrievedChunk) []domain.ChatMessage {
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: SystemPrompt},
		{Role: domain.RoleUser, Content: fmt.Sprintf("Question: %s\n\nContext: %s", question, strings.Join(texts, "\n\n"))},
	}
}

// BuildContext joins the first limit runes of each chunk
func BuildContext(hits []domain.RetrievedChunk, limit int) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = truncateRunes(h.Text, limit)
	}
	return strings.Join(parts, contextSeparator)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
