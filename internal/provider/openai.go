package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liliang-cn/docqa/internal/config"
	"github.com/liliang-cn/docqa/internal/domain"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIFactory creates OpenAI-compatible clients sharing one configuration
type OpenAIFactory struct {
	cfg config.LLMConfig
}

// NewOpenAIFactory creates a factory from LLM configuration
func NewOpenAIFactory(cfg config.LLMConfig) *OpenAIFactory {
	return &OpenAIFactory{cfg: cfg}
}

// NewClient creates a client authenticated with apiKey
func (f *OpenAIFactory) NewClient(apiKey string) (Client, error) {
	if apiKey == "" {
		return nil, domain.ErrMissingCredential
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(f.cfg.MaxRetries),
		option.WithRequestTimeout(timeout),
	}
	if f.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(f.cfg.BaseURL))
	}

	return &OpenAIClient{
		client:         openai.NewClient(opts...),
		embeddingModel: f.cfg.EmbeddingModel,
		chatModel:      f.cfg.ChatModel,
		temperature:    f.cfg.Temperature,
	}, nil
}

// OpenAIClient implements Client over the OpenAI API
type OpenAIClient struct {
	client         openai.Client
	embeddingModel string
	chatModel      string
	temperature    float64
}

// Embed sends texts in a single embeddings request
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", Classify(err))
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding request returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(vecs) || vecs[idx] != nil {
			return nil, fmt.Errorf("embedding response has invalid index %d", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vecs[idx] = vec
	}
	return vecs, nil
}

// Complete sends messages to the chat completion endpoint
func (c *OpenAIClient) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.chatModel),
		Messages:    params,
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", Classify(err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
