package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/liliang-cn/docqa/internal/domain"
	"github.com/openai/openai-go/v3"
)

// Client is the embedding and chat completion capability bound to one credential
type Client interface {
	// Embed returns one vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Complete returns the model's reply to messages
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// Factory builds a Client for a resolved API key
type Factory interface {
	NewClient(apiKey string) (Client, error)
}

// Classify wraps transient provider failures (rate limits, server errors,
// timeouts, network errors) with domain.ErrProviderUnavailable.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	return err
}
