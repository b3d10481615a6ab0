package extraction

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/yegors/inspect-ocr/internal/config"
	"github.com/yegors/inspect-ocr/internal/prompt"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

// Requestor sends one image to a vision model and returns its raw completion text
type Requestor interface {
	Request(ctx context.Context, img Image) (string, error)
}

// Settings holds the provider-independent request parameters
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature float64
	MaxBytes    int
	Prompt      prompt.Prompt
}

// New builds the requestor selected by cfg.Provider
func New(cfg config.ExtractionConfig, p prompt.Prompt, logger *logger.Logger) (Requestor, error) {
	settings := Settings{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		MaxBytes:    cfg.MaxImageMB << 20,
		Prompt:      p,
	}

	httpClient := newHTTPClient(cfg.TimeoutSeconds)

	// Typed nils must not escape as a non-nil Requestor
	switch cfg.Provider {
	case "openai":
		r, err := NewOpenAIRequestor(cfg.OpenAIAPIKey, cfg.BaseURL, httpClient, settings, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "gemini":
		r, err := NewGeminiRequestor(cfg.GeminiAPIKey, cfg.GeminiEndpoint, httpClient, settings, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Provider)
	}
}

func newHTTPClient(timeoutSeconds int) *http.Client {
	c := &http.Client{}
	if timeoutSeconds > 0 {
		c.Timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return c
}
