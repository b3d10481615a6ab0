package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/yegors/inspect-ocr/pkg/logger"
)

const providerOpenAI = "openai"

type completeFunc func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)

// OpenAIRequestor issues chat-completion requests with an inline image part
type OpenAIRequestor struct {
	complete completeFunc
	settings Settings
	logger   *logger.Logger
}

// NewOpenAIRequestor creates a requestor for an OpenAI-compatible endpoint.
// SDK retries are disabled: each extraction is a single attempt.
func NewOpenAIRequestor(apiKey, baseURL string, httpClient *http.Client, settings Settings, logger *logger.Logger) (*OpenAIRequestor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingAPIKey)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	client := openai.NewClient(opts...)

	return &OpenAIRequestor{
		complete: func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			return client.Chat.Completions.New(ctx, params)
		},
		settings: settings,
		logger:   logger.Named("openai"),
	}, nil
}

// Params builds the chat-completion body for img
func (r *OpenAIRequestor) Params(img Image) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.settings.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(r.settings.Prompt.System),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(r.settings.Prompt.User),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: DataURI(img),
				}),
			}),
		},
		Temperature: openai.Float(r.settings.Temperature),
	}
	if r.settings.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(r.settings.MaxTokens))
	}
	return params
}

// Request validates the image, sends it and returns the completion text
func (r *OpenAIRequestor) Request(ctx context.Context, img Image) (string, error) {
	img, err := Validate(img, r.settings.MaxBytes)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := r.complete(ctx, r.Params(img))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			r.logger.Error("Vision model returned an error status",
				logger.Int("status", apiErr.StatusCode),
				logger.Duration("elapsed", time.Since(start)),
				logger.Error(err))
			detail := apiErr.Message
			if detail == "" {
				detail = http.StatusText(apiErr.StatusCode)
			}
			return "", requestFailed(providerOpenAI, apiErr.StatusCode, detail, nil)
		}
		r.logger.Error("Vision model request failed",
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		return "", requestFailed(providerOpenAI, 0, "", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", requestFailed(providerOpenAI, http.StatusOK, "response has no choices", nil)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", requestFailed(providerOpenAI, http.StatusOK, "response has no completion text", nil)
	}

	r.logger.Info("Vision model responded",
		logger.String("model", r.settings.Model),
		logger.String("finish_reason", string(resp.Choices[0].FinishReason)),
		logger.Int64("total_tokens", resp.Usage.TotalTokens),
		logger.Int("content_len", len(content)),
		logger.Duration("elapsed", time.Since(start)))

	return content, nil
}
