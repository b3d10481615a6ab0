package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/yegors/inspect-ocr/pkg/logger"
)

const providerGemini = "gemini"

// GeminiRequestor sends the photograph to a Gemini model as an inline blob
type GeminiRequestor struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	settings   Settings
	logger     *logger.Logger
}

// NewGeminiRequestor creates a Gemini requestor. An empty endpoint uses the
// SDK default; httpClient carries the request timeout.
func NewGeminiRequestor(apiKey, endpoint string, httpClient *http.Client, settings Settings, logger *logger.Logger) (*GeminiRequestor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingAPIKey)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &GeminiRequestor{
		apiKey:     strings.TrimSpace(apiKey),
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: httpClient,
		settings:   settings,
		logger:     logger.Named("gemini"),
	}, nil
}

// clientOptions builds the SDK options. A custom HTTP client bypasses the
// SDK's own key handling, so the key is also set by apiKeyTransport.
func (g *GeminiRequestor) clientOptions() []option.ClientOption {
	base := g.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc := *g.httpClient
	hc.Transport = &apiKeyTransport{key: g.apiKey, base: base}

	opts := []option.ClientOption{
		option.WithAPIKey(g.apiKey),
		option.WithHTTPClient(&hc),
	}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	return opts
}

type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("x-goog-api-key", t.key)
	return t.base.RoundTrip(r)
}

// Request validates the image, sends it and returns the first text part
func (g *GeminiRequestor) Request(ctx context.Context, img Image) (string, error) {
	img, err := Validate(img, g.settings.MaxBytes)
	if err != nil {
		return "", err
	}

	cl, err := genai.NewClient(ctx, g.clientOptions()...)
	if err != nil {
		return "", requestFailed(providerGemini, 0, "client setup", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.settings.Model)
	temp := float32(g.settings.Temperature)
	m.GenerationConfig = genai.GenerationConfig{Temperature: &temp}
	if g.settings.MaxTokens > 0 {
		n := int32(g.settings.MaxTokens)
		m.GenerationConfig.MaxOutputTokens = &n
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(g.settings.Prompt.System)},
	}

	start := time.Now()
	resp, err := m.GenerateContent(ctx,
		genai.Text(g.settings.Prompt.User),
		&genai.Blob{MIMEType: img.MediaType, Data: img.Data},
	)
	if err != nil {
		status, detail := 0, ""
		var gErr *googleapi.Error
		if errors.As(err, &gErr) {
			status, detail = gErr.Code, gErr.Message
		}
		g.logger.Error("Vision model request failed",
			logger.Int("status", status),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		return "", requestFailed(providerGemini, status, detail, err)
	}

	text := firstText(resp)
	if strings.TrimSpace(text) == "" {
		return "", requestFailed(providerGemini, http.StatusOK, "response has no completion text", nil)
	}

	g.logger.Info("Vision model responded",
		logger.String("model", g.settings.Model),
		logger.Int("content_len", len(text)),
		logger.Duration("elapsed", time.Since(start)))

	return text, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
