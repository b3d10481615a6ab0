package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yegors/inspect-ocr/internal/config"
	"github.com/yegors/inspect-ocr/internal/prompt"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

// fakeGemini serves generateContent for the REST client
type fakeGemini struct {
	calls  atomic.Int32
	status int
	body   string
	delay  time.Duration

	mu     sync.Mutex
	path   string
	apiKey string
	last   map[string]any
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	raw, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.path = r.URL.Path
	f.apiKey = r.Header.Get("x-goog-api-key")
	_ = json.Unmarshal(raw, &f.last)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = io.WriteString(w, f.body)
}

func geminiBody(parts ...string) string {
	ps := make([]any, 0, len(parts))
	for _, p := range parts {
		ps = append(ps, map[string]any{"text": p})
	}
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content":      map[string]any{"role": "model", "parts": ps},
				"finishReason": "STOP",
			},
		},
	})
	return string(b)
}

func newTestGemini(t *testing.T, f *fakeGemini, client *http.Client) *GeminiRequestor {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	if client == nil {
		client = srv.Client()
	}
	settings := testSettings()
	settings.Model = "gemini-1.5-flash"
	g, err := NewGeminiRequestor("gm-test", srv.URL, client, settings, logger.Nop())
	if err != nil {
		t.Fatalf("NewGeminiRequestor: %v", err)
	}
	return g
}

func TestGeminiSendsInlineImage(t *testing.T) {
	f := &fakeGemini{status: http.StatusOK, body: geminiBody(`{"companyName":"Acme"}`)}
	g := newTestGemini(t, f, nil)

	got, err := g.Request(context.Background(), Image{MediaType: "image/png", Data: pngBytes})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got != `{"companyName":"Acme"}` {
		t.Fatalf("text = %q", got)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !strings.HasSuffix(f.path, "models/gemini-1.5-flash:generateContent") {
		t.Fatalf("path = %q", f.path)
	}
	if f.apiKey != "gm-test" {
		t.Fatalf("api key header = %q", f.apiKey)
	}
	raw, _ := json.Marshal(f.last)
	body := string(raw)
	if !strings.Contains(body, base64.StdEncoding.EncodeToString(pngBytes)) || !strings.Contains(body, "image/png") {
		t.Fatalf("inline image missing from body: %s", body)
	}
	if !strings.Contains(body, "system prompt") || !strings.Contains(body, "user prompt") {
		t.Fatalf("prompts missing from body: %s", body)
	}
}

func TestGeminiErrorStatus(t *testing.T) {
	f := &fakeGemini{
		status: http.StatusBadRequest,
		body:   `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`,
	}
	g := newTestGemini(t, f, nil)

	_, err := g.Request(context.Background(), Image{MediaType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("err = %v", err)
	}
	var rf *RequestFailedError
	if !errors.As(err, &rf) || rf.StatusCode != http.StatusBadRequest || rf.Provider != providerGemini {
		t.Fatalf("request failure = %+v", rf)
	}
	if !strings.Contains(rf.Detail, "API key not valid") {
		t.Fatalf("detail = %q", rf.Detail)
	}
	if n := f.calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestGeminiNoTextPart(t *testing.T) {
	f := &fakeGemini{status: http.StatusOK, body: geminiBody()}
	g := newTestGemini(t, f, nil)

	_, err := g.Request(context.Background(), Image{MediaType: "image/png", Data: pngBytes})
	var rf *RequestFailedError
	if !errors.As(err, &rf) || rf.StatusCode != http.StatusOK {
		t.Fatalf("err = %v", err)
	}
}

func TestGeminiHonoursClientTimeout(t *testing.T) {
	f := &fakeGemini{status: http.StatusOK, body: geminiBody("{}"), delay: 2 * time.Second}
	g := newTestGemini(t, f, &http.Client{Timeout: 50 * time.Millisecond})

	_, err := g.Request(context.Background(), Image{MediaType: "image/png", Data: pngBytes})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("err = %v", err)
	}
}

func TestGeminiRejectsUnsupportedMedia(t *testing.T) {
	f := &fakeGemini{status: http.StatusOK, body: geminiBody("{}")}
	g := newTestGemini(t, f, nil)
	if _, err := g.Request(context.Background(), Image{MediaType: "text/plain", Data: []byte("x")}); !errors.Is(err, ErrUnsupportedMediaType) {
		t.Fatalf("err = %v", err)
	}
	if n := f.calls.Load(); n != 0 {
		t.Fatalf("calls = %d, want 0", n)
	}
}

func TestNewWiresGeminiEndpoint(t *testing.T) {
	f := &fakeGemini{status: http.StatusOK, body: geminiBody(`{"partName":"フランジ"}`)}
	srv := httptest.NewServer(f)
	defer srv.Close()

	cfg := config.Default().Extraction
	cfg.Provider = "gemini"
	cfg.Model = "gemini-1.5-flash"
	cfg.GeminiAPIKey = "gm-test"
	cfg.GeminiEndpoint = srv.URL
	cfg.TimeoutSeconds = 5

	r, err := New(cfg, prompt.Prompt{System: "s", User: "u"}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g, ok := r.(*GeminiRequestor)
	if !ok {
		t.Fatalf("requestor type = %T", r)
	}
	if g.httpClient.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v", g.httpClient.Timeout)
	}
	got, err := r.Request(context.Background(), Image{MediaType: "image/png", Data: pngBytes})
	if err != nil || got != `{"partName":"フランジ"}` {
		t.Fatalf("Request = %q, %v", got, err)
	}
}
