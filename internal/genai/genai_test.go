package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vibeone/assistant/internal/config"
	"github.com/vibeone/assistant/pkg/models"
)

func testConfig(endpoint string) config.GenAIConfig {
	return config.GenAIConfig{
		Endpoint:       endpoint,
		APIKey:         "test-key",
		Model:          "test-model",
		RequestTimeout: 5 * time.Second,
		RetryBaseDelay: 5 * time.Millisecond,
		RetryMaxDelay:  20 * time.Millisecond,
		MaxAttempts:    3,
	}
}

func candidateJSON(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	})
	return string(b)
}

func TestGenerate_SucceedsFirstTry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		w.Write([]byte(candidateJSON("hello")))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	res, err := c.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !res.Succeeded || res.RawText != "hello" {
		t.Errorf("Generate() = %+v, want succeeded with text %q", res, "hello")
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestGenerate_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(candidateJSON("third time lucky")))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	res, err := c.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if res.RawText != "third time lucky" {
		t.Errorf("RawText = %q", res.RawText)
	}
}

func TestGenerate_ExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	res, err := c.Generate(context.Background(), Request{Prompt: "hi"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("Generate() error = %v, want ErrGenerationFailed", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("endpoint called %d times, want exactly 3", got)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
}

func TestGenerate_DelaysIncreaseBetweenAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	var delays []time.Duration
	c.OnRetry = func(_ error, next time.Duration) {
		delays = append(delays, next)
	}

	_, err := c.Generate(context.Background(), Request{Prompt: "hi"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("Generate() error = %v, want ErrGenerationFailed", err)
	}
	if len(delays) != 2 {
		t.Fatalf("got %d inter-attempt delays, want 2", len(delays))
	}
	if delays[1] <= delays[0] {
		t.Errorf("delays not increasing: %v then %v", delays[0], delays[1])
	}
}

func TestGenerate_MalformedRequestNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	res, err := c.Generate(context.Background(), Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("Generate() expected error")
	}
	if errors.Is(err, ErrGenerationFailed) {
		t.Errorf("client error misclassified as retry exhaustion: %v", err)
	}
	// The upstream rejection stays inspectable through the wrap.
	var up *upstreamError
	if !errors.As(err, &up) || up.status != http.StatusBadRequest {
		t.Errorf("error does not carry the upstream 400: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("endpoint called %d times, want 1 (no retry)", got)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestGenerate_MissingCredentials(t *testing.T) {
	cfg := testConfig("http://localhost:0")
	cfg.APIKey = ""

	c := New(cfg)
	_, err := c.Generate(context.Background(), Request{Prompt: "hi"})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("Generate() error = %v, want ErrModelUnavailable", err)
	}
}

func TestGenerate_SchemaHintAndHistory(t *testing.T) {
	var body generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(candidateJSON("ok")))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.Generate(context.Background(), Request{
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: "be helpful"},
			{Role: models.RoleUser, Content: "save this link"},
			{Role: models.RoleModel, Content: "on it"},
			{Role: models.RoleTool, Content: "[Tool: save_link] saved"},
		},
		SchemaHint: HintJSONObject,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if body.Config == nil || body.Config.ResponseMIMEType != "application/json" {
		t.Errorf("schema hint not applied: %+v", body.Config)
	}
	if body.SystemInstruction == nil || body.SystemInstruction.Parts[0].Text != "be helpful" {
		t.Errorf("system instruction missing: %+v", body.SystemInstruction)
	}
	if len(body.Contents) != 3 {
		t.Fatalf("got %d contents, want 3", len(body.Contents))
	}
	// Tool results travel as user-side turns.
	if body.Contents[2].Role != "user" {
		t.Errorf("tool turn role = %q, want user", body.Contents[2].Role)
	}
	if body.Contents[1].Role != "model" {
		t.Errorf("model turn role = %q, want model", body.Contents[1].Role)
	}
}
