// Package genai wraps the remote generative-text endpoint.
//
// The client owns the retry policy: transient upstream failures (timeouts,
// rate limits, 5xx) are retried with exponential backoff, client-side
// malformed requests are not, and a missing credential is a permanent
// condition reported immediately.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/vibeone/assistant/internal/config"
	"github.com/vibeone/assistant/pkg/models"
)

var (
	// ErrModelUnavailable means the endpoint cannot be reached at all,
	// e.g. no API key was configured. Never retried.
	ErrModelUnavailable = errors.New("genai: model unavailable")

	// ErrGenerationFailed means every retry attempt was exhausted.
	ErrGenerationFailed = errors.New("genai: generation failed")
)

// SchemaHint asks the endpoint for a particular output shape.
type SchemaHint string

const (
	HintNone       SchemaHint = "none"
	HintJSONObject SchemaHint = "jsonObject"
)

// Request describes one generation call. Immutable; construct a fresh
// value per call. Either Prompt or Messages is set, not both.
type Request struct {
	Prompt         string
	Messages       []models.ChatMessage
	SchemaHint     SchemaHint
	SamplingBudget int
}

// Result is the outcome of a generation call. Attempts counts the calls
// actually made and is populated on failure as well.
type Result struct {
	RawText   string
	Succeeded bool
	Attempts  int
}

// Client calls the generative-text endpoint. It owns no state beyond
// configuration and performs no caching.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
	policy   RetryPolicy

	// OnRetry is invoked before each backoff sleep with the attempt's
	// error and the upcoming delay. Defaults to a log line; tests
	// override it to observe delay progression.
	OnRetry func(err error, next time.Duration)
}

// New creates a generation client from configuration.
func New(cfg config.GenAIConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		policy: RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Multiplier:  2,
			MaxDelay:    cfg.RetryMaxDelay,
		},
	}
}

// Generate performs one generation call under the retry policy.
//
// Returns ErrModelUnavailable if the client has no credentials, the
// underlying error for non-retriable request failures, and
// ErrGenerationFailed once the retry budget is exhausted. Result.Attempts
// is valid in every case.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	if c.apiKey == "" {
		return Result{}, fmt.Errorf("%w: no API key configured", ErrModelUnavailable)
	}

	notify := c.OnRetry
	if notify == nil {
		notify = func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("next_retry", next).Msg("Generation attempt failed, retrying")
		}
	}

	attempts := 0
	var lastErr error
	operation := func() (string, error) {
		attempts++
		text, err := c.call(ctx, req)
		if err != nil {
			lastErr = err
			if !isTransient(err) {
				return "", backoff.Permanent(err)
			}
		}
		return text, err
	}

	text, err := backoff.RetryNotifyWithData(operation, c.policy.backOff(ctx), notify)
	if err != nil {
		// backoff hands back the unwrapped attempt error, so the
		// permanent/transient split is decided from the raw error.
		if lastErr != nil && !isTransient(lastErr) {
			return Result{Attempts: attempts}, fmt.Errorf("genai: request rejected: %w", lastErr)
		}
		return Result{Attempts: attempts}, fmt.Errorf("%w after %d attempts: %v", ErrGenerationFailed, attempts, err)
	}

	return Result{RawText: text, Succeeded: true, Attempts: attempts}, nil
}

// ── Wire format ──────────────────────────────────────────────

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type generationConfig struct {
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	Thinking         *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type generateRequest struct {
	Contents          []generateContent `json:"contents"`
	SystemInstruction *generateContent  `json:"systemInstruction,omitempty"`
	Config            *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []generatePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) call(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(c.buildBody(req))
	if err != nil {
		return "", fmt.Errorf("genai: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("genai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &transportError{err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return "", &upstreamError{status: httpResp.StatusCode, body: string(respBody)}
	}

	var resp generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("genai: decode response: %w", err)
	}

	text := ""
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			text += part.Text
		}
		break
	}
	return text, nil
}

func (c *Client) buildBody(req Request) generateRequest {
	out := generateRequest{}

	if req.Prompt != "" {
		out.Contents = []generateContent{{
			Role:  "user",
			Parts: []generatePart{{Text: req.Prompt}},
		}}
	}
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleSystem:
			out.SystemInstruction = &generateContent{Parts: []generatePart{{Text: m.Content}}}
		case models.RoleUser, models.RoleTool:
			// Tool results flow back to the model as user-side turns.
			out.Contents = append(out.Contents, generateContent{
				Role:  "user",
				Parts: []generatePart{{Text: m.Content}},
			})
		default:
			out.Contents = append(out.Contents, generateContent{
				Role:  "model",
				Parts: []generatePart{{Text: m.Content}},
			})
		}
	}

	cfg := &generationConfig{
		Thinking: &thinkingConfig{ThinkingBudget: req.SamplingBudget},
	}
	if req.SchemaHint == HintJSONObject {
		cfg.ResponseMIMEType = "application/json"
	}
	out.Config = cfg
	return out
}

// ── Error classification ─────────────────────────────────────

// upstreamError is a non-200 response from the endpoint.
type upstreamError struct {
	status int
	body   string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("genai: upstream status %d: %s", e.status, e.body)
}

// transportError wraps a failed round trip (connection refused, timeout).
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "genai: request failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// isTransient reports whether an attempt's failure should trigger a retry.
// Timeouts, rate limits and 5xx-class upstream errors are transient;
// other 4xx responses mean the request itself is malformed.
func isTransient(err error) bool {
	var up *upstreamError
	if errors.As(err, &up) {
		return up.status == http.StatusRequestTimeout ||
			up.status == http.StatusTooManyRequests ||
			up.status >= 500
	}

	var tr *transportError
	return errors.As(err, &tr)
}
