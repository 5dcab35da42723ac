// Package webcontent is the client for the web-content collaborator: a
// service that turns a URL into extracted plain text. A failed fetch is
// not fatal; callers proceed with a content-unavailable placeholder and
// let the model infer what it can from the URL.
package webcontent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/vibeone/assistant/internal/config"
)

// maxContentLen caps extracted text before it enters a prompt.
const maxContentLen = 50000

// Client fetches extracted page text from the collaborator.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a web-content client.
func New(cfg config.BackendConfig) *Client {
	return &Client{
		baseURL: cfg.WebContentURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// NormalizeURL prepends https:// when the scheme is missing.
func NormalizeURL(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

// ExtractText returns the collaborator's plain-text extraction of the
// page, truncated to a safe prompt length. On any failure it returns a
// placeholder instructing the model to infer from the URL instead.
func (c *Client) ExtractText(ctx context.Context, pageURL string) string {
	text, err := c.fetch(ctx, pageURL)
	if err != nil {
		log.Warn().Err(err).Str("url", pageURL).Msg("Web content extraction failed, using placeholder")
		return fmt.Sprintf("Failed to extract content from %s. Please infer from the URL if possible.", pageURL)
	}
	if len(text) > maxContentLen {
		cut := maxContentLen
		// Back off to a rune boundary so the cut never leaves a
		// partial UTF-8 sequence in the prompt.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

func (c *Client) fetch(ctx context.Context, pageURL string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/extract?url=%s", c.baseURL, url.QueryEscape(pageURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if payload.Text == "" {
		return "", fmt.Errorf("empty extraction")
	}
	return payload.Text, nil
}
