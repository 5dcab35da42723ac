// Package backend is the HTTP client for the shared persistence
// collaborator that owns task and link CRUD. This service never assigns
// record ids itself; the collaborator does, and its failures surface
// as-is for the tool layer to absorb.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vibeone/assistant/internal/config"
	"github.com/vibeone/assistant/internal/identity"
	"github.com/vibeone/assistant/pkg/models"
)

// Client talks to the shared backend. The acting user is taken from the
// ambient identity on the context, never from caller-supplied arguments.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a persistence-collaborator client.
func New(cfg config.BackendConfig) *Client {
	return &Client{
		baseURL: cfg.SharedURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// CreateTask stores a task record for the ambient user and returns it
// with the collaborator-assigned id.
func (c *Client) CreateTask(ctx context.Context, rec models.ExtractedRecord) (models.ExtractedRecord, error) {
	var created models.ExtractedRecord
	err := c.post(ctx, "/api/tasks", rec, &created)
	if err != nil {
		return models.ExtractedRecord{}, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

// CreateLink stores an analyzed link for the ambient user and returns it
// with the collaborator-assigned id.
func (c *Client) CreateLink(ctx context.Context, link models.Link) (models.Link, error) {
	var created models.Link
	err := c.post(ctx, "/api/links", link, &created)
	if err != nil {
		return models.Link{}, fmt.Errorf("create link: %w", err)
	}
	return created, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	userID, err := identity.FromContext(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", userID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("backend status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}
