// Package models defines the shared domain types for the Vibe assistant
// backend: extracted records, chat turns, tool results, and sessions.
package models

import (
	"sync"
	"time"
)

// ── Extraction ───────────────────────────────────────────────

// ManualTag marks a record synthesized by the degraded decode fallback
// rather than extracted from structured model output.
const ManualTag = "manual"

// ExtractedRecord is a typed record produced by the extraction pipeline.
// The ID stays empty until a persistence collaborator assigns one; the
// pipeline never invents or reuses ids.
type ExtractedRecord struct {
	ID        string   `json:"id,omitempty"`
	Title     string   `json:"title"`
	DueDate   string   `json:"due_date,omitempty"`
	Tags      []string `json:"tags"`
	Completed bool     `json:"completed"`

	// Degraded is true when the record came from the decode fallback and
	// Title holds the raw, un-decoded model output.
	Degraded bool `json:"degraded,omitempty"`
}

// LinkAnalysis is the model's summary of a scraped web page.
type LinkAnalysis struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`

	Degraded bool `json:"degraded,omitempty"`
}

// Link is a saved bookmark as returned by the persistence collaborator.
type Link struct {
	ID        string   `json:"id,omitempty"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at,omitempty"`
}

// ── Chat ─────────────────────────────────────────────────────

// Chat roles. RoleTool marks a turn carrying a tool result fed back to
// the model.
const (
	RoleUser      = "user"
	RoleModel     = "model"
	RoleTool      = "tool"
	RoleSystem    = "system"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolStatus is the outcome of a tool invocation.
type ToolStatus string

const (
	ToolStatusSuccess ToolStatus = "success"
	ToolStatusError   ToolStatus = "error"
)

// ToolResult is what a tool hands back to the agent loop. Instruction,
// when set, advises the model how to phrase its reply to the user.
type ToolResult struct {
	Tool        string         `json:"tool"`
	Status      ToolStatus     `json:"status"`
	Message     string         `json:"message"`
	Payload     map[string]any `json:"payload,omitempty"`
	Instruction string         `json:"instruction,omitempty"`
}

// AgentTurnResult is the outcome of one conversational turn.
type AgentTurnResult struct {
	TraceID         string       `json:"trace_id"`
	ReplyText       string       `json:"reply"`
	ToolInvocations []ToolResult `json:"tool_invocations,omitempty"`
}

// ── Sessions ─────────────────────────────────────────────────

// Session holds the turn history for one user. Turns are append-only and
// read back in write order. The embedded mutex is the per-session
// execution lock: the agent loop holds it for a whole turn so concurrent
// messages from the same user serialize.
type Session struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Turns     []ChatMessage `json:"turns"`

	mu sync.Mutex
}

// Lock acquires the per-session execution lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-session execution lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Append adds a turn to the history. Callers must hold the session lock.
func (s *Session) Append(role, content string) {
	s.Turns = append(s.Turns, ChatMessage{Role: role, Content: content})
	s.UpdatedAt = time.Now().UTC()
}

// History returns a copy of the turn sequence. Callers must hold the
// session lock.
func (s *Session) History() []ChatMessage {
	out := make([]ChatMessage, len(s.Turns))
	copy(out, s.Turns)
	return out
}
