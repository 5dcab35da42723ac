// Package agent orchestrates conversational turns: it feeds session
// history to the model, dispatches requested tool calls through the
// registry with the ambient identity in effect, and returns the model's
// final natural-language reply.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vibeone/assistant/internal/extract"
	"github.com/vibeone/assistant/internal/genai"
	"github.com/vibeone/assistant/internal/identity"
	"github.com/vibeone/assistant/internal/sessions"
	"github.com/vibeone/assistant/internal/tools"
	"github.com/vibeone/assistant/pkg/models"
)

// ErrNoFinalResponse means the model kept requesting tools past the
// round bound and never produced a plain reply. Surfaced as a failed
// turn instead of looping indefinitely.
var ErrNoFinalResponse = errors.New("agent: model produced no final response")

// DefaultMaxRounds bounds the tool-dispatch loop per turn so a model
// that keeps requesting tools cannot spin forever.
const DefaultMaxRounds = 10

// Generator is the conversational-model dependency of the loop.
type Generator interface {
	Generate(ctx context.Context, req genai.Request) (genai.Result, error)
}

// Loop runs one conversational turn at a time per session.
type Loop struct {
	gen       Generator
	registry  *tools.Registry
	sessions  *sessions.Store
	maxRounds int
}

// New creates an agent loop.
func New(gen Generator, registry *tools.Registry, store *sessions.Store) *Loop {
	return &Loop{
		gen:       gen,
		registry:  registry,
		sessions:  store,
		maxRounds: DefaultMaxRounds,
	}
}

// toolCall is a tool invocation requested by the model.
type toolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// RunTurn processes one user message.
//
// The session's execution lock is held for the whole turn, so two
// concurrent messages from the same user serialize and cannot interleave
// their tool calls or corrupt turn order. Generation failures propagate
// as the turn's single failure; tool failures are absorbed into tool
// result turns and narrated back by the model.
func (l *Loop) RunTurn(ctx context.Context, userID, message string) (*models.AgentTurnResult, error) {
	sess := l.sessions.GetOrCreate(userID)
	sess.Lock()
	defer sess.Unlock()

	ctx = identity.WithUser(ctx, userID)
	sess.Append(models.RoleUser, message)

	traceID := uuid.New().String()
	var invocations []models.ToolResult

	for round := 1; round <= l.maxRounds; round++ {
		history := append([]models.ChatMessage{
			{Role: models.RoleSystem, Content: l.systemPrompt()},
		}, sess.History()...)

		res, err := l.gen.Generate(ctx, genai.Request{Messages: history})
		if err != nil {
			return nil, fmt.Errorf("agent turn: %w", err)
		}

		calls := parseToolCalls(res.RawText)
		if len(calls) == 0 {
			sess.Append(models.RoleModel, res.RawText)
			log.Info().
				Str("user", userID).
				Str("trace", traceID).
				Int("rounds", round).
				Int("tool_calls", len(invocations)).
				Msg("Agent turn complete")
			return &models.AgentTurnResult{
				TraceID:         traceID,
				ReplyText:       res.RawText,
				ToolInvocations: invocations,
			}, nil
		}

		sess.Append(models.RoleModel, res.RawText)

		// Sequential, in the order requested: later calls may depend on
		// earlier side effects.
		for _, tc := range calls {
			result, err := l.registry.Invoke(ctx, tc.Name, tc.Arguments)
			if err != nil {
				if errors.Is(err, identity.ErrNoActiveIdentity) {
					return nil, err
				}
				result = &models.ToolResult{
					Tool:    tc.Name,
					Status:  models.ToolStatusError,
					Message: err.Error(),
				}
			}
			invocations = append(invocations, *result)
			sess.Append(models.RoleTool, formatToolTurn(result))
		}

		log.Debug().
			Str("user", userID).
			Str("trace", traceID).
			Int("round", round).
			Int("tool_calls", len(calls)).
			Msg("Agent loop continuing")
	}

	log.Warn().Str("user", userID).Str("trace", traceID).Int("max_rounds", l.maxRounds).Msg("Agent hit round bound without a final reply")
	return nil, fmt.Errorf("%w after %d rounds", ErrNoFinalResponse, l.maxRounds)
}

// systemPrompt is the assistant persona plus the declared tool table and
// the call format the loop understands.
func (l *Loop) systemPrompt() string {
	prompt := `You are Vibe Assistant, a helpful AI integrated into the Vibe One platform.

Capabilities:
1. Create tasks when the user says "remind me to...", "add task...", etc.
2. Save links when the user shares a URL or says "save this link...".

Rules:
- If a user sends a URL, assume they want to save it unless they ask to summarize it immediately.
- Be concise and friendly.`

	specs := l.registry.Specs()
	if len(specs) == 0 {
		return prompt
	}

	prompt += "\n\nAvailable tools:\n"
	for _, s := range specs {
		prompt += fmt.Sprintf("- %s: %s %s\n", s.Name, s.Description, describeParams(s.ParameterSchema))
	}
	prompt += "\nTo use a tool, respond with only a JSON block: {\"tool_calls\": [{\"name\": \"tool_name\", \"arguments\": {...}}]}\nOtherwise respond with the plain text reply for the user."
	return prompt
}

func describeParams(schema map[string]any) string {
	props, ok := schema["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return "(no parameters)"
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("(params: %v)", names)
}

// parseToolCalls extracts tool calls from the model's text. Two formats
// are understood: {"tool_calls": [...]} and a bare array of calls; both
// may arrive inside a code fence. Anything else is a plain reply.
func parseToolCalls(content string) []toolCall {
	if content == "" {
		return nil
	}
	cleaned := extract.StripFence(content)

	var wrapper struct {
		ToolCalls []toolCall `json:"tool_calls"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapper); err == nil && len(wrapper.ToolCalls) > 0 {
		return wrapper.ToolCalls
	}

	var calls []toolCall
	if err := json.Unmarshal([]byte(cleaned), &calls); err == nil && len(calls) > 0 && calls[0].Name != "" {
		return calls
	}

	return nil
}

// formatToolTurn renders a tool result as a conversation turn for the
// model's next round.
func formatToolTurn(result *models.ToolResult) string {
	payload, _ := json.Marshal(result)
	return fmt.Sprintf("[Tool: %s] %s", result.Tool, payload)
}
