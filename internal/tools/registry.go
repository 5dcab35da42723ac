// Package tools implements the agent's tool table: named side-effecting
// capabilities with declared parameter schemas, registered once at
// startup and dispatched on the model's request.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vibeone/assistant/internal/identity"
	"github.com/vibeone/assistant/pkg/models"
)

var (
	// ErrUnknownTool means the model asked for a name no one registered.
	ErrUnknownTool = errors.New("tools: unknown tool")

	// ErrInvalidArguments means the model's arguments failed the tool's
	// declared parameter schema.
	ErrInvalidArguments = errors.New("tools: invalid arguments")
)

// Handler executes a tool. The acting user is available only through the
// ambient identity on the context; argument maps never carry it.
type Handler func(ctx context.Context, args map[string]any) (*models.ToolResult, error)

// Spec declares one tool: a unique name, a description for the model,
// a JSON Schema for its parameters, and the handler.
type Spec struct {
	Name            string
	Description     string
	ParameterSchema map[string]any
	Handler         Handler
}

type compiledSpec struct {
	Spec
	schema *jsonschema.Schema
}

// Registry maps tool names to handlers. Registration happens at startup
// only; after that the table is read-only and needs no synchronization.
type Registry struct {
	specs map[string]*compiledSpec
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*compiledSpec)}
}

// Register adds a tool. Duplicate names, missing handlers, malformed
// schemas, and schemas declaring an identity-like parameter are all
// startup errors: the model must never be able to supply the acting user.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("tools: spec has no name")
	}
	if spec.Handler == nil {
		return fmt.Errorf("tools: %s has no handler", spec.Name)
	}
	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("tools: %s already registered", spec.Name)
	}

	if props, ok := spec.ParameterSchema["properties"].(map[string]any); ok {
		for _, forbidden := range []string{"user_id", "identity"} {
			if _, found := props[forbidden]; found {
				return fmt.Errorf("tools: %s declares %q parameter; identity is ambient only", spec.Name, forbidden)
			}
		}
	}

	schema, err := compileSchema(spec.Name, spec.ParameterSchema)
	if err != nil {
		return fmt.Errorf("tools: %s schema: %w", spec.Name, err)
	}

	r.specs[spec.Name] = &compiledSpec{Spec: spec, schema: schema}
	return nil
}

// Specs lists the registered tool declarations, sorted by name.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.specs))
	for _, cs := range r.specs {
		out = append(out, cs.Spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke dispatches one tool call.
//
// Unregistered names return ErrUnknownTool. A missing ambient identity
// returns identity.ErrNoActiveIdentity, which is fatal to the
// surrounding turn. Schema violations return ErrInvalidArguments.
// Handler-level failures, including panics, are converted into a
// ToolResult with error status and never propagate.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (result *models.ToolResult, err error) {
	cs, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if _, err := identity.FromContext(ctx); err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := cs.schema.Validate(normalize(args)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, name, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("tool", name).Any("panic", rec).Msg("Tool handler panicked")
			result = &models.ToolResult{
				Tool:    name,
				Status:  models.ToolStatusError,
				Message: fmt.Sprintf("tool %s panicked: %v", name, rec),
			}
			err = nil
		}
	}()

	res, handlerErr := cs.Handler(ctx, args)
	if handlerErr != nil {
		return &models.ToolResult{
			Tool:    name,
			Status:  models.ToolStatusError,
			Message: handlerErr.Error(),
		}, nil
	}
	if res == nil {
		res = &models.ToolResult{}
	}
	res.Tool = name
	if res.Status == "" {
		res.Status = models.ToolStatusSuccess
	}
	return res, nil
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	return jsonschema.CompileString(name+".schema.json", string(raw))
}

// normalize round-trips the argument map through JSON so the validator
// sees canonical JSON types regardless of how the caller built the map.
func normalize(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return args
	}
	return out
}
