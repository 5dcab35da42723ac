package tools

import (
	"context"
	"fmt"

	"github.com/vibeone/assistant/pkg/models"
)

// TaskCreator is the persistence-collaborator surface create_task needs.
type TaskCreator interface {
	CreateTask(ctx context.Context, rec models.ExtractedRecord) (models.ExtractedRecord, error)
}

// LinkCreator is the persistence-collaborator surface save_link needs.
type LinkCreator interface {
	CreateLink(ctx context.Context, link models.Link) (models.Link, error)
}

// TextExtractor fetches extracted page text, degrading to a placeholder.
type TextExtractor interface {
	ExtractText(ctx context.Context, url string) string
}

// LinkAnalyzer summarizes page text into a title, summary and tags.
type LinkAnalyzer interface {
	AnalyzeLink(ctx context.Context, url, content string) (models.LinkAnalysis, error)
}

// URLNormalizer prepends a scheme when one is missing.
type URLNormalizer func(string) string

// Catalog builds the built-in tool set: create_task and save_link.
type Catalog struct {
	Tasks     TaskCreator
	Links     LinkCreator
	Web       TextExtractor
	Analyzer  LinkAnalyzer
	Normalize URLNormalizer
	AppURL    string
}

// Register installs the built-in tools into a registry.
func (c *Catalog) Register(r *Registry) error {
	if err := r.Register(c.createTaskSpec()); err != nil {
		return err
	}
	return r.Register(c.saveLinkSpec())
}

func (c *Catalog) createTaskSpec() Spec {
	return Spec{
		Name:        "create_task",
		Description: "Creates a task in the Checkmate system. Use when the user says 'remind me to...', 'add task...', and similar.",
		ParameterSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "The actionable task description.",
				},
				"due_date": map[string]any{
					"type":        "string",
					"description": "Optional due date (ISO format or natural language like 'tomorrow').",
				},
				"tags": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Optional list of category tags.",
				},
			},
			"required": []string{"title"},
		},
		Handler: c.createTask,
	}
}

func (c *Catalog) createTask(ctx context.Context, args map[string]any) (*models.ToolResult, error) {
	rec := models.ExtractedRecord{
		Title:   argString(args, "title"),
		DueDate: argString(args, "due_date"),
		Tags:    argStringSlice(args, "tags"),
	}

	created, err := c.Tasks.CreateTask(ctx, rec)
	if err != nil {
		return nil, err
	}

	return &models.ToolResult{
		Status:  models.ToolStatusSuccess,
		Message: "Created task: " + created.Title,
		Payload: map[string]any{
			"task":     created,
			"view_url": c.AppURL + "/checkmate",
		},
		Instruction: "Tell the user: Task created! Check it in the Checkmate app.",
	}, nil
}

func (c *Catalog) saveLinkSpec() Spec {
	return Spec{
		Name:        "save_link",
		Description: "Saves a URL to the Stash system. Use when the user shares a URL or says 'save this link...'.",
		ParameterSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to save.",
				},
			},
			"required": []string{"url"},
		},
		Handler: c.saveLink,
	}
}

func (c *Catalog) saveLink(ctx context.Context, args map[string]any) (*models.ToolResult, error) {
	url := c.Normalize(argString(args, "url"))

	content := c.Web.ExtractText(ctx, url)
	analysis, err := c.Analyzer.AnalyzeLink(ctx, url, content)
	if err != nil {
		return nil, err
	}

	created, err := c.Links.CreateLink(ctx, models.Link{
		URL:     url,
		Title:   analysis.Title,
		Summary: analysis.Summary,
		Tags:    analysis.Tags,
	})
	if err != nil {
		return nil, err
	}

	title := created.Title
	if title == "" {
		title = url
	}
	return &models.ToolResult{
		Status:  models.ToolStatusSuccess,
		Message: fmt.Sprintf("Saved link: %s", title),
		Payload: map[string]any{
			"link":     created,
			"view_url": c.AppURL + "/stash",
		},
		Instruction: "Tell the user: Link saved! View it in the Stash app.",
	}, nil
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argStringSlice(args map[string]any, key string) []string {
	out := []string{}
	raw, ok := args[key].([]any)
	if !ok {
		if typed, ok := args[key].([]string); ok {
			return typed
		}
		return out
	}
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
