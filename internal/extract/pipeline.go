package extract

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/vibeone/assistant/internal/genai"
	"github.com/vibeone/assistant/pkg/models"
)

// Generator is the generation-call dependency of the pipeline. Satisfied
// by *genai.Client; tests substitute a scripted fake.
type Generator interface {
	Generate(ctx context.Context, req genai.Request) (genai.Result, error)
}

// Pipeline composes a prompt template, a generation call, and the
// tolerant decoder into typed records.
type Pipeline struct {
	gen Generator
}

// NewPipeline creates an extraction pipeline on top of a generator.
func NewPipeline(gen Generator) *Pipeline {
	return &Pipeline{gen: gen}
}

// ExtractTasks turns free text into task records.
//
// Propagates genai.ErrModelUnavailable and genai.ErrGenerationFailed
// from the generation call; decode failure is unreachable because the
// decoder always falls back to a degraded record. Record ids are left
// empty for the persistence collaborator to assign.
func (p *Pipeline) ExtractTasks(ctx context.Context, freeText string) ([]models.ExtractedRecord, error) {
	res, err := p.gen.Generate(ctx, genai.Request{
		Prompt:     taskPrompt(freeText),
		SchemaHint: genai.HintJSONObject,
	})
	if err != nil {
		return nil, fmt.Errorf("extract tasks: %w", err)
	}

	records := DecodeRecords(res.RawText)
	if len(records) == 1 && records[0].Degraded {
		log.Warn().Str("raw", res.RawText).Msg("Task extraction degraded to fallback record")
	}
	return records, nil
}

// AnalyzeLink summarizes scraped page text into a title, summary and
// tags. A failed object decode degrades to using the raw model output as
// the summary rather than failing the save.
func (p *Pipeline) AnalyzeLink(ctx context.Context, url, content string) (models.LinkAnalysis, error) {
	res, err := p.gen.Generate(ctx, genai.Request{
		Prompt:     linkPrompt(url, content),
		SchemaHint: genai.HintJSONObject,
	})
	if err != nil {
		return models.LinkAnalysis{}, fmt.Errorf("analyze link: %w", err)
	}

	obj, err := DecodeObject(res.RawText)
	if err != nil {
		log.Warn().Str("url", url).Msg("Link analysis output unparsable, using raw text as summary")
		return models.LinkAnalysis{
			Title:    "Analysis Result",
			Summary:  res.RawText,
			Tags:     []string{"review"},
			Degraded: true,
		}, nil
	}

	analysis := models.LinkAnalysis{
		Title:   stringField(obj, "title", "Untitled"),
		Summary: stringField(obj, "summary", "No summary available"),
		Tags:    stringSlice(obj, "tags"),
	}
	return analysis, nil
}

func stringField(obj map[string]any, key, fallback string) string {
	if v, ok := obj[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func stringSlice(obj map[string]any, key string) []string {
	out := []string{}
	raw, ok := obj[key].([]any)
	if !ok {
		return out
	}
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
