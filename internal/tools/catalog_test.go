package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/vibeone/assistant/internal/webcontent"
	"github.com/vibeone/assistant/pkg/models"
)

type fakeBackend struct {
	tasks    []models.ExtractedRecord
	links    []models.Link
	failWith error
}

func (f *fakeBackend) CreateTask(_ context.Context, rec models.ExtractedRecord) (models.ExtractedRecord, error) {
	if f.failWith != nil {
		return models.ExtractedRecord{}, f.failWith
	}
	rec.ID = fmt.Sprintf("task-%d", len(f.tasks)+1)
	f.tasks = append(f.tasks, rec)
	return rec, nil
}

func (f *fakeBackend) CreateLink(_ context.Context, link models.Link) (models.Link, error) {
	if f.failWith != nil {
		return models.Link{}, f.failWith
	}
	link.ID = fmt.Sprintf("link-%d", len(f.links)+1)
	f.links = append(f.links, link)
	return link, nil
}

type fakeWeb struct{ text string }

func (f *fakeWeb) ExtractText(_ context.Context, _ string) string { return f.text }

type fakeAnalyzer struct{ analysis models.LinkAnalysis }

func (f *fakeAnalyzer) AnalyzeLink(_ context.Context, _, _ string) (models.LinkAnalysis, error) {
	return f.analysis, nil
}

func testCatalog(b *fakeBackend) *Catalog {
	return &Catalog{
		Tasks:     b,
		Links:     b,
		Web:       &fakeWeb{text: "page text"},
		Analyzer:  &fakeAnalyzer{analysis: models.LinkAnalysis{Title: "Go Blog", Summary: "About Go.", Tags: []string{"go"}}},
		Normalize: webcontent.NormalizeURL,
		AppURL:    "http://localhost:5175",
	}
}

func TestCreateTaskTool(t *testing.T) {
	b := &fakeBackend{}
	r := NewRegistry()
	if err := testCatalog(b).Register(r); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res, err := r.Invoke(userCtx("alice"), "create_task", map[string]any{
		"title":    "call mom",
		"due_date": "tomorrow",
		"tags":     []any{"family"},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Status != models.ToolStatusSuccess {
		t.Fatalf("result = %+v", res)
	}
	if res.Instruction == "" {
		t.Error("follow-up instruction missing")
	}
	if len(b.tasks) != 1 || b.tasks[0].Title != "call mom" || b.tasks[0].ID == "" {
		t.Errorf("stored tasks = %+v", b.tasks)
	}
}

func TestCreateTaskTool_BackendFailure(t *testing.T) {
	b := &fakeBackend{failWith: fmt.Errorf("backend down")}
	r := NewRegistry()
	if err := testCatalog(b).Register(r); err != nil {
		t.Fatal(err)
	}

	res, err := r.Invoke(userCtx("alice"), "create_task", map[string]any{"title": "x"})
	if err != nil {
		t.Fatalf("backend failure must convert to tool error, got %v", err)
	}
	if res.Status != models.ToolStatusError {
		t.Errorf("result = %+v", res)
	}
}

func TestSaveLinkTool(t *testing.T) {
	b := &fakeBackend{}
	r := NewRegistry()
	if err := testCatalog(b).Register(r); err != nil {
		t.Fatal(err)
	}

	res, err := r.Invoke(userCtx("bob"), "save_link", map[string]any{"url": "go.dev/blog"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Status != models.ToolStatusSuccess {
		t.Fatalf("result = %+v", res)
	}
	if len(b.links) != 1 {
		t.Fatalf("stored links = %+v", b.links)
	}
	link := b.links[0]
	if link.URL != "https://go.dev/blog" {
		t.Errorf("url not normalized: %q", link.URL)
	}
	if link.Title != "Go Blog" || link.ID == "" {
		t.Errorf("stored link = %+v", link)
	}
}

func TestSaveLinkTool_RequiresURL(t *testing.T) {
	b := &fakeBackend{}
	r := NewRegistry()
	if err := testCatalog(b).Register(r); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Invoke(userCtx("bob"), "save_link", map[string]any{}); err == nil {
		t.Fatal("missing required url must fail validation")
	}
}
