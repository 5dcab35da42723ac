package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vibeone/assistant/internal/config"
	"github.com/vibeone/assistant/internal/identity"
	"github.com/vibeone/assistant/pkg/models"
)

func testClient(url string) *Client {
	return New(config.BackendConfig{SharedURL: url, Timeout: 5 * time.Second})
}

func TestCreateTask(t *testing.T) {
	var gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-User-Id")
		if r.URL.Path != "/api/tasks" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var rec models.ExtractedRecord
		json.NewDecoder(r.Body).Decode(&rec)
		rec.ID = "task-42"
		json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	ctx := identity.WithUser(context.Background(), "alice")
	created, err := testClient(srv.URL).CreateTask(ctx, models.ExtractedRecord{Title: "call mom"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if created.ID != "task-42" || created.Title != "call mom" {
		t.Errorf("created = %+v", created)
	}
	if gotUser != "alice" {
		t.Errorf("X-User-Id = %q, want ambient identity", gotUser)
	}
}

func TestCreateLink_CollaboratorFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx := identity.WithUser(context.Background(), "bob")
	_, err := testClient(srv.URL).CreateLink(ctx, models.Link{URL: "https://x.test"})
	if err == nil {
		t.Fatal("collaborator failure must surface as-is")
	}
}

func TestCreate_RequiresAmbientIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should never leave the client without an identity")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CreateTask(context.Background(), models.ExtractedRecord{Title: "x"})
	if !errors.Is(err, identity.ErrNoActiveIdentity) {
		t.Fatalf("CreateTask() error = %v, want ErrNoActiveIdentity", err)
	}
}
