// Package handlers implements the HTTP handlers for the Vibe assistant
// backend: task extraction, link saving, and the conversational agent.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vibeone/assistant/internal/agent"
	"github.com/vibeone/assistant/internal/backend"
	"github.com/vibeone/assistant/internal/extract"
	"github.com/vibeone/assistant/internal/genai"
	"github.com/vibeone/assistant/internal/identity"
	"github.com/vibeone/assistant/internal/webcontent"
	"github.com/vibeone/assistant/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Pipeline *extract.Pipeline
	Agent    *agent.Loop
	Backend  *backend.Client
	Web      *webcontent.Client
}

// New creates a Handlers instance with all dependencies.
func New(pipeline *extract.Pipeline, loop *agent.Loop, be *backend.Client, web *webcontent.Client) *Handlers {
	return &Handlers{
		Pipeline: pipeline,
		Agent:    loop,
		Backend:  be,
		Web:      web,
	}
}

// ── Extraction ───────────────────────────────────────────────

type parseTasksRequest struct {
	Text string `json:"text"`
}

type parseTasksResponse struct {
	Tasks []models.ExtractedRecord `json:"tasks"`
}

// ParseTasks turns free text into task records. Unparsable model output
// degrades to a single manual record; only generation-level failures
// fail the request.
func (h *Handlers) ParseTasks(w http.ResponseWriter, r *http.Request) {
	var req parseTasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	records, err := h.Pipeline.ExtractTasks(r.Context(), req.Text)
	if err != nil {
		respondGenerationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, parseTasksResponse{Tasks: records})
}

// ── Links ────────────────────────────────────────────────────

type createLinkRequest struct {
	URL string `json:"url"`
}

// CreateLink saves a URL: fetch page text from the web-content
// collaborator (or proceed with a placeholder), analyze it, and hand the
// record to the persistence collaborator.
func (h *Handlers) CreateLink(w http.ResponseWriter, r *http.Request) {
	if _, err := identity.FromContext(r.Context()); err != nil {
		respondError(w, http.StatusBadRequest, "User ID required")
		return
	}

	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	pageURL := webcontent.NormalizeURL(req.URL)
	content := h.Web.ExtractText(r.Context(), pageURL)

	analysis, err := h.Pipeline.AnalyzeLink(r.Context(), pageURL, content)
	if err != nil {
		respondGenerationError(w, err)
		return
	}

	created, err := h.Backend.CreateLink(r.Context(), models.Link{
		URL:     pageURL,
		Title:   analysis.Title,
		Summary: analysis.Summary,
		Tags:    analysis.Tags,
	})
	if err != nil {
		log.Error().Err(err).Str("url", pageURL).Msg("Link persistence failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// ── Chat ─────────────────────────────────────────────────────

type chatRequest struct {
	Message  string               `json:"message"`
	Messages []models.ChatMessage `json:"messages"`
}

// lastUserMessage supports both request shapes the frontends send: a
// bare message string or a full message list.
func (req *chatRequest) lastUserMessage() string {
	if req.Message != "" {
		return req.Message
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == models.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

// Chat runs one conversational turn for the acting user.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusBadRequest, "User ID required")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	message := req.lastUserMessage()
	if message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.Agent.RunTurn(r.Context(), userID, message)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrNoFinalResponse):
			respondJSON(w, http.StatusBadGateway, map[string]string{
				"error": "the model never produced a final reply",
				"stage": "agent",
			})
		case errors.Is(err, identity.ErrNoActiveIdentity):
			respondError(w, http.StatusInternalServerError, err.Error())
		default:
			respondGenerationError(w, err)
		}
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ── Helpers ──────────────────────────────────────────────────

func respondGenerationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, genai.ErrModelUnavailable):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, genai.ErrGenerationFailed):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
