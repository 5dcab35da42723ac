// Package server wires the Vibe assistant backend together. The
// generation client, extraction pipeline, tool registry, session store
// and agent loop are constructed once here and injected explicitly;
// component code never reaches into ambient globals.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vibeone/assistant/internal/agent"
	"github.com/vibeone/assistant/internal/api"
	"github.com/vibeone/assistant/internal/api/handlers"
	"github.com/vibeone/assistant/internal/backend"
	"github.com/vibeone/assistant/internal/config"
	"github.com/vibeone/assistant/internal/extract"
	"github.com/vibeone/assistant/internal/genai"
	"github.com/vibeone/assistant/internal/sessions"
	"github.com/vibeone/assistant/internal/telemetry"
	"github.com/vibeone/assistant/internal/tools"
	"github.com/vibeone/assistant/internal/webcontent"
)

// Server holds the initialized assistant backend.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the backend with an explicit configuration.
func NewWithConfig(_ context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	gen := genai.New(cfg.GenAI)
	pipeline := extract.NewPipeline(gen)
	be := backend.New(cfg.Backend)
	web := webcontent.New(cfg.Backend)

	registry := tools.NewRegistry()
	catalog := &tools.Catalog{
		Tasks:     be,
		Links:     be,
		Web:       web,
		Analyzer:  pipeline,
		Normalize: webcontent.NormalizeURL,
		AppURL:    cfg.Backend.AppURL,
	}
	if err := catalog.Register(registry); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	store := sessions.NewStore()
	loop := agent.New(gen, registry, store)

	log.Info().
		Int("tools", len(registry.Specs())).
		Str("model", cfg.GenAI.Model).
		Msg("Assistant core initialized")

	h := handlers.New(pipeline, loop, be, web)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
