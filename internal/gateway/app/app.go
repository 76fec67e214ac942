package app

import (
	"context"
	"fmt"

	"github.com/shreyansh232/planfirst/internal/agent"
	"github.com/shreyansh232/planfirst/internal/gateway/config"
	"github.com/shreyansh232/planfirst/internal/gateway/handler"
	"github.com/shreyansh232/planfirst/internal/gateway/middleware"
	"github.com/shreyansh232/planfirst/internal/gateway/server"
	"github.com/shreyansh232/planfirst/internal/llmclient"
	"github.com/shreyansh232/planfirst/internal/tripstore"
)

type App struct {
	server *server.Server
	store  *tripstore.Store
	llm    llmclient.LLMClient
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	llm, err := initLLM(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	searchClient, imageClient := initSearch(cfg)

	machine := agent.NewMachine(llm, store, searchClient)
	if imageClient != nil {
		machine = machine.WithImages(imageClient)
	}
	if snap := initArchive(cfg); snap != nil {
		machine = machine.WithArchive(snap)
	}

	hub := handler.NewHub()
	h := handler.New(machine, store, hub)
	verifier := middleware.StaticVerifier{Tokens: cfg.AuthTokens}

	mux := server.NewMux(h, verifier)
	srv := server.New(cfg.Port, mux)

	return &App{server: srv, store: store, llm: llm}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	_ = a.llm.Close()
	_ = a.store.Close()
	return err
}
