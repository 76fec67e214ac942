package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shreyansh232/planfirst/internal/archive"
	"github.com/shreyansh232/planfirst/internal/gateway/config"
	"github.com/shreyansh232/planfirst/internal/llmclient"
	"github.com/shreyansh232/planfirst/internal/search"
	"github.com/shreyansh232/planfirst/internal/tripstore"
)

func initStore(cfg *config.Config) (*tripstore.Store, error) {
	if cfg.TripStoreDSN != "" {
		store, err := tripstore.NewPostgres(cfg.TripStoreDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open trip store: %w", err)
		}
		log.Printf("trip store: postgres")
		return store, nil
	}
	log.Printf("trip store: in-memory")
	return tripstore.New(), nil
}

func initLLM(ctx context.Context, cfg *config.Config) (llmclient.LLMClient, error) {
	var inner llmclient.LLMClient
	switch cfg.LLM.Provider {
	case "gemini":
		c, err := llmclient.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to init gemini client: %w", err)
		}
		inner = c
	case "openrouter":
		inner = llmclient.NewOpenRouterClient(cfg.LLM.APIKey, cfg.LLM.Model)
	case "fake":
		inner = llmclient.NewFakeClient()
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	log.Printf("llm: provider=%s model=%s", cfg.LLM.Provider, cfg.LLM.Model)

	mws := []llmclient.Middleware{
		llmclient.WithLogging(nil),
		llmclient.Retry(3, 300*time.Millisecond),
	}
	if cfg.LLM.RPS > 0 {
		mws = append(mws, llmclient.RateLimit(cfg.LLM.RPS, cfg.LLM.Burst))
	}
	return llmclient.Wrap(inner, mws...), nil
}

func initSearch(cfg *config.Config) (search.Client, search.ImageClient) {
	if cfg.Search.APIKey == "" {
		log.Printf("search: disabled (no api key)")
		return nil, nil
	}
	brave := search.NewBraveClient(cfg.Search.APIKey, cfg.Search.Timeout)
	return search.NewCachedClient(brave, 256), brave
}

// initArchive never fails startup; snapshots are best effort.
func initArchive(cfg *config.Config) *archive.SnapshotArchive {
	if !cfg.Archive.Enabled {
		return nil
	}
	snap, err := archive.New(archive.Config{
		Endpoint:  cfg.Archive.Endpoint,
		Region:    cfg.Archive.Region,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Bucket:    cfg.Archive.Bucket,
		UseSSL:    cfg.Archive.UseSSL,
	})
	if err != nil {
		log.Printf("archive: disabled: %v", err)
		return nil
	}
	log.Printf("archive: bucket=%s endpoint=%s", cfg.Archive.Bucket, cfg.Archive.Endpoint)
	return snap
}
