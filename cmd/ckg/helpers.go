package main

import (
	"fmt"
	"os"

	"ckg/internal/config"
	"ckg/internal/embed"
	"ckg/internal/graph"
	"ckg/internal/lens"
	"ckg/internal/logging"
	"ckg/internal/storage"
)

// mustGetRepoRoot resolves the repository root from the --repo flag or
// the current directory.
func mustGetRepoRoot() string {
	if repoRootFlag != "" {
		return repoRootFlag
	}
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving working directory: %v\n", err)
		os.Exit(1)
	}
	return cwd
}

// mustLoadConfig loads the CKG configuration or exits.
func mustLoadConfig(repoRoot string) *config.Config {
	cfg, err := config.Load(repoRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// mustOpenStore opens the graph store or exits. Callers must Close.
func mustOpenStore(cfg *config.Config, logger *logging.Logger) (*storage.DB, *graph.Store) {
	db, err := storage.Open(cfg.RepoRoot, storage.Options{
		BusyTimeoutMs: cfg.Store.BusyTimeoutMs,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	return db, graph.NewStore(db)
}

// mustLoadLens loads the lens or exits.
func mustLoadLens(cfg *config.Config) *lens.Lens {
	l, err := lens.Load(cfg.Lens.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading lens: %v\n", err)
		os.Exit(1)
	}
	return l
}

// newEmbedder builds the configured embedding backend. A missing or
// broken model degrades to no embedder rather than failing the command.
func newEmbedder(cfg *config.Config, logger *logging.Logger) embed.Backend {
	if !cfg.Embedding.Enabled {
		return nil
	}
	if cfg.Embedding.ModelDir == "" {
		return embed.NewMock(cfg.Embedding.MockDims)
	}
	backend, err := embed.LoadLocal(cfg.Embedding.ModelDir)
	if err != nil {
		logger.Warn("embedding model unavailable, semantic search degraded", map[string]interface{}{
			"model_dir": cfg.Embedding.ModelDir,
			"error":     err.Error(),
		})
		return nil
	}
	return backend
}
