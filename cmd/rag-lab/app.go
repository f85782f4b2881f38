package main

import (
	"context"
	"fmt"

	"github.com/phuslu/log"

	"github.com/rag-lab/server/config"
	"github.com/rag-lab/server/internal/chunker"
	"github.com/rag-lab/server/internal/db"
	"github.com/rag-lab/server/internal/documents"
	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/embeddings"
	"github.com/rag-lab/server/internal/extract"
	"github.com/rag-lab/server/internal/llm"
	"github.com/rag-lab/server/internal/ollama"
	"github.com/rag-lab/server/internal/rag"
	"github.com/rag-lab/server/internal/sqlite"
	"github.com/rag-lab/server/internal/vectorstore"
)

// metadataStore is what both database backends provide.
type metadataStore interface {
	documents.Catalog
	documents.MetadataStore
	Ping(ctx context.Context) error
}

var (
	_ metadataStore = (*sqlite.Store)(nil)
	_ metadataStore = (*db.DB)(nil)
)

// app holds the wired services.
type app struct {
	cfg       *config.Config
	logger    *log.Logger
	store     metadataStore
	vectors   vectorstore.Store
	embedder  *embeddings.TextEmbedder
	library   *documents.Library
	processor *documents.Processor
	retriever *rag.Retriever
	query     *rag.Service
	closers   []func()
}

// buildApp opens the stores and wires the pipelines. withGenerator is false
// for commands that never call the chat model.
func buildApp(ctx context.Context, cfg *config.Config, logger *log.Logger, withGenerator bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	client := ollama.NewClient(cfg.Ollama.BaseURL, ollama.WithTimeout(cfg.Ollama.Timeout))
	a.embedder = embeddings.NewTextEmbedder(client, cfg.Embeddings.TextModel, logger)

	splitter := chunker.New(
		chunker.WithChunkSize(cfg.Processing.ChunkSize),
		chunker.WithOverlap(cfg.Processing.ChunkOverlap),
	)
	a.library = documents.NewLibrary(a.store, a.vectors, cfg.Paths.UploadsDir, logger)
	a.processor = documents.NewProcessor(a.store, extract.New(cfg.Paths.UploadsDir), a.embedder, a.vectors, splitter, logger)
	a.retriever = rag.NewRetriever(a.embedder, a.vectors, a.store, cfg.Processing.TopK)

	if withGenerator {
		generator, err := llm.New(ctx, llm.Config{
			Provider:  cfg.Generation.Provider,
			BaseURL:   cfg.Generation.BaseURL,
			APIKey:    cfg.APIKey(),
			Model:     cfg.Generation.Model,
			MaxTokens: cfg.Generation.MaxTokens,
			Timeout:   cfg.Generation.Timeout,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to configure generation: %w", err)
		}
		a.query = rag.NewService(a.retriever, generator, logger)
	}

	return a, nil
}

// poolOptions maps the database section onto pool settings. Validate has
// already bounded MaxConns to int32.
func poolOptions(cfg *config.Config) db.PoolOptions {
	return db.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	}
}

func (a *app) openStores(ctx context.Context) error {
	switch a.cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := db.New(ctx, a.cfg.Database.ConnectionString, poolOptions(a.cfg))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pg.Close)
		if _, err := pg.Migrate(ctx); err != nil {
			return err
		}
		a.store = pg
		if a.cfg.VectorStore.Backend == "" {
			vs, err := db.NewVectorStore(ctx, pg)
			if err != nil {
				return err
			}
			a.vectors = vs
		}

	default:
		store, err := sqlite.Open(a.cfg.Database.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		a.store = store
		if a.cfg.VectorStore.Backend == "" {
			vs, err := sqlite.NewVectorStore(ctx, store)
			if err != nil {
				return err
			}
			a.vectors = vs
		}
	}

	if a.vectors == nil {
		a.logger.Warn().Msg("using in-memory vector store; embeddings are lost on exit")
		a.vectors = vectorstore.NewMemory()
	}
	a.logger.Debug().
		Str("driver", a.cfg.Database.Driver).
		Str("vector_store", fmt.Sprintf("%T", a.vectors)).
		Msg("stores opened")
	return nil
}

// modelStatus checks the embedding model on the local Ollama server.
func (a *app) modelStatus(ctx context.Context) domain.HealthStatus {
	return a.embedder.Health(ctx, a.embedder.Model())
}

// Close releases the stores in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
