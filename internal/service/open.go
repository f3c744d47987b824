package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/recollect/internal/config"
	"github.com/hyperengineering/recollect/internal/embedding"
	"github.com/hyperengineering/recollect/internal/index"
	"github.com/hyperengineering/recollect/internal/retrieval"
	"github.com/hyperengineering/recollect/internal/store"
)

// Runtime is a Service together with the resources it owns.
type Runtime struct {
	*Service
	primary *store.SQLBackend
	indexer *index.Indexer
}

// Open builds the full stack described by cfg: SQL primary, document
// fallback, embedder, indexer and retrieval engine.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	primary, err := store.OpenSQL(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("primary store: %w", err)
	}

	blobs, err := store.NewBlobs(cfg.Fallback)
	if err != nil {
		primary.Close()
		return nil, fmt.Errorf("fallback store: %w", err)
	}
	fallback := store.NewDocumentBackend(blobs, cfg.Fallback.Suffix, logger)

	p, err := store.NewPersistence(primary, fallback, logger)
	if err != nil {
		primary.Close()
		return nil, err
	}

	ix, err := index.NewIndexer(embedder,
		index.WithBatchSize(cfg.Embedding.BatchSize),
		index.WithConcurrency(cfg.Embedding.Concurrency),
		index.WithLogger(logger),
	)
	if err != nil {
		primary.Close()
		return nil, fmt.Errorf("indexer: %w", err)
	}

	engine := retrieval.NewEngine(p, embedder,
		retrieval.WithDefaultTopK(cfg.Search.DefaultTopK),
		retrieval.WithLogger(logger),
	)

	svc, err := New(p, ix, engine, logger)
	if err != nil {
		ix.Release()
		primary.Close()
		return nil, err
	}

	logger.Info("service initialized",
		"primary", primary.Name(),
		"fallback", fallback.Location(),
		"model", embedder.ModelName(),
	)
	return &Runtime{Service: svc, primary: primary, indexer: ix}, nil
}

// Close stops the indexer pool and closes the primary database.
func (r *Runtime) Close() error {
	r.indexer.Release()
	return r.primary.Close()
}
