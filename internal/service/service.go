// Package service wires extraction, indexing, persistence and retrieval into
// the per-user operations exposed by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hyperengineering/recollect/internal/apperr"
	"github.com/hyperengineering/recollect/internal/conversation"
	"github.com/hyperengineering/recollect/internal/index"
	"github.com/hyperengineering/recollect/internal/retrieval"
	"github.com/hyperengineering/recollect/internal/store"
	"github.com/hyperengineering/recollect/internal/validation"
	"github.com/hyperengineering/recollect/internal/vector"
)

const (
	StatusHealthy  = "healthy"
	StatusNotReady = "not_ready"
)

var (
	// ErrPersistenceRequired is returned when no persistence layer is provided.
	ErrPersistenceRequired = errors.New("persistence required")

	// ErrIndexerRequired is returned when no indexer is provided.
	ErrIndexerRequired = errors.New("indexer required")

	// ErrEngineRequired is returned when no retrieval engine is provided.
	ErrEngineRequired = errors.New("retrieval engine required")
)

// ExtractResult describes a stored bundle built from a conversation export.
type ExtractResult struct {
	UUID           string
	DocumentCount  int
	EmbeddingShape vector.Shape
	Revision       string
	Model          string
	Stats          conversation.Stats
}

// SearchResult holds the ranked matches for one query.
type SearchResult struct {
	Results      []retrieval.Result
	Query        string
	TotalResults int
}

// UserHealth reports whether a user's bundle is ready for search.
type UserHealth struct {
	UUID             string
	Status           string
	TotalDocuments   int
	DataLoaded       bool
	EmbeddingsLoaded bool
	KeysAvailable    bool
	ModelLoaded      bool
	Source           string
}

// ReadyForSearch reports whether the health status is healthy.
func (h *UserHealth) ReadyForSearch() bool {
	return h.Status == StatusHealthy
}

// Service is the application façade.
type Service struct {
	persistence *store.Persistence
	indexer     *index.Indexer
	engine      *retrieval.Engine
	logger      *slog.Logger
}

// New creates a Service.
func New(p *store.Persistence, ix *index.Indexer, e *retrieval.Engine, logger *slog.Logger) (*Service, error) {
	switch {
	case p == nil:
		return nil, ErrPersistenceRequired
	case ix == nil:
		return nil, ErrIndexerRequired
	case e == nil:
		return nil, ErrEngineRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		persistence: p,
		indexer:     ix,
		engine:      e,
		logger:      logger.With("component", "service"),
	}, nil
}

// ModelName returns the embedding model used for indexing and queries.
func (s *Service) ModelName() string {
	return s.indexer.ModelName()
}

// Extract parses a raw conversation export, embeds every prompt and replaces
// the user's bundle in the primary backend.
func (s *Service) Extract(ctx context.Context, uuid string, raw []byte) (*ExtractResult, error) {
	uuid, err := validation.NormalizeUserID(uuid)
	if err != nil {
		return nil, err
	}

	rec, stats, err := conversation.Extract(raw)
	if err != nil {
		return nil, err
	}

	idx, err := s.indexer.Build(ctx, rec)
	if err != nil {
		return nil, err
	}

	saved, err := s.persistence.Save(ctx, uuid, rec, idx.KeyOrder, idx.Matrix)
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversations extracted",
		"uuid", uuid,
		"trees", stats.Trees,
		"pairs", rec.Len(),
		"overwrites", stats.Overwrites,
		"model", idx.Model,
	)

	return &ExtractResult{
		UUID:           uuid,
		DocumentCount:  rec.Len(),
		EmbeddingShape: saved.Shape,
		Revision:       saved.Revision,
		Model:          idx.Model,
		Stats:          stats,
	}, nil
}

// Search returns the prompts most similar to query. A topK of zero selects
// the configured default.
func (s *Service) Search(ctx context.Context, uuid, query string, topK int) (*SearchResult, error) {
	uuid, err := validation.NormalizeUserID(uuid)
	if err != nil {
		return nil, err
	}

	results, err := s.engine.Retrieve(ctx, uuid, query, topK)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Results:      results,
		Query:        query,
		TotalResults: len(results),
	}, nil
}

// Delete removes the user's bundle, from the fallback when the primary fails.
func (s *Service) Delete(ctx context.Context, uuid string) (*store.DeleteResult, error) {
	uuid, err := validation.NormalizeUserID(uuid)
	if err != nil {
		return nil, err
	}
	return s.persistence.Delete(ctx, uuid)
}

// Mirror copies the user's bundle from the primary into the fallback.
func (s *Service) Mirror(ctx context.Context, uuid string) (*store.MirrorResult, error) {
	uuid, err := validation.NormalizeUserID(uuid)
	if err != nil {
		return nil, err
	}
	return s.persistence.Mirror(ctx, uuid)
}

// Health loads the user's bundle and reports what is available. A bundle
// that cannot be loaded is reported as not ready rather than as an error.
func (s *Service) Health(ctx context.Context, uuid string) (*UserHealth, error) {
	uuid, err := validation.NormalizeUserID(uuid)
	if err != nil {
		return nil, err
	}

	h := &UserHealth{
		UUID:        uuid,
		Status:      StatusNotReady,
		ModelLoaded: s.indexer.ModelName() != "",
	}

	b, err := s.persistence.Load(ctx, uuid)
	if err != nil {
		s.logger.Info("bundle not ready",
			"uuid", uuid,
			"kind", apperr.KindOf(err).String(),
			"error", err,
		)
		return h, nil
	}

	h.DataLoaded = b.Record != nil
	h.EmbeddingsLoaded = b.Matrix != nil && b.Matrix.Rows() > 0
	h.KeysAvailable = len(b.KeyOrder) > 0
	h.TotalDocuments = len(b.KeyOrder)
	h.Source = b.Source
	if h.ModelLoaded && h.DataLoaded && h.EmbeddingsLoaded && h.KeysAvailable {
		h.Status = StatusHealthy
	}
	return h, nil
}

// List returns the bundles held by both backends.
func (s *Service) List(ctx context.Context) ([]store.Summary, error) {
	return s.persistence.List(ctx)
}

// Stats reports how many bundles each backend holds.
func (s *Service) Stats(ctx context.Context) (*store.Stats, error) {
	return s.persistence.Stats(ctx)
}

// Ping checks that the primary backend is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.persistence.Ping(ctx)
}

// Describe loads the user's bundle and summarizes it.
func (s *Service) Describe(ctx context.Context, uuid string) (*store.Summary, error) {
	uuid, err := validation.NormalizeUserID(uuid)
	if err != nil {
		return nil, err
	}
	b, err := s.persistence.Load(ctx, uuid)
	if err != nil {
		return nil, err
	}
	return &store.Summary{
		UUID:      b.UUID,
		Shape:     b.Shape(),
		Revision:  b.Revision,
		CreatedAt: b.CreatedAt,
		Source:    b.Source,
	}, nil
}
