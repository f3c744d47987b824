// Package retrieval ranks a user's stored prompts against a query by cosine
// similarity and returns the best matching prompt/response pairs.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hyperengineering/recollect/internal/apperr"
	"github.com/hyperengineering/recollect/internal/embedding"
	"github.com/hyperengineering/recollect/internal/store"
	"github.com/hyperengineering/recollect/internal/vector"
)

// DefaultTopK is the result count used when a request asks for k <= 0.
const DefaultTopK = 6

// Loader loads a user's bundle. *store.Persistence satisfies it.
type Loader interface {
	Load(ctx context.Context, uuid string) (*store.Bundle, error)
}

// Result is one ranked match.
type Result struct {
	Key        string  `json:"key"`
	Similarity float32 `json:"similarity"`
	Content    string  `json:"content"`
}

// Engine performs exhaustive top-k search over one user's bundle.
type Engine struct {
	loader   Loader
	embedder embedding.Embedder
	defaultK int
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultTopK sets the k used when a request asks for k <= 0.
func WithDefaultTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.defaultK = k
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine. The embedder must be the one the bundles
// were indexed with.
func NewEngine(loader Loader, embedder embedding.Embedder, opts ...Option) *Engine {
	e := &Engine{
		loader:   loader,
		embedder: embedder,
		defaultK: DefaultTopK,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "retrieval")
	return e
}

// TopK resolves a requested k against the configured default.
func (e *Engine) TopK(k int) int {
	if k <= 0 {
		return e.defaultK
	}
	return k
}

// Retrieve returns the min(k, N) prompts most similar to query, by
// descending similarity. Equal scores keep row order.
func (e *Engine) Retrieve(ctx context.Context, uuid, query string, k int) ([]Result, error) {
	const op = "retrieval.retrieve"

	switch {
	case uuid == "":
		return nil, apperr.Msg(apperr.Validation, op, "uuid not provided")
	case strings.TrimSpace(query) == "":
		return nil, apperr.Msg(apperr.Validation, op, "query not provided")
	case e.embedder == nil || e.loader == nil:
		return nil, apperr.Msg(apperr.Validation, op, "embedding model not provided")
	}

	b, err := e.loader.Load(ctx, uuid)
	if err != nil {
		kind := apperr.Retrieval
		if apperr.KindOf(err) == apperr.NotFound {
			kind = apperr.NotFound
		}
		return nil, &apperr.Error{Kind: kind, Op: op, UUID: uuid, Msg: "load bundle", Err: err}
	}

	q, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.Retrieval, Op: op, UUID: uuid, Msg: "embed query", Err: err}
	}

	results, err := rank(b, q, e.TopK(k))
	if err != nil {
		if apperr.KindOf(err) == apperr.IndexOutOfRange {
			return nil, err
		}
		return nil, &apperr.Error{Kind: apperr.Retrieval, Op: op, UUID: uuid, Msg: "similarity", Err: err}
	}

	e.logger.Debug("retrieved",
		"uuid", uuid,
		"rows", b.Matrix.Rows(),
		"results", len(results),
		"source", b.Source,
	)
	return results, nil
}

// rank scores every row of b against q and returns the top k.
func rank(b *store.Bundle, q []float32, k int) ([]Result, error) {
	if b.Matrix == nil || b.Record == nil {
		return nil, fmt.Errorf("bundle has no embeddings")
	}
	if len(q) != b.Matrix.Cols() {
		return nil, fmt.Errorf("query dimension %d does not match embedding dimension %d", len(q), b.Matrix.Cols())
	}

	scores := vector.CosineScores(q, b.Matrix)
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, c int) bool {
		return scores[order[a]] > scores[order[c]]
	})

	n := min(k, len(order))
	results := make([]Result, 0, n)
	for _, i := range order[:n] {
		if i >= len(b.KeyOrder) {
			return nil, &apperr.Error{
				Kind: apperr.IndexOutOfRange, Op: "retrieval.rank", UUID: b.UUID,
				Msg: fmt.Sprintf("row %d has no key (key_order has %d)", i, len(b.KeyOrder)),
			}
		}
		key := b.KeyOrder[i]
		content, ok := b.Record.Get(key)
		if !ok {
			return nil, &apperr.Error{
				Kind: apperr.IndexOutOfRange, Op: "retrieval.rank", UUID: b.UUID,
				Msg: fmt.Sprintf("key %q at row %d missing from record", key, i),
			}
		}
		results = append(results, Result{Key: key, Similarity: scores[i], Content: content})
	}
	return results, nil
}
